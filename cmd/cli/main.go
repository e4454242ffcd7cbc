// Command cli is a thin interactive front end over the in-process ledger
// facade, used for manual testing against either store backend.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/ycchuang/sheetbook/internal/common"
	"github.com/ycchuang/sheetbook/internal/server"
	"github.com/ycchuang/sheetbook/internal/server/config"
	"github.com/ycchuang/sheetbook/internal/server/directory"
	"github.com/ycchuang/sheetbook/internal/server/ledger"
	"github.com/ycchuang/sheetbook/internal/server/models"
)

type cliApp struct {
	ledger *ledger.Service
	sess   *ledger.Session
	reader *bufio.Reader
}

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	c := &cliApp{ledger: app.Ledger(), reader: bufio.NewReader(os.Stdin)}
	c.run(ctx)

}

func (c *cliApp) getStatus() string {
	if c.sess == nil {
		return ""
	}
	return fmt.Sprintf("(%s @ %s)", c.sess.Nickname, c.sess.Current)
}

func (c *cliApp) run(ctx context.Context) {
	log.Println("Welcome to sheetbook CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("sb %s> ", c.getStatus())
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		var err error
		switch parts[0] {
		case "help":
			if c.sess == nil {
				fmt.Println("Available commands: register, login, resume, reset, exit")
			} else {
				fmt.Println("Available commands: record, list, summary, books, switch, rundue, rules, addrule, delrule, invite, exit")
			}
		case "register":
			err = c.register(ctx)
		case "login":
			err = c.login(ctx)
		case "resume":
			err = c.resume(ctx, parts[1:])
		case "reset":
			err = c.reset(ctx)
		case "record":
			err = c.record(ctx)
		case "l", "list":
			err = c.list(ctx)
		case "summary":
			err = c.summary(ctx, parts[1:])
		case "books":
			err = c.books()
		case "switch":
			err = c.switchBook(ctx, parts[1:])
		case "rundue":
			err = c.runDue(ctx)
		case "rules":
			err = c.rules(ctx)
		case "addrule":
			err = c.addRule(ctx)
		case "delrule":
			err = c.delRule(ctx, parts[1:])
		case "invite":
			err = c.invite(ctx, parts[1:])
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", parts[0])
		}
		if err != nil {
			fmt.Println("Error:", err)
		}
	}
}

func (c *cliApp) prompt(label string) (string, error) {
	fmt.Print(label + ": ")
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *cliApp) promptPassword() (string, error) {
	fmt.Print("Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	return string(pw), err
}

func (c *cliApp) requireSession() error {
	if c.sess == nil {
		return fmt.Errorf("not logged in")
	}
	return nil
}

func (c *cliApp) register(ctx context.Context) error {
	email, err := c.prompt("Email")
	if err != nil {
		return err
	}
	password, err := c.promptPassword()
	if err != nil {
		return err
	}
	bookRef, err := c.prompt("Book reference (blank = generate)")
	if err != nil {
		return err
	}
	if bookRef == "" {
		hex, err := common.MakeRandHexString(8)
		if err != nil {
			return err
		}
		bookRef = "book-" + hex
		fmt.Println("Generated book reference:", bookRef)
	}
	bookName, err := c.prompt("Book name")
	if err != nil {
		return err
	}
	sess, err := c.ledger.Register(ctx, email, password, bookRef, bookName)
	if err != nil {
		return err
	}
	c.sess = sess
	fmt.Println("Registered and logged in as", sess.Nickname)
	return nil
}

func (c *cliApp) login(ctx context.Context) error {
	email, err := c.prompt("Email")
	if err != nil {
		return err
	}
	password, err := c.promptPassword()
	if err != nil {
		return err
	}
	sess, err := c.ledger.Login(ctx, email, password)
	if err != nil {
		return err
	}
	c.sess = sess
	fmt.Println("Logged in as", sess.Nickname)
	return nil
}

func (c *cliApp) resume(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: resume <token>")
	}
	sess, err := c.ledger.Resume(ctx, args[0])
	if err != nil {
		return err
	}
	c.sess = sess
	fmt.Println("Session resumed as", sess.Nickname)
	return nil
}

func (c *cliApp) reset(ctx context.Context) error {
	email, err := c.prompt("Email")
	if err != nil {
		return err
	}
	if err := c.ledger.RequestPasswordReset(ctx, email); err != nil {
		return err
	}
	code, err := c.prompt("Code from the reset mail")
	if err != nil {
		return err
	}
	password, err := c.promptPassword()
	if err != nil {
		return err
	}
	nickname, err := c.prompt("Nickname (blank = keep)")
	if err != nil {
		return err
	}
	if err := c.ledger.ResetPassword(ctx, email, code, password, nickname); err != nil {
		return err
	}
	fmt.Println("Password updated, you can log in now")
	return nil
}

func (c *cliApp) record(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	kind, err := c.prompt("Kind (Income/Expense)")
	if err != nil {
		return err
	}
	main, err := c.prompt("Category")
	if err != nil {
		return err
	}
	sub, err := c.prompt("Subcategory")
	if err != nil {
		return err
	}
	payment, err := c.prompt("Payment")
	if err != nil {
		return err
	}
	currency, err := c.prompt("Currency (blank = default)")
	if err != nil {
		return err
	}
	amountStr, err := c.prompt("Amount")
	if err != nil {
		return err
	}
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return fmt.Errorf("bad amount: %w", err)
	}
	note, err := c.prompt("Note")
	if err != nil {
		return err
	}

	tx, err := c.ledger.RecordTransaction(ctx, c.sess, ledger.TransactionInput{
		Kind:         kind,
		MainCategory: main,
		SubCategory:  sub,
		Payment:      payment,
		Currency:     currency,
		Amount:       amount,
		Note:         note,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Recorded %s %s %.2f (%.2f %s)\n", tx.Kind, tx.MainCategory, tx.AmountConverted, tx.AmountSource, tx.Currency)
	return nil
}

func (c *cliApp) list(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	txs, err := c.ledger.Transactions(ctx, c.sess)
	if err != nil {
		return err
	}
	for _, tx := range txs {
		fmt.Printf("%s  %-7s  %-12s  %10.2f  %s\n",
			tx.Date.Format(models.DateLayout), tx.Kind, tx.MainCategory, tx.AmountConverted, tx.Note)
	}
	fmt.Println(len(txs), "entries")
	return nil
}

func (c *cliApp) summary(ctx context.Context, args []string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	period := time.Now().Format(models.PeriodLayout)
	if len(args) > 0 {
		period = args[0]
	}
	sum, err := c.ledger.MonthlySummary(ctx, c.sess, period)
	if err != nil {
		return err
	}
	fmt.Printf("%s: income %.2f, expense %.2f, balance %.2f (%d entries)\n",
		sum.Period, sum.Income, sum.Expense, sum.Balance, sum.Count)
	return nil
}

func (c *cliApp) books() error {
	if err := c.requireSession(); err != nil {
		return err
	}
	for _, b := range c.ledger.ListBooks(c.sess) {
		marker := " "
		if b.BookRef == c.sess.Current {
			marker = "*"
		}
		fmt.Printf("%s %-10s %-20s %s\n", marker, b.Role, b.BookName, b.BookRef)
	}
	return nil
}

func (c *cliApp) switchBook(ctx context.Context, args []string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: switch <book-ref>")
	}
	if err := c.ledger.SwitchBook(ctx, c.sess, args[0]); err != nil {
		return err
	}
	fmt.Println("Now on", c.sess.Current)
	return nil
}

func (c *cliApp) runDue(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	n, err := c.ledger.RunDueRecurring(ctx, c.sess)
	if err != nil {
		return err
	}
	fmt.Println(n, "recurring rules posted")
	return nil
}

func (c *cliApp) rules(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	rules, err := c.ledger.ListRecurringRules(ctx, c.sess)
	if err != nil {
		return err
	}
	for i, r := range rules {
		fmt.Printf("%d: day %2d  %-7s  %-12s  %10.2f %s  last run %s\n",
			i, r.Day, r.Kind, r.MainCategory, r.AmountSource, r.Currency, r.LastRunPeriod)
	}
	return nil
}

func (c *cliApp) addRule(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	dayStr, err := c.prompt("Day of month")
	if err != nil {
		return err
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return fmt.Errorf("bad day: %w", err)
	}
	kind, err := c.prompt("Kind (Income/Expense)")
	if err != nil {
		return err
	}
	main, err := c.prompt("Category")
	if err != nil {
		return err
	}
	amountStr, err := c.prompt("Amount")
	if err != nil {
		return err
	}
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return fmt.Errorf("bad amount: %w", err)
	}
	note, err := c.prompt("Note")
	if err != nil {
		return err
	}
	return c.ledger.AddRecurringRule(ctx, c.sess, models.RecurringRule{
		Day:          day,
		Kind:         kind,
		MainCategory: main,
		AmountSource: amount,
		Note:         note,
	})
}

func (c *cliApp) delRule(ctx context.Context, args []string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: delrule <index>")
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad index: %w", err)
	}
	return c.ledger.DeleteRecurringRule(ctx, c.sess, idx)
}

func (c *cliApp) invite(ctx context.Context, args []string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: invite <email> [role]")
	}
	role := models.RoleMember
	if len(args) > 1 {
		role = args[1]
	}
	res, err := c.ledger.Invite(ctx, c.sess, args[0], role)
	if err != nil {
		return err
	}
	if res == directory.InviteAlreadyMember {
		fmt.Println(args[0], "is already a member")
	} else {
		fmt.Println("Invited", args[0])
	}
	return nil
}
