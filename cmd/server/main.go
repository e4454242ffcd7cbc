package main

import (
	"context"
	"log"

	"github.com/ycchuang/sheetbook/internal/server"
	"github.com/ycchuang/sheetbook/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
