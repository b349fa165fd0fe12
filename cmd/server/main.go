package main

import (
	"context"
	"log"

	server "stream-rush/server"
	"stream-rush/server/internal/app"
)

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := app.Run(context.Background(), app.Config{Server: cfg}); err != nil && err != context.Canceled {
		log.Fatalf("%v", err)
	}
}
