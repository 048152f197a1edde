package main

import (
	"log"

	"github.com/datagateway/authgate/internal/gateway/app"
)

func main() {
	application, err := app.New(app.ConfigPath())
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
