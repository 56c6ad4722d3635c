package main

import (
	"log"
	"os"

	"github.com/aussiebroadwan/loginkit/internal/login/app"
)

func main() {
	cfg := app.LoadConfig()
	if len(os.Args) > 1 {
		cfg.Command = os.Args[1]
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
