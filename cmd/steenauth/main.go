package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/lsteen89/steenauth/cmd/internal/app"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
