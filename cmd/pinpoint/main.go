package main

import (
	"os"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
	os.Exit(cli.Execute(cli.NewRootCommand(nil)))
}
