// Command tokengen prints a signed identity token for local development.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sanjeevkumarraob/pdf-text-service/internal/auth"
	"github.com/sanjeevkumarraob/pdf-text-service/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	userID := flag.String("user", "", "user id (required)")
	email := flag.String("email", "", "user email")
	name := flag.String("name", "", "display name")
	flag.Parse()

	cfg, err := config.LoadFromFiles(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}

	manager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDurationValue())
	token, err := manager.GenerateToken(*userID, *email, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}
	fmt.Println(token)
}
