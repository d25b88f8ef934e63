package main

import (
	"flag"
	"fmt"
	"os"

	"qrclass/internal/auth"
	"qrclass/internal/config"
)

// tokenctl mints signed bearer tokens for local development. Credential
// issuance belongs to an external identity provider in deployment; this tool
// stands in for it when poking the API by hand.
func main() {
	subject := flag.String("subject", "", "subject id to embed in the token")
	role := flag.String("role", "student", "role: admin, instructor or student")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "usage: tokenctl -subject <id> [-role <role>]")
		os.Exit(2)
	}
	parsed, err := auth.ParseRole(*role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := config.Load()
	pair, err := auth.Issue(*subject, parsed, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(pair.AccessToken)
}
