// Package main provides a CLI tool for generating test bearer tokens for the
// poolpay API. These tokens use the dev signing key and will NOT work against
// a production deployment.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"poolpay/internal/token"
	"poolpay/pkg/domain"
)

const (
	// Dev signing key - matches config.go when JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	defaultIssuer   = "poolpay"
	defaultAudience = "poolpay"
	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Account   string            `json:"account"`
	JTI       string            `json:"jti"`
	ExpiresIn string            `json:"expires_in"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	accountFlag := flag.String("account", "", "Account (0x-prefixed 64 hex chars). Generated if empty.")
	keyFlag := flag.String("signing-key", devSigningKey, "JWT signing key the server was started with")
	ttlFlag := flag.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	jsonFlag := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	account, err := resolveAccount(*accountFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid account: %v\n", err)
		os.Exit(1)
	}

	svc := token.NewService(*keyFlag, defaultIssuer, defaultAudience, *ttlFlag)
	bearer, jti, err := svc.GenerateToken(account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if *jsonFlag {
		output := tokenOutput{
			Token:     bearer,
			Account:   account.String(),
			JTI:       jti,
			ExpiresIn: ttlFlag.String(),
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(output); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("Account Bearer Token (JWT)")
	fmt.Println("==========================")
	fmt.Printf("Account:    %s\n", account)
	fmt.Printf("Expires In: %s\n", ttlFlag)
	fmt.Printf("JTI:        %s\n", jti)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(bearer)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/...")
}

func resolveAccount(input string) (domain.Account, error) {
	if input != "" {
		return domain.ParseAccount(input)
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return domain.Account{}, err
	}
	return domain.ParseAccount("0x" + hex.EncodeToString(b))
}
