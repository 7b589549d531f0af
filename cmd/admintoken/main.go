// Command admintoken prints a signed admin token for the moderation endpoints.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"trailgate/internal/config"
	authinfra "trailgate/internal/infra/auth"
)

func main() {
	var (
		subject string
		ttl     time.Duration
	)

	flag.StringVar(&subject, "sub", "", "moderator identifier stored as the token subject")
	flag.DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to jwt.admin_ttl)")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fatalf("load config: %v", err)
	}
	if ttl == 0 {
		ttl = cfg.JWT.AdminTTL
	}

	tokens, err := authinfra.NewTokens(cfg.JWT)
	if err != nil {
		fatalf("tokens: %v", err)
	}
	token, err := tokens.IssueAdmin(subject, ttl)
	if err != nil {
		fatalf("issue: %v", err)
	}
	fmt.Println(token)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
