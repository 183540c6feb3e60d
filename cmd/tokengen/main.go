// Command tokengen mints a signed access token for local development and tests.
// Production tokens are issued by the identity provider.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"communityevents/config"
	"communityevents/internal/adapters/auth"
	"communityevents/internal/domain"
)

func main() {
	sub := flag.String("sub", "dev-admin", "subject (user id)")
	email := flag.String("email", "admin@example.com", "email claim")
	roles := flag.String("roles", "admin", "comma-separated roles: admin, staff, member")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	principal := &domain.Principal{UserID: *sub, Email: *email}
	for _, raw := range strings.Split(*roles, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		role, ok := domain.ParseRole(raw)
		if !ok {
			log.Fatalf("unknown role %q", raw)
		}
		principal.Roles = append(principal.Roles, role)
	}

	token, err := auth.NewJWTIssuer(cfg.JWTSecret, *ttl).Issue(principal)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Fprintln(os.Stdout, token)
}
