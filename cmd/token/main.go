package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"seasoncast/internal/adapters/config"
	"seasoncast/pkg/auth"
	"seasoncast/pkg/logger"
)

// Mints a bearer token for the prediction history API, signed with API_JWT_SECRET
func main() {
	subject := flag.String("subject", "", "Client the token is issued to (required)")
	scopes := flag.String("scopes", auth.ScopeHistoryRead, "Comma separated scopes")
	ttl := flag.Duration("ttl", 0, "Token lifetime, defaults to API_TOKEN_TTL")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	if cfg.HTTP.JWTSecret == "" {
		log.Fatalf("API_JWT_SECRET is not set; history routes are open and need no token")
	}

	lifetime := cfg.HTTP.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	var granted []string
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			granted = append(granted, s)
		}
	}

	token, err := auth.NewJWTService(cfg.HTTP.JWTSecret, cfg.HTTP.JWTIssuer, lifetime).GenerateToken(*subject, granted...)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}

	log.Infow("Issued API token",
		"subject", *subject,
		"scopes", granted,
		"expires_at", time.Now().Add(lifetime).Format(time.RFC3339),
	)
	fmt.Println(token)
}
