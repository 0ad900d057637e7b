package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"pairs-core/internal/api"
	"pairs-core/pkg/config"
)

// issue_token prints a bearer token for the trader's /api routes, signed with API_JWT_SECRET.
//
//	go run ./scripts/issue_token -sub ops -ttl 24h
func main() {
	subject := flag.String("sub", "operator", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatalf("API_JWT_SECRET is empty; the API is running without authentication")
	}
	token, err := api.GenerateToken(*subject, cfg.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}
