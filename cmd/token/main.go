// Command token mints an HS256 operator token signed with JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"ms-pos/internal/auth"
	"ms-pos/internal/config"
	"ms-pos/internal/logger"
)

func main() {
	subject := flag.String("sub", "admin", "token subject")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	log := logger.New(os.Stderr, logger.INFO)

	cfg, _, err := config.Load()
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	token, err := auth.IssueToken(cfg.Auth.JWTSecret, *subject, *ttl)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Cannot issue token: %v (is JWT_SECRET set?)", err))
	}
	fmt.Println(token)
}
