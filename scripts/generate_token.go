//go:build ignore

package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/your-org/shopsphere-backend/internal/config"
	"github.com/your-org/shopsphere-backend/internal/pkg/auth"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/generate_token.go <user_id> [admin]")
	}
	admin := len(os.Args) > 2 && os.Args[2] == "admin"

	userID, err := strconv.ParseUint(os.Args[1], 10, 32)
	if err != nil || userID == 0 {
		log.Fatalf("Invalid user id %q", os.Args[1])
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading config:", err)
	}

	manager := auth.NewJWTManager(cfg)
	generate := manager.GenerateAccessToken
	if admin {
		generate = manager.GenerateAdminToken
	}
	token, err := generate(uint(userID))
	if err != nil {
		log.Fatal("Error generating token:", err)
	}

	if _, err := manager.ValidateAccessToken(token); err != nil {
		log.Fatal("Token verification failed:", err)
	}

	fmt.Printf("User: %d (admin: %t)\n", userID, admin)
	fmt.Printf("Expires in: %s\n", cfg.JWT.AccessTokenExpiry)
	fmt.Printf("Authorization: Bearer %s\n", token)
}
