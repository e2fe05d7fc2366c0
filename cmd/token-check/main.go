// Command token-check inspects the access token the realtime client
// would dial with. Useful when the dashboard reports connection
// failures: an expired or malformed token is the most common cause.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/auth"
)

func main() {
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	log.SetFlags(0)

	fmt.Println("=== Realtime Token Diagnostic ===")

	if _, err := os.Stat(*envFile); err != nil {
		fmt.Printf("   .env file not found: %s (using process environment)\n", *envFile)
	} else if err := godotenv.Load(*envFile); err != nil {
		fmt.Printf("   Error loading .env: %v\n", err)
	}

	token := os.Getenv("REALTIME_TOKEN")
	if token == "" {
		fmt.Println("   No REALTIME_TOKEN set")
		fmt.Println()
		fmt.Println("The client will dial without a token. If the server requires")
		fmt.Println("authentication, obtain a token from the backend and set")
		fmt.Println("REALTIME_TOKEN in your .env file.")

		return
	}

	fmt.Printf("   Token found (length: %d)\n", len(token))

	claims, err := auth.ParseUnverified(token)
	if err != nil {
		fmt.Printf("   Failed to parse token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("   Token parsed successfully")
	fmt.Printf("     - Subject:   %s\n", claims.Subject)

	if claims.SchoolID != "" {
		fmt.Printf("     - School ID: %s\n", claims.SchoolID)
	}

	if claims.IssuedAt != nil {
		fmt.Printf("     - Issued:    %s\n", claims.IssuedAt.Format("2006-01-02 15:04:05"))
	}

	if claims.ExpiresAt != nil {
		fmt.Printf("     - Expires:   %s\n", claims.ExpiresAt.Format("2006-01-02 15:04:05"))
	}

	if claims.IsExpired() {
		fmt.Printf("   Token expired %s ago\n", time.Since(claims.ExpiresAt.Time).Round(time.Second))
		fmt.Println()
		fmt.Println("Obtain a fresh token from the backend and update REALTIME_TOKEN.")
		os.Exit(1)
	}

	fmt.Printf("   Token is valid (expires in %s)\n", claims.ExpiresIn().Round(time.Second))
}
