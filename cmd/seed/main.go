// seed inserts a verified password user and a Google-linked user into the
// local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/account-service/internal/password"
	"golang.org/x/crypto/bcrypt"
)

const (
	seedEmail    = "seed@test.local"
	seedPassword = "seed-password"
	oauthEmail   = "oauth@test.local"
	oauthGoogle  = "seed-google-42"
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set, run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL, postgres.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	users := postgres.NewUserRepository(pool, password.NewBcryptHasher(bcrypt.DefaultCost))

	googleID := oauthGoogle
	seeds := []domain.NewUser{
		{Email: seedEmail, Password: seedPassword, FirstName: "Seed", LastName: "User", IsVerified: true},
		{Email: oauthEmail, FirstName: "OAuth", LastName: "User", IsVerified: true, GoogleID: &googleID},
	}

	for _, in := range seeds {
		u, err := users.Create(ctx, in)
		switch {
		case errors.Is(err, domain.ErrDuplicateEmail), errors.Is(err, domain.ErrIdentityLinked):
			fmt.Printf("  %-20s already exists, skipped\n", in.Email)
		case err != nil:
			log.Fatalf("create %s: %v", in.Email, err)
		default:
			fmt.Printf("  %-20s created (id %s)\n", u.Email, u.ID)
		}
	}

	fmt.Println()
	fmt.Println("Seed complete. Log in with:")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/api/auth/login \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"email\":\"%s\",\"password\":\"%s\"}'\n", seedEmail, seedPassword)
	fmt.Println()
	fmt.Println("  Then call the protected endpoint:")
	fmt.Println()
	fmt.Println("    curl -s http://localhost:8080/api/auth/me -H \"Authorization: Bearer $JWT\"")
}
