// seed creates employee accounts and upgrades stored passwords to bcrypt.
//
//	go run ./cmd/seed --national-id 0012345678 --full-name "Site Admin" --password ... --role admin
//	go run ./cmd/seed --migrate-passwords
//
// Creating an account is idempotent on national id.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"loandesk/backend/internal/config"
	"loandesk/backend/internal/db"
	"loandesk/backend/internal/security"
	"loandesk/backend/internal/user/domain"
	userrepo "loandesk/backend/internal/user/repository"
)

type options struct {
	nationalID       string
	fullName         string
	password         string
	role             string
	migratePasswords bool
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("seed", pflag.ExitOnError)
	flags.StringVar(&opts.nationalID, "national-id", "", "national id of the employee to create")
	flags.StringVar(&opts.fullName, "full-name", "", "display name of the employee")
	flags.StringVar(&opts.password, "password", "", "initial password")
	flags.StringVar(&opts.role, "role", "admin", "role of the employee")
	flags.BoolVar(&opts.migratePasswords, "migrate-passwords", false, "rehash every stored password that is not bcrypt")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	repo := userrepo.NewPostgresRepository(conn)
	hasher := security.NewHasher(cfg.BcryptCost)
	ctx := context.Background()

	if opts.migratePasswords {
		n, err := migratePasswords(ctx, repo, hasher)
		if err != nil {
			log.Fatalf("migrate passwords: %v", err)
		}
		log.Printf("Rehashed %d password(s).", n)
		if opts.nationalID == "" {
			return
		}
	}

	created, err := createEmployee(ctx, repo, hasher, opts)
	if err != nil {
		log.Fatalf("create employee: %v", err)
	}
	if !created {
		log.Printf("Employee %s already exists. Skipping.", opts.nationalID)
		return
	}
	fmt.Printf("Created %s (%s) with role %s\n", opts.fullName, opts.nationalID, opts.role)
}

// createEmployee hashes the password and inserts an active employee.
func createEmployee(ctx context.Context, repo userrepo.Repository, hasher *security.Hasher, opts options) (bool, error) {
	if opts.nationalID == "" || opts.fullName == "" || opts.password == "" {
		return false, errors.New("--national-id, --full-name and --password are required")
	}
	hash, err := hasher.Hash(opts.password)
	if err != nil {
		return false, err
	}
	return repo.Create(ctx, &domain.Employee{
		FullName:     opts.fullName,
		NationalID:   opts.nationalID,
		PasswordHash: hash,
		Role:         opts.role,
		Status:       domain.StatusActive,
	})
}

// migratePasswords rehashes stored values that are not bcrypt hashes, treating them as
// plaintext. Returns how many were rewritten.
func migratePasswords(ctx context.Context, repo userrepo.Repository, hasher *security.Hasher) (int, error) {
	creds, err := repo.ListCredentials(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range creds {
		if c.PasswordHash == "" || security.IsHash(c.PasswordHash) {
			continue
		}
		hash, err := hasher.Hash(c.PasswordHash)
		if err != nil {
			return n, fmt.Errorf("employee %d: %w", c.EmployeeID, err)
		}
		if err := repo.UpdatePassword(ctx, c.EmployeeID, hash); err != nil {
			return n, fmt.Errorf("employee %d: %w", c.EmployeeID, err)
		}
		n++
	}
	return n, nil
}
