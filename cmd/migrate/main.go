// migrate runs DB migrations from embedded SQL: go run ./cmd/migrate --direction up.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"loandesk/backend/internal/config"
	"loandesk/backend/internal/db/migrate"
)

func main() {
	flags := pflag.NewFlagSet("migrate", pflag.ExitOnError)
	direction := flags.String("direction", migrate.Up, "Migration direction: up or down")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env or set DATABASE_URL")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// Already at target version; success.
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
