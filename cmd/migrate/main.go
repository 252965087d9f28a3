// migrate применяет и откатывает схему PostgreSQL для YummyBites.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/yummybites/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "YB_POSTGRES_DSN"
)

// migrator — операции Store, нужные команде.
type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (int64, int, error)
}

type command struct {
	direction string
	steps     int
	dsn       string
}

func parseCommand(args []string, lookup func(string) string, output io.Writer) (command, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(output)

	var cmd command
	fs.StringVar(&cmd.direction, "direction", "up", "migration direction: up|down|status")
	fs.IntVar(&cmd.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&cmd.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	if err := fs.Parse(args); err != nil {
		return command{}, err
	}

	cmd.direction = strings.ToLower(strings.TrimSpace(cmd.direction))
	switch cmd.direction {
	case "up", "down", "status":
	default:
		return command{}, fmt.Errorf("unsupported direction: %s (use up|down|status)", cmd.direction)
	}

	cmd.dsn = strings.TrimSpace(cmd.dsn)
	if cmd.dsn == "" {
		cmd.dsn = strings.TrimSpace(lookup(envPostgresDSN))
	}
	if cmd.dsn == "" {
		return command{}, errors.New(envPostgresDSN + " (or -dsn) is required")
	}
	return cmd, nil
}

func (c command) run(ctx context.Context, store migrator, out io.Writer) error {
	switch c.direction {
	case "up":
		if err := store.MigrateUp(ctx, c.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case "down":
		steps := c.steps
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	}

	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "migrate %s ok: version=%d applied=%d\n", c.direction, version, count)
	return nil
}

func main() {
	cmd, err := parseCommand(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, cmd.dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	if err := cmd.run(ctx, store, os.Stdout); err != nil {
		fail("%v", err)
	}
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
