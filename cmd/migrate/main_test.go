package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/yummybites/internal/storage/postgres"
)

type fakeMigrator struct {
	up, down  []int
	version   int64
	applied   int
	upErr     error
	statusErr error
}

func (f *fakeMigrator) MigrateUp(_ context.Context, steps int) error {
	f.up = append(f.up, steps)
	return f.upErr
}

func (f *fakeMigrator) MigrateDown(_ context.Context, steps int) error {
	f.down = append(f.down, steps)
	return nil
}

func (f *fakeMigrator) MigrationStatus(context.Context) (int64, int, error) {
	return f.version, f.applied, f.statusErr
}

func noEnv(string) string { return "" }

func TestParseCommand(t *testing.T) {
	cmd, err := parseCommand([]string{"-direction", " DOWN ", "-steps", "2"}, func(key string) string {
		if key == envPostgresDSN {
			return " postgres://yb@localhost/yb "
		}
		return ""
	}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.direction != "down" || cmd.steps != 2 || cmd.dsn != "postgres://yb@localhost/yb" {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	cmd, err = parseCommand([]string{"-dsn=postgres://flag@localhost/yb"}, noEnv, io.Discard)
	if err != nil || cmd.direction != "up" || cmd.dsn != "postgres://flag@localhost/yb" {
		t.Fatalf("unexpected command: %+v %v", cmd, err)
	}
}

func TestParseCommand_Errors(t *testing.T) {
	if _, err := parseCommand([]string{"-direction=status"}, noEnv, io.Discard); err == nil || !strings.Contains(err.Error(), envPostgresDSN) {
		t.Fatalf("expected missing dsn error, got %v", err)
	}
	if _, err := parseCommand([]string{"-direction=sideways", "-dsn=x"}, noEnv, io.Discard); err == nil || !strings.Contains(err.Error(), "unsupported direction") {
		t.Fatalf("expected unsupported direction error, got %v", err)
	}
}

func TestCommandRun(t *testing.T) {
	store := &fakeMigrator{version: 3, applied: 3}
	var out bytes.Buffer

	if err := (command{direction: "up"}).run(context.Background(), store, &out); err != nil {
		t.Fatalf("up failed: %v", err)
	}
	if err := (command{direction: "down"}).run(context.Background(), store, &out); err != nil {
		t.Fatalf("down failed: %v", err)
	}
	if err := (command{direction: "status"}).run(context.Background(), store, &out); err != nil {
		t.Fatalf("status failed: %v", err)
	}

	if len(store.up) != 1 || store.up[0] != 0 {
		t.Fatalf("unexpected up calls: %v", store.up)
	}
	if len(store.down) != 1 || store.down[0] != 1 {
		t.Fatalf("down must default to one step: %v", store.down)
	}
	if !strings.Contains(out.String(), "migrate status ok: version=3 applied=3") {
		t.Fatalf("unexpected output: %s", out.String())
	}

	store.upErr = errors.New("boom")
	if err := (command{direction: "up"}).run(context.Background(), store, io.Discard); err == nil || !strings.Contains(err.Error(), "migrate up failed") {
		t.Fatalf("expected up error, got %v", err)
	}
}

func TestCommandRun_Postgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("YB_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	defer store.Close()

	for _, direction := range []string{"status", "up", "down", "up"} {
		if err := (command{direction: direction}).run(ctx, store, io.Discard); err != nil {
			t.Fatalf("%s failed: %v", direction, err)
		}
	}
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}
