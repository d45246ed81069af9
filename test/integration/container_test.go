package integration

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/medletter/internal/platform/db"
)

const (
	postgresImage = "postgres:16-alpine"
	readyTimeout  = 30 * time.Second
)

// startPostgresContainer runs a throwaway postgres with docker, publishing
// 5432 on an ephemeral loopback port, and returns its connection string
// and a stop function.
func startPostgresContainer(ctx context.Context) (string, func(), error) {
	name := "letter-readmodel-" + uuid.NewString()[:8]
	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"--name", name,
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER=letter",
		"-e", "POSTGRES_PASSWORD=letter",
		"-e", "POSTGRES_DB=letters",
		postgresImage,
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run: %w: %s", err, strings.TrimSpace(string(out)))
	}
	stop := func() {
		_ = exec.Command("docker", "stop", name).Run()
	}

	out, err = exec.CommandContext(ctx, "docker", "port", name, "5432/tcp").Output()
	if err != nil {
		stop()
		return "", nil, fmt.Errorf("docker port: %w", err)
	}
	// docker may print one mapping per address family; the first is ours.
	addr := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	if _, _, err := net.SplitHostPort(addr); err != nil {
		stop()
		return "", nil, fmt.Errorf("unexpected port mapping %q: %w", addr, err)
	}

	return "postgres://letter:letter@" + addr + "/letters?sslmode=disable", stop, nil
}

// openReadModel waits for postgres at connStr to answer, then applies the
// read-model migrations so every test starts from the consultation,
// laboratory and investigation tables.
func openReadModel(ctx context.Context, connStr, migrationsDir string) (*pgxpool.Pool, error) {
	pool, err := waitForPostgres(ctx, connStr, readyTimeout)
	if err != nil {
		return nil, err
	}
	n, err := db.NewMigrator(pool, migrationsDir).Up(ctx, db.DefaultSchema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply read-model migrations: %w", err)
	}
	if n == 0 {
		if _, err := pool.Exec(ctx, "SELECT 1 FROM consultations LIMIT 1"); err != nil {
			pool.Close()
			return nil, fmt.Errorf("read model missing: %w", err)
		}
	}
	return pool, nil
}

// waitForPostgres retries until a pool can ping the server or timeout
// elapses. A fresh container accepts TCP before it accepts logins.
func waitForPostgres(ctx context.Context, connStr string, timeout time.Duration) (*pgxpool.Pool, error) {
	deadline := time.Now().Add(timeout)
	for {
		attempt, cancel := context.WithTimeout(ctx, 2*time.Second)
		pool, err := db.NewPool(attempt, connStr, 4, 1)
		cancel()
		if err == nil {
			return pool, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("postgres not ready after %v: %w", timeout, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}
