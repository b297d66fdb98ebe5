package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/resale/internal/storage/postgres"
)

func noEnv(string) string { return "" }

func testPostgresDSN(t *testing.T) string {
	t.Helper()

	for _, dsn := range []string{os.Getenv("RESALE_POSTGRES_TEST_DSN"), os.Getenv(envPostgresDSN)} {
		dsn = strings.TrimSpace(dsn)
		if dsn == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		store, err := postgres.Open(ctx, dsn)
		cancel()
		if err != nil {
			continue
		}
		_ = store.Close()
		return dsn
	}

	t.Skip("postgres dsn is not available")
	return ""
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"-direction=DOWN", "-dsn= postgres://x "}, noEnv)
	require.NoError(t, err)
	assert.Equal(t, options{direction: "down", steps: 1, dsn: "postgres://x"}, opts)

	opts, err = parseOptions(nil, func(key string) string {
		if key == envPostgresDSN {
			return "postgres://from-env"
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, options{direction: "up", dsn: "postgres://from-env"}, opts)
}

func TestParseOptions_Errors(t *testing.T) {
	_, err := parseOptions([]string{"-direction=status"}, noEnv)
	assert.ErrorIs(t, err, errDSNRequired)

	_, err = parseOptions([]string{"-direction=sideways", "-dsn=postgres://x"}, noEnv)
	assert.ErrorContains(t, err, "unsupported direction")

	_, err = parseOptions([]string{"-steps=many"}, noEnv)
	assert.Error(t, err)
}

func TestRunStatusAndMigratePaths(t *testing.T) {
	dsn := testPostgresDSN(t)
	ctx := context.Background()

	for _, direction := range []string{"status", "up", "down", "up"} {
		var out bytes.Buffer
		opts := options{direction: direction, dsn: dsn}
		if direction == "down" {
			opts.steps = 1
		}
		require.NoError(t, run(ctx, opts, &out), direction)
		assert.Contains(t, out.String(), "migrate "+direction+" ok")
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
	require.Error(t, err)
	exitErr, ok := err.(*exec.ExitError)
	require.True(t, ok)
	assert.NotZero(t, exitErr.ExitCode())
}
