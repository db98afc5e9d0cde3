package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"tg-downloader-bot/internal/adapters/repo"
	"tg-downloader-bot/internal/domain"
	"tg-downloader-bot/internal/usecase/subscription"
)

type memStore struct {
	*repo.Memory
}

func (s memStore) Load(ctx context.Context, id int64) (domain.User, error) {
	return s.FindByTGID(ctx, id)
}

type fixture struct {
	runner     *Runner
	out        *bytes.Buffer
	migrations int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := repo.NewMemory()
	_, err := mem.Create(context.Background(), 42, "alice")
	require.NoError(t, err)
	subs := subscription.NewService(memStore{mem}, zerolog.Nop())

	f := &fixture{out: &bytes.Buffer{}}
	f.runner = &Runner{
		out: f.out,
		open: func() (Subscriptions, func(), error) {
			return subs, func() {}, nil
		},
		migrate: func() error {
			f.migrations++
			return nil
		},
	}
	return f
}

func (f *fixture) run(args ...string) error {
	f.out.Reset()
	app := &cli.Command{Name: "subctl", Commands: f.runner.register()}
	return app.Run(context.Background(), append([]string{"subctl"}, args...))
}

func TestGrantStatusRevoke(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run("grant", "--user", "42", "--plan", "yearly"))
	require.Contains(t, f.out.String(), "42 is premium (yearly)")

	require.NoError(t, f.run("status", "-u", "42"))
	require.Contains(t, f.out.String(), "365 days remaining")

	require.NoError(t, f.run("revoke", "--user", "42"))
	require.Contains(t, f.out.String(), "free tier")

	require.NoError(t, f.run("status", "--user", "42"))
	require.Contains(t, f.out.String(), "no active subscription")
}

func TestGrantRejectsUnknownPlan(t *testing.T) {
	f := newFixture(t)
	err := f.run("grant", "--user", "42", "--plan", "weekly")
	require.ErrorIs(t, err, domain.ErrInvalidPlan)
}

func TestMigrate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.run("migrate"))
	require.Equal(t, 1, f.migrations)
	require.Contains(t, f.out.String(), "migrations applied")
}
