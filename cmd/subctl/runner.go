package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"

	"tg-downloader-bot/internal/domain"
)

// Subscriptions описывает операции над подписками, доступные из CLI.
type Subscriptions interface {
	Create(ctx context.Context, tgUserID int64, rawPlan string) (domain.User, error)
	Revoke(ctx context.Context, tgUserID int64) (domain.User, error)
	Details(ctx context.Context, tgUserID int64) (domain.SubscriptionDetails, error)
}

// Runner выполняет команды subctl.
type Runner struct {
	out     io.Writer
	open    func() (Subscriptions, func(), error)
	migrate func() error
}

func (r *Runner) register() []*cli.Command {
	userFlag := func() cli.Flag {
		return &cli.Int64Flag{
			Name:     "user",
			Aliases:  []string{"u"},
			Usage:    "Telegram user id",
			Required: true,
		}
	}
	return []*cli.Command{
		{
			Name:  "grant",
			Usage: "Activate a premium plan for a user",
			Flags: []cli.Flag{
				userFlag(),
				&cli.StringFlag{
					Name:    "plan",
					Aliases: []string{"p"},
					Usage:   "Plan: monthly or yearly",
					Value:   string(domain.PlanMonthly),
				},
			},
			Action: r.Grant,
		},
		{
			Name:   "revoke",
			Usage:  "End a user's subscription now",
			Flags:  []cli.Flag{userFlag()},
			Action: r.Revoke,
		},
		{
			Name:   "status",
			Usage:  "Show a user's subscription",
			Flags:  []cli.Flag{userFlag()},
			Action: r.Status,
		},
		{
			Name:   "migrate",
			Usage:  "Apply database migrations",
			Action: r.Migrate,
		},
	}
}

func (r *Runner) withSubs(fn func(Subscriptions) error) error {
	subs, closeFn, err := r.open()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeFn()
	return fn(subs)
}

// Grant оформляет подписку.
func (r *Runner) Grant(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.Int64("user")
	plan := cmd.String("plan")
	return r.withSubs(func(subs Subscriptions) error {
		user, err := subs.Create(ctx, userID, plan)
		if err != nil {
			return fmt.Errorf("grant %s to %d: %w", plan, userID, err)
		}
		fmt.Fprintf(r.out, "✓ %d is premium (%s) until %s\n", user.TGUserID, user.Plan, formatDate(user.SubscriptionEndDate))
		return nil
	})
}

// Revoke отзывает подписку.
func (r *Runner) Revoke(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.Int64("user")
	return r.withSubs(func(subs Subscriptions) error {
		if _, err := subs.Revoke(ctx, userID); err != nil {
			return fmt.Errorf("revoke %d: %w", userID, err)
		}
		fmt.Fprintf(r.out, "✓ %d is back on the free tier\n", userID)
		return nil
	})
}

// Status печатает состояние подписки.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.Int64("user")
	return r.withSubs(func(subs Subscriptions) error {
		d, err := subs.Details(ctx, userID)
		if err != nil {
			return fmt.Errorf("status %d: %w", userID, err)
		}
		if !d.Active {
			fmt.Fprintf(r.out, "%d: no active subscription\n", userID)
			return nil
		}
		fmt.Fprintf(r.out, "%d: %s, expires %s, %d days remaining\n", userID, d.Plan, formatDate(d.EndDate), d.DaysRemaining)
		return nil
	})
}

// Migrate применяет миграции схемы.
func (r *Runner) Migrate(context.Context, *cli.Command) error {
	if err := r.migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(r.out, "✓ migrations applied")
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.DateOnly)
}
