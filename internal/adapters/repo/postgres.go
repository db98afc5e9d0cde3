package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tg-downloader-bot/internal/domain"
	"tg-downloader-bot/internal/infra/metrics"
)

// pgxPool описывает используемую часть pgxpool.Pool, чтобы в тестах подставлять pgxmock.
type pgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres реализует хранилище пользователей на основе pgxpool.
type Postgres struct {
	pool pgxPool
}

var _ domain.UserRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool pgxPool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

const userColumns = `id, tg_user_id, username, tier, plan, subscription_start_date, subscription_end_date, requests_this_hour, last_request_at, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user     domain.User
		username sql.NullString
		tier     string
		plan     string
		subStart sql.NullTime
		subEnd   sql.NullTime
		lastReq  sql.NullTime
	)
	err := row.Scan(&user.ID, &user.TGUserID, &username, &tier, &plan, &subStart, &subEnd, &user.RequestsThisHour, &lastReq, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return domain.User{}, err
	}
	user.Username = username.String
	user.Tier = domain.UserTier(tier)
	user.Plan = domain.Plan(plan)
	user.SubscriptionStartDate = timePtr(subStart)
	user.SubscriptionEndDate = timePtr(subEnd)
	user.LastRequestAt = timePtr(lastReq)
	return user, nil
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	ts := v.Time
	return &ts
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// FindByTGID возвращает пользователя по Telegram ID.
func (p *Postgres) FindByTGID(ctx context.Context, tgUserID int64) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	user, err := scanUser(p.pool.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users WHERE tg_user_id=$1
`, tgUserID))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "users_get_by_tgid", "users", start, nil)
		return domain.User{}, domain.ErrUserNotFound
	}
	metrics.ObserveNetworkRequest("postgres", "users_get_by_tgid", "users", start, err)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Create создаёт пользователя на бесплатном уровне. Повторный вызов возвращает существующую запись.
func (p *Postgres) Create(ctx context.Context, tgUserID int64, username string) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	user, err := scanUser(p.pool.QueryRow(ctx, `
INSERT INTO users (tg_user_id, username, tier, plan)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tg_user_id) DO UPDATE
SET username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username)
RETURNING `+userColumns+`
`, tgUserID, strings.TrimSpace(username), string(domain.TierNormal), string(domain.PlanNone)))
	metrics.ObserveNetworkRequest("postgres", "users_create", "users", start, err)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Save сохраняет изменяемые поля пользователя.
func (p *Postgres) Save(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	saved, err := scanUser(p.pool.QueryRow(ctx, `
UPDATE users
SET username=$2, tier=$3, plan=$4, subscription_start_date=$5, subscription_end_date=$6,
    requests_this_hour=$7, last_request_at=$8, updated_at=now()
WHERE tg_user_id=$1
RETURNING `+userColumns+`
`, user.TGUserID, user.Username, string(user.Tier), string(user.Plan),
		nullTime(user.SubscriptionStartDate), nullTime(user.SubscriptionEndDate),
		user.RequestsThisHour, nullTime(user.LastRequestAt)))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "users_save", "users", start, nil)
		return domain.User{}, domain.ErrUserNotFound
	}
	metrics.ObserveNetworkRequest("postgres", "users_save", "users", start, err)
	if err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return saved, nil
}

// RecordRequest обновляет только счётчик запросов и время последнего запроса.
func (p *Postgres) RecordRequest(ctx context.Context, tgUserID int64, count int, at time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE users
SET requests_this_hour = COALESCE(NULLIF($2::int, 0), requests_this_hour),
    last_request_at=$3, updated_at=now()
WHERE tg_user_id=$1
`, tgUserID, count, at)
	metrics.ObserveNetworkRequest("postgres", "users_record_request", "users", start, err)
	if err != nil {
		return fmt.Errorf("record request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ExpireSubscription понижает уровень одним условным UPDATE, чтобы не затереть продление,
// оформленное после чтения пользователя.
func (p *Postgres) ExpireSubscription(ctx context.Context, tgUserID int64, now time.Time) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	user, err := scanUser(p.pool.QueryRow(ctx, `
UPDATE users
SET tier=$3, plan=$4, updated_at=now()
WHERE tg_user_id=$1 AND tier=$5
  AND (subscription_end_date IS NULL OR subscription_end_date < $2)
RETURNING `+userColumns+`
`, tgUserID, now, string(domain.TierNormal), string(domain.PlanNone), string(domain.TierPremium)))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "users_expire", "users", start, nil)
		return p.FindByTGID(ctx, tgUserID)
	}
	metrics.ObserveNetworkRequest("postgres", "users_expire", "users", start, err)
	if err != nil {
		return domain.User{}, fmt.Errorf("expire subscription: %w", err)
	}
	return user, nil
}
