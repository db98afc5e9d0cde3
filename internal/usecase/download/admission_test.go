package download

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tg-downloader-bot/internal/adapters/repo"
	"tg-downloader-bot/internal/domain"
	"tg-downloader-bot/internal/infra/cache"
	"tg-downloader-bot/internal/usecase/limits"
	"tg-downloader-bot/internal/usecase/subscription"
	"tg-downloader-bot/internal/usecase/users"
)

type admissionFixture struct {
	admission *Admission
	queue     *memQueue
	limiter   *limits.RateLimiter
	dedup     *limits.Dedup
	subs      *subscription.Service
	users     *users.Service
}

func newAdmission(t *testing.T) admissionFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.NewRedis(client)
	logger := zerolog.Nop()

	userSvc := users.NewService(repo.NewMemory(), c, time.Minute, logger)
	subs := subscription.NewService(userSvc, logger)
	limiter := limits.NewRateLimiter(c, subs, 3, logger)
	dedup := limits.NewDedup(c, time.Minute, logger)
	q := &memQueue{}
	a := NewAdmission(userSvc, subs, dedup, limiter, lookup{&fakeResolver{}}, q, logger)
	return admissionFixture{admission: a, queue: q, limiter: limiter, dedup: dedup, subs: subs, users: userSvc}
}

func submission(text string) Submission {
	return Submission{ChatID: 100, UserTGID: 7, Username: "alice", Text: text}
}

func requireRejected(t *testing.T, err error, reason domain.AdmissionReason) {
	t.Helper()
	require.ErrorIs(t, err, domain.ErrAdmissionRejected)
	got, ok := domain.RejectReason(err)
	require.True(t, ok)
	require.Equal(t, reason, got)
}

func TestExtractURL(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "plain", text: "https://vm.tiktok.com/ZM123/", want: "https://vm.tiktok.com/ZM123/"},
		{name: "surrounded by text", text: "look at this https://www.tiktok.com/@a/video/1 lol", want: "https://www.tiktok.com/@a/video/1"},
		{name: "trailing punctuation", text: "(https://www.tiktok.com/@a/video/1).", want: "https://www.tiktok.com/@a/video/1"},
		{name: "no url", text: "hello there", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExtractURL(tt.text))
		})
	}
}

func TestSubmitEnqueuesJob(t *testing.T) {
	f := newAdmission(t)
	f.admission.newID = func() string { return "job-1" }

	job, err := f.admission.Submit(context.Background(), submission("see https://www.tiktok.com/@a/video/1"))
	require.NoError(t, err)
	require.Equal(t, "job-1", job.ID)
	require.Equal(t, "https://www.tiktok.com/@a/video/1", job.URL)
	require.Equal(t, domain.PriorityDefault, job.Priority)
	require.Len(t, f.queue.jobs, 1)

	user, err := f.users.Load(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, user.RequestsThisHour)
	require.NotNil(t, user.LastRequestAt)
}

func TestSubmitDuplicate(t *testing.T) {
	f := newAdmission(t)
	ctx := context.Background()

	_, err := f.admission.Submit(ctx, submission("https://www.tiktok.com/@a/video/1"))
	require.NoError(t, err)
	_, err = f.admission.Submit(ctx, submission("https://www.tiktok.com/@a/video/1"))
	requireRejected(t, err, domain.ReasonDuplicate)
	require.Len(t, f.queue.jobs, 1)
	require.Equal(t, 1, f.limiter.Used(ctx, 7), "duplicates do not consume quota")
}

func TestSubmitRateLimitedOnFourthFreeRequest(t *testing.T) {
	f := newAdmission(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		_, err := f.admission.Submit(ctx, submission("https://www.tiktok.com/@a/video/"+id))
		require.NoError(t, err)
	}
	_, err := f.admission.Submit(ctx, submission("https://www.tiktok.com/@a/video/4"))
	requireRejected(t, err, domain.ReasonRateLimited)
	require.Len(t, f.queue.jobs, 3)
	require.Equal(t, 3, f.limiter.Used(ctx, 7))

	_, err = f.admission.Submit(ctx, submission("https://www.tiktok.com/@a/video/4"))
	requireRejected(t, err, domain.ReasonRateLimited)
}

func TestSubmitUnsupported(t *testing.T) {
	f := newAdmission(t)
	ctx := context.Background()

	_, err := f.admission.Submit(ctx, submission("no links here"))
	requireRejected(t, err, domain.ReasonUnsupportedPlatform)

	_, err = f.admission.Submit(ctx, submission("https://example.com/video/1"))
	requireRejected(t, err, domain.ReasonUnsupportedPlatform)
	require.Zero(t, f.limiter.Used(ctx, 7), "quota is released for unsupported links")

	_, err = f.admission.Submit(ctx, submission("https://example.com/video/1"))
	requireRejected(t, err, domain.ReasonUnsupportedPlatform)
	require.Empty(t, f.queue.jobs)
}

func TestSubmitEnqueueFailureReleasesReservations(t *testing.T) {
	f := newAdmission(t)
	f.queue.failPut = true
	ctx := context.Background()

	_, err := f.admission.Submit(ctx, submission("https://www.tiktok.com/@a/video/1"))
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrAdmissionRejected))
	require.Zero(t, f.limiter.Used(ctx, 7))

	f.queue.failPut = false
	_, err = f.admission.Submit(ctx, submission("https://www.tiktok.com/@a/video/1"))
	require.NoError(t, err, "a failed enqueue must not leave a dedup mark")
}

func TestSubmitPremiumGetsHighPriorityWithoutQuota(t *testing.T) {
	f := newAdmission(t)
	ctx := context.Background()

	_, err := f.users.FindOrCreate(ctx, 7, "alice")
	require.NoError(t, err)
	_, err = f.subs.Create(ctx, 7, "monthly")
	require.NoError(t, err)

	for _, id := range []string{"1", "2", "3", "4", "5"} {
		job, err := f.admission.Submit(ctx, submission("https://www.tiktok.com/@a/video/"+id))
		require.NoError(t, err)
		require.Equal(t, domain.PriorityHigh, job.Priority)
	}
	require.Zero(t, f.limiter.Used(ctx, 7))
}

func TestRejectionText(t *testing.T) {
	require.Contains(t, RejectionText(domain.ReasonRateLimited, 3), "3 downloads/hour")
	require.Equal(t, msgDuplicate, RejectionText(domain.ReasonDuplicate, 3))
	require.Equal(t, msgUnsupported, RejectionText(domain.ReasonUnsupportedPlatform, 3))
}

// grantOnRead оформляет подписку сразу после того, как приём прочитал пользователя.
type grantOnRead struct {
	*users.Service
	subs    *subscription.Service
	granted bool
}

func (g *grantOnRead) FindOrCreate(ctx context.Context, tgUserID int64, username string) (domain.User, error) {
	user, err := g.Service.FindOrCreate(ctx, tgUserID, username)
	if err != nil || g.granted {
		return user, err
	}
	g.granted = true
	if _, err := g.subs.Create(ctx, tgUserID, "monthly"); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func TestSubmitKeepsSubscriptionGrantedDuringAdmission(t *testing.T) {
	f := newAdmission(t)
	ctx := context.Background()
	provider := &grantOnRead{Service: f.users, subs: f.subs}
	a := NewAdmission(provider, f.subs, f.dedup, f.limiter, lookup{&fakeResolver{}}, f.queue, zerolog.Nop())

	_, err := a.Submit(ctx, submission("https://www.tiktok.com/@a/video/1"))
	require.NoError(t, err)
	require.True(t, provider.granted)

	user, err := f.users.Load(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, domain.TierPremium, user.Tier)
	require.Equal(t, domain.PlanMonthly, user.Plan)
	require.NotNil(t, user.SubscriptionEndDate)
	require.NotNil(t, user.LastRequestAt)
	require.Equal(t, 1, user.RequestsThisHour)
}

func TestSubmitExpiredPremiumLosesBypass(t *testing.T) {
	f := newAdmission(t)
	ctx := context.Background()

	user, err := f.users.FindOrCreate(ctx, 7, "alice")
	require.NoError(t, err)
	start := time.Now().Add(-31 * 24 * time.Hour)
	end := time.Now().Add(-time.Hour)
	user.Tier = domain.TierPremium
	user.Plan = domain.PlanMonthly
	user.SubscriptionStartDate = &start
	user.SubscriptionEndDate = &end
	_, err = f.users.Save(ctx, user)
	require.NoError(t, err)

	for _, id := range []string{"1", "2", "3"} {
		job, err := f.admission.Submit(ctx, submission("https://www.tiktok.com/@a/video/"+id))
		require.NoError(t, err)
		require.Equal(t, domain.PriorityDefault, job.Priority)
	}
	_, err = f.admission.Submit(ctx, submission("https://www.tiktok.com/@a/video/4"))
	requireRejected(t, err, domain.ReasonRateLimited)

	stored, err := f.users.Load(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, domain.TierNormal, stored.Tier)
	require.Equal(t, domain.PlanNone, stored.Plan)
}
