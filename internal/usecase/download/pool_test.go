package download

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tg-downloader-bot/internal/domain"
)

type scriptedProcessor struct {
	mu   sync.Mutex
	seen []string
	fail map[string]bool
}

func (p *scriptedProcessor) Process(_ context.Context, job domain.DownloadJob) (domain.JobState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, job.ID)
	if p.fail[job.ID] {
		return domain.StateFailedUnexpected, errors.New("boom")
	}
	return domain.StateDone, nil
}

func TestPoolAcksByOutcome(t *testing.T) {
	q := &memQueue{done: make(chan struct{}), want: 2}
	q.jobs = []domain.DownloadJob{{ID: "ok"}, {ID: "bad"}}
	proc := &scriptedProcessor{fail: map[string]bool{"bad": true}}
	pool := NewPool(q, proc, 1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(finished)
	}()

	select {
	case <-q.done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs were not acknowledged")
	}
	cancel()
	<-finished

	require.Equal(t, []string{"ok", "bad"}, proc.seen)
	require.Equal(t, []bool{true, false}, q.acks)
}

func TestPoolStopsOnCancel(t *testing.T) {
	q := &memQueue{}
	pool := NewPool(q, &scriptedProcessor{}, 3, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestPoolRequeuesJobInterruptedByShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := &memQueue{done: make(chan struct{}), want: 1}
	q.jobs = []domain.DownloadJob{newJob()}
	n := &fakeNotifier{}
	pool := NewPool(q, NewProcessor(lookup{&fakeResolver{cancel: cancel}}, n, zerolog.Nop()), 1, zerolog.Nop())

	finished := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(finished)
	}()

	select {
	case <-q.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not acknowledged")
	}
	<-finished

	require.Equal(t, []bool{false}, q.acks)
	require.Len(t, n.ops("delete"), 1)
}
