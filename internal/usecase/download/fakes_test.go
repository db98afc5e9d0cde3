package download

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"tg-downloader-bot/internal/domain"
)

type call struct {
	op      string
	url     string
	text    string
	caption string
	items   int
}

type fakeNotifier struct {
	mu          sync.Mutex
	calls       []call
	nextRef     domain.MessageRef
	failText    bool
	failVideo   bool
	failDoc     bool
	failBatchAt int
	batches     int
}

func (f *fakeNotifier) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeNotifier) ops(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeNotifier) SendText(ctx context.Context, _ int64, text string) (domain.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.record(call{op: "text", text: text})
	if f.failText {
		return 0, errors.New("telegram down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRef++
	return f.nextRef, nil
}

func (f *fakeNotifier) EditText(ctx context.Context, _ int64, _ domain.MessageRef, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.record(call{op: "edit", text: text})
	return nil
}

func (f *fakeNotifier) DeleteMessage(ctx context.Context, _ int64, _ domain.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.record(call{op: "delete"})
	return nil
}

func (f *fakeNotifier) SendVideo(_ context.Context, _ int64, url, caption string) error {
	f.record(call{op: "video", url: url, caption: caption})
	if f.failVideo {
		return errors.New("file too large")
	}
	return nil
}

func (f *fakeNotifier) SendDocument(_ context.Context, _ int64, url, caption string) error {
	f.record(call{op: "document", url: url, caption: caption})
	if f.failDoc {
		return errors.New("wrong file identifier")
	}
	return nil
}

func (f *fakeNotifier) SendPhoto(_ context.Context, _ int64, url, caption string) error {
	f.record(call{op: "photo", url: url, caption: caption})
	return nil
}

func (f *fakeNotifier) SendPhotoBatch(_ context.Context, _ int64, items []domain.MediaItem, caption string) error {
	f.record(call{op: "batch", caption: caption, items: len(items)})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.failBatchAt > 0 && f.batches == f.failBatchAt {
		return errors.New("bad request")
	}
	return nil
}

type fakeResolver struct {
	result domain.MediaResult
	err    error
	panics bool
	calls  int
	// cancel имитирует остановку воркера во время запроса к апстриму.
	cancel context.CancelFunc
}

func (r *fakeResolver) Name() string { return "TikTok" }

func (r *fakeResolver) Matches(url string) bool {
	return strings.Contains(url, "tiktok.com/")
}

func (r *fakeResolver) Fetch(context.Context, string) (domain.MediaResult, error) {
	r.calls++
	if r.panics {
		panic("nil map")
	}
	if r.cancel != nil {
		r.cancel()
		return domain.MediaResult{}, &domain.UpstreamError{Platform: r.Name(), Err: context.Canceled}
	}
	return r.result, r.err
}

type lookup struct {
	resolver domain.Resolver
}

func (l lookup) ResolverFor(url string) (domain.Resolver, bool) {
	if l.resolver != nil && l.resolver.Matches(url) {
		return l.resolver, true
	}
	return nil, false
}

type memQueue struct {
	mu      sync.Mutex
	jobs    []domain.DownloadJob
	failPut bool
	acks    []bool
	done    chan struct{}
	want    int
}

func (q *memQueue) Enqueue(_ context.Context, job domain.DownloadJob) error {
	if q.failPut {
		return errors.New("queue unavailable")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) Receive(ctx context.Context) (domain.DownloadJob, domain.AckFunc, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return job, q.ack, nil
		}
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return domain.DownloadJob{}, nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (q *memQueue) ack(success bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acks = append(q.acks, success)
	if q.done != nil && len(q.acks) == q.want {
		close(q.done)
	}
	return nil
}
