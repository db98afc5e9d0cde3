package domain

import (
	"context"
	"time"
)

// JobPriority задаёт порядок обработки задач. Большее значение обрабатывается раньше.
type JobPriority int

const (
	// PriorityDefault используется для бесплатных пользователей.
	PriorityDefault JobPriority = 1
	// PriorityHigh используется для пользователей с активной подпиской.
	PriorityHigh JobPriority = 5
	// MaxPriority задаёт верхнюю границу приоритета для брокера.
	MaxPriority JobPriority = 10
)

// PriorityForTier возвращает приоритет по уровню пользователя.
func PriorityForTier(tier UserTier) JobPriority {
	if tier == TierPremium {
		return PriorityHigh
	}
	return PriorityDefault
}

// DownloadJob содержит информацию о задаче скачивания.
type DownloadJob struct {
	ID         string      `json:"job_id"`
	ChatID     int64       `json:"chat_id"`
	UserTGID   int64       `json:"user_tg_id"`
	Text       string      `json:"text"`
	URL        string      `json:"url"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	Priority   JobPriority `json:"priority"`
	Attempt    int         `json:"attempt"`
}

// Retry возвращает копию задачи для повторной попытки.
func (j DownloadJob) Retry() DownloadJob {
	next := j
	next.Attempt++
	return next
}

// JobState описывает состояние задачи в конвейере.
type JobState string

const (
	StateAdmitted                    JobState = "admitted"
	StateQueued                      JobState = "queued"
	StateResolving                   JobState = "resolving"
	StateDelivering                  JobState = "delivering"
	StateDone                        JobState = "done"
	StateRejectedDuplicate           JobState = "rejected_duplicate"
	StateRejectedRateLimited         JobState = "rejected_rate_limited"
	StateRejectedUnsupportedPlatform JobState = "rejected_unsupported_platform"
	StateFailedFetch                 JobState = "failed_fetch"
	StateFailedDelivery              JobState = "failed_delivery"
	StateFailedUnexpected            JobState = "failed_unexpected"
)

// DownloadQueue описывает приоритетную очередь задач скачивания.
type DownloadQueue interface {
	Enqueue(ctx context.Context, job DownloadJob) error
	Receive(ctx context.Context) (DownloadJob, AckFunc, error)
}

// AckFunc подтверждает успешную обработку или запрашивает повтор задачи.
type AckFunc func(success bool) error
