package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound возвращается, когда пользователь не найден в хранилище.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidPlan возвращается для неизвестного тарифа.
	ErrInvalidPlan = errors.New("invalid subscription plan")

	// ErrCacheMiss возвращается кэшем, когда ключ отсутствует.
	ErrCacheMiss = errors.New("cache miss")

	// ErrAdmissionRejected служит общим признаком отказа в приёме задачи.
	ErrAdmissionRejected = errors.New("admission rejected")

	// ErrInvalidResultShape означает, что ответ апстрима корректен, но непригоден.
	ErrInvalidResultShape = errors.New("invalid response shape")
)

// AdmissionReason описывает причину отказа в приёме.
type AdmissionReason string

const (
	ReasonDuplicate           AdmissionReason = "duplicate"
	ReasonRateLimited         AdmissionReason = "rate_limited"
	ReasonUnsupportedPlatform AdmissionReason = "unsupported_platform"
)

// AdmissionError возвращается синхронно при отказе в постановке задачи.
type AdmissionError struct {
	Reason AdmissionReason
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("admission rejected: %s", e.Reason)
}

// Is позволяет сравнивать с ErrAdmissionRejected.
func (e *AdmissionError) Is(target error) bool {
	return target == ErrAdmissionRejected
}

// State возвращает терминальное состояние задачи для причины отказа.
func (e *AdmissionError) State() JobState {
	switch e.Reason {
	case ReasonDuplicate:
		return StateRejectedDuplicate
	case ReasonRateLimited:
		return StateRejectedRateLimited
	default:
		return StateRejectedUnsupportedPlatform
	}
}

// RejectReason извлекает причину отказа, если err является AdmissionError.
func RejectReason(err error) (AdmissionReason, bool) {
	var admErr *AdmissionError
	if errors.As(err, &admErr) {
		return admErr.Reason, true
	}
	return "", false
}

// UpstreamError возвращается резолвером после исчерпания повторов.
type UpstreamError struct {
	Platform string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream: %v", e.Platform, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// DeliveryError возвращается, когда не сработали ни основной, ни запасной способ доставки.
type DeliveryError struct {
	Primary  error
	Fallback error
}

func (e *DeliveryError) Error() string {
	if e.Fallback == nil {
		return fmt.Sprintf("delivery failed: %v", e.Primary)
	}
	return fmt.Sprintf("delivery failed: %v; fallback: %v", e.Primary, e.Fallback)
}

func (e *DeliveryError) Unwrap() []error {
	if e.Fallback == nil {
		return []error{e.Primary}
	}
	return []error{e.Primary, e.Fallback}
}
