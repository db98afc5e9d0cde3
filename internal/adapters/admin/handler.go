package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
	httpinfra "tg-downloader-bot/internal/infra/http"
	"tg-downloader-bot/internal/usecase/subscription"
)

// Subscriptions описывает операции с подписками, доступные администратору.
type Subscriptions interface {
	Create(ctx context.Context, tgUserID int64, rawPlan string) (domain.User, error)
	Revoke(ctx context.Context, tgUserID int64) (domain.User, error)
	Details(ctx context.Context, tgUserID int64) (domain.SubscriptionDetails, error)
}

// Handler обслуживает административный API подписок.
type Handler struct {
	subs Subscriptions
	log  zerolog.Logger
}

// NewHandler создаёт обработчик.
func NewHandler(subs Subscriptions, logger zerolog.Logger) *Handler {
	return &Handler{subs: subs, log: logger}
}

type grantRequest struct {
	UserID int64  `json:"user_id"`
	Plan   string `json:"plan"`
}

// SubscriptionResponse описывает состояние подписки пользователя.
type SubscriptionResponse struct {
	UserID        int64      `json:"user_id"`
	Active        bool       `json:"active"`
	Tier          string     `json:"tier,omitempty"`
	Plan          string     `json:"plan"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	DaysRemaining int        `json:"days_remaining"`
}

// Mount регистрирует маршруты под защитой токена администратора.
func (h *Handler) Mount(r chi.Router, token string) {
	r.Route("/api/v1/subscriptions", func(sub chi.Router) {
		sub.Use(httpinfra.AdminAuthMiddleware(token))
		sub.Post("/", h.grant)
		sub.Get("/{userID}", h.details)
		sub.Delete("/{userID}", h.revoke)
	})
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == 0 {
		httpinfra.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	user, err := h.subs.Create(r.Context(), req.UserID, req.Plan)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, SubscriptionResponse{
		UserID:        user.TGUserID,
		Active:        true,
		Tier:          string(user.Tier),
		Plan:          string(user.Plan),
		StartDate:     user.SubscriptionStartDate,
		EndDate:       user.SubscriptionEndDate,
		DaysRemaining: daysUntil(user.SubscriptionEndDate),
	})
}

func (h *Handler) details(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}
	d, err := h.subs.Details(r.Context(), userID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, SubscriptionResponse{
		UserID:        userID,
		Active:        d.Active,
		Plan:          string(d.Plan),
		EndDate:       d.EndDate,
		DaysRemaining: d.DaysRemaining,
	})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}
	user, err := h.subs.Revoke(r.Context(), userID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, SubscriptionResponse{
		UserID:  user.TGUserID,
		Active:  false,
		Tier:    string(user.Tier),
		Plan:    string(user.Plan),
		EndDate: user.SubscriptionEndDate,
	})
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPlan):
		httpinfra.WriteError(w, http.StatusBadRequest, "unknown plan, use monthly or yearly")
	case errors.Is(err, domain.ErrUserNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, "user not found")
	default:
		h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Msg("admin: ошибка обработки запроса")
		httpinfra.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id == 0 {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func daysUntil(end *time.Time) int {
	if end == nil {
		return 0
	}
	return subscription.DaysRemaining(*end, time.Now())
}
