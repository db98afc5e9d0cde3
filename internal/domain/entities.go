package domain

import "time"

// UserTier описывает уровень обслуживания пользователя.
type UserTier string

const (
	TierNormal  UserTier = "normal"
	TierPremium UserTier = "premium"
)

// User описывает пользователя Telegram в системе.
type User struct {
	ID                    int64      `json:"id"`
	TGUserID              int64      `json:"tg_user_id"`
	Username              string     `json:"username"`
	Tier                  UserTier   `json:"tier"`
	Plan                  Plan       `json:"plan"`
	SubscriptionStartDate *time.Time `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time `json:"subscription_end_date,omitempty"`
	RequestsThisHour      int        `json:"requests_this_hour"`
	LastRequestAt         *time.Time `json:"last_request_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// IsPremium сообщает, помечен ли пользователь премиальным уровнем.
// Срок подписки здесь не проверяется, это делает subscription.Service.
func (u User) IsPremium() bool {
	return u.Tier == TierPremium
}

// Demote переводит пользователя на бесплатный уровень.
func (u *User) Demote() {
	u.Tier = TierNormal
	u.Plan = PlanNone
}

// SubscriptionDetails содержит состояние подписки для отображения.
type SubscriptionDetails struct {
	Active        bool
	Plan          Plan
	EndDate       *time.Time
	DaysRemaining int
}
