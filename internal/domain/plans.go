package domain

import (
	"strings"
	"time"
)

// Plan описывает тариф подписки.
type Plan string

const (
	PlanNone    Plan = "none"
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

// PlanSpec описывает параметры платного тарифа.
type PlanSpec struct {
	Plan     Plan
	Name     string
	Duration time.Duration
	PriceUSD float64
}

var plans = map[Plan]PlanSpec{
	PlanMonthly: {
		Plan:     PlanMonthly,
		Name:     "Monthly",
		Duration: 30 * 24 * time.Hour,
		PriceUSD: 9.99,
	},
	PlanYearly: {
		Plan:     PlanYearly,
		Name:     "Yearly",
		Duration: 365 * 24 * time.Hour,
		PriceUSD: 99.99,
	},
}

// ParsePlan приводит название тарифа к Plan. Для неизвестных и бесплатного тарифа возвращает ErrInvalidPlan.
func ParsePlan(raw string) (Plan, error) {
	plan := Plan(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := plans[plan]; !ok {
		return "", ErrInvalidPlan
	}
	return plan, nil
}

// SpecForPlan возвращает параметры платного тарифа.
func SpecForPlan(plan Plan) (PlanSpec, bool) {
	spec, ok := plans[plan]
	return spec, ok
}

// YearlyDiscountPercent считает выгоду годового тарифа относительно двенадцати месячных.
func YearlyDiscountPercent() int {
	monthly := plans[PlanMonthly].PriceUSD * 12
	yearly := plans[PlanYearly].PriceUSD
	if monthly <= 0 {
		return 0
	}
	return int((1-yearly/monthly)*100 + 0.5)
}
