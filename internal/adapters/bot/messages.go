package bot

import (
	"fmt"
	"strings"

	"tg-downloader-bot/internal/domain"
)

const (
	msgNoUser      = "Could not identify you. Please try again."
	msgError       = "❌ Something went wrong!\n\nPlease try again later."
	msgNoActiveSub = "🔍 No Active Subscription\n\n💎 Want premium benefits? Use /premium"
)

func buildStartMessage(freeLimit int) string {
	return "🎬 Welcome to Video Downloader Bot!\n\n" +
		"🔗 Send any video link to remove watermarks!\n\n" +
		fmt.Sprintf("⚡ Free: %d downloads/hour\n", freeLimit) +
		"💎 Premium: Unlimited + Priority\n\n" +
		"👉 /premium - Upgrade options\n" +
		"📚 /help - How to use"
}

func buildHelpMessage(platforms []string) string {
	supported := "none"
	if len(platforms) > 0 {
		supported = strings.Join(platforms, ", ")
	}
	return "📚 How to use:\n\n" +
		"1️⃣ Send video link\n" +
		"2️⃣ Get watermark-free video!\n\n" +
		fmt.Sprintf("📺 Supported: %s\n\n", supported) +
		"🔹 /premium - Upgrade account\n" +
		"🔹 /subscription - Your plan\n" +
		"🔹 /status - Your usage"
}

func planPrice(plan domain.Plan) string {
	spec, ok := domain.SpecForPlan(plan)
	if !ok {
		return ""
	}
	return fmt.Sprintf("$%.2f", spec.PriceUSD)
}

func buildPremiumMessage() string {
	return "💎 Premium Benefits:\n\n" +
		"✅ Unlimited downloads\n" +
		"🚀 Priority processing\n" +
		"⏱️ No waiting limits\n\n" +
		"💰 Plans:\n" +
		fmt.Sprintf("💵 Monthly: %s\n", planPrice(domain.PlanMonthly)) +
		fmt.Sprintf("💎 Yearly: %s (Save %d%%!)\n\n", planPrice(domain.PlanYearly), domain.YearlyDiscountPercent()) +
		"📩 See /subscribe to get started."
}

func buildSubscribeMessage() string {
	return "💎 Get Premium in 3 Steps:\n\n" +
		"1️⃣ Ask the bot administrator for access\n" +
		"2️⃣ Choose your plan:\n" +
		fmt.Sprintf("   • Monthly (%s)\n", planPrice(domain.PlanMonthly)) +
		fmt.Sprintf("   • Yearly (%s) - BEST VALUE!\n", planPrice(domain.PlanYearly)) +
		"3️⃣ Complete payment\n\n" +
		"✨ Instant activation!"
}

func planName(plan domain.Plan) string {
	if spec, ok := domain.SpecForPlan(plan); ok {
		return spec.Name
	}
	return "Free"
}

func buildSubscriptionMessage(d domain.SubscriptionDetails) string {
	if !d.Active {
		return msgNoActiveSub
	}
	lines := []string{
		"📊 Your Premium Plan",
		"",
		fmt.Sprintf("📅 %s (%s)", planName(d.Plan), planPrice(d.Plan)),
		"✅ Active",
	}
	if d.EndDate != nil {
		lines = append(lines, "⏳ Expires: "+d.EndDate.UTC().Format("Mon Jan 02 2006"))
	}
	lines = append(lines, fmt.Sprintf("📆 %d days remaining", d.DaysRemaining))
	return strings.Join(lines, "\n")
}

func buildStatusMessage(d domain.SubscriptionDetails, remaining, limit int) string {
	lines := []string{"📊 Your Account", ""}
	if d.Active {
		lines = append(lines,
			"👤 💎 Premium",
			"📥 Downloads: ∞ Unlimited",
			fmt.Sprintf("📅 Plan: %s", planName(d.Plan)),
			fmt.Sprintf("⏳ Expires in %d days", d.DaysRemaining),
			"",
			"✨ Thank you for being premium!",
		)
		return strings.Join(lines, "\n")
	}
	lines = append(lines,
		"👤 ⚡ Free",
		fmt.Sprintf("📥 Downloads: %d/%d this hour", remaining, limit),
		"",
		"💎 Want unlimited downloads? Use /premium",
	)
	return strings.Join(lines, "\n")
}
