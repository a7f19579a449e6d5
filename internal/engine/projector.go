package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
)

// Ledger rules.
const (
	TakenReward       = 10.0
	MissedPenalty     = 0.5
	LowStockThreshold = 10
)

// The projector functions below are the only place that changes the ledger.
// Each one appends exactly one HistoryItem per delta, and one Notification for
// missed doses and purchases. Callers must hold the engine lock.

func (e *Engine) projectTaken(med *model.Medication, now time.Time) {
	e.profile.Ledger.Coins += TakenReward
	e.profile.Ledger.Streak++
	e.prependHistory(model.HistoryItem{
		Category:    model.HistoryMedication,
		Title:       "Medication Taken",
		Description: fmt.Sprintf("%s confirmed at %s.", med.Name, now.Format("15:04")),
		Value:       formatDelta(TakenReward),
		Timestamp:   now,
	})
}

func (e *Engine) projectMissed(missed []model.Medication, now time.Time) {
	if len(missed) == 0 {
		return
	}
	// The floor applies once to the whole batch, not per dose.
	e.profile.Ledger.Coins = floorZero(e.profile.Ledger.Coins - MissedPenalty*float64(len(missed)))

	history := make([]model.HistoryItem, 0, len(missed))
	notifications := make([]model.Notification, 0, len(missed))
	for _, med := range missed {
		history = append(history, model.HistoryItem{
			ID:          e.ids.NewID(),
			Category:    model.HistoryMedication,
			Title:       "Missed: " + med.Name,
			Description: fmt.Sprintf("Dose missed at %s. %s coins deducted.", med.Time, formatAmount(MissedPenalty)),
			Value:       formatDelta(-MissedPenalty),
			Timestamp:   now,
		})
		notifications = append(notifications, model.Notification{
			ID:       e.ids.NewID(),
			Title:    "Dose Missed!",
			Message:  fmt.Sprintf("You missed your %s dose. Your health is priority!", med.Name),
			Time:     now,
			Category: model.NotificationReminder,
		})
	}
	e.profile.History = append(history, e.profile.History...)
	e.profile.Notifications = append(notifications, e.profile.Notifications...)
}

func (e *Engine) projectPurchase(name string, price float64, now time.Time) {
	e.profile.Ledger.Coins = floorZero(e.profile.Ledger.Coins - price)
	e.prependHistory(model.HistoryItem{
		Category:    model.HistoryPurchase,
		Title:       "Purchased: " + name,
		Description: fmt.Sprintf("Spent %s coins.", formatAmount(price)),
		Value:       formatDelta(-price),
		Timestamp:   now,
	})
	e.prependNotification(model.Notification{
		Title:    "Transaction Successful",
		Message:  fmt.Sprintf("You've successfully claimed %s.", name),
		Time:     now,
		Category: model.NotificationReward,
	})
}

func (e *Engine) prependHistory(item model.HistoryItem) {
	if item.ID == "" {
		item.ID = e.ids.NewID()
	}
	e.profile.History = append([]model.HistoryItem{item}, e.profile.History...)
}

func (e *Engine) prependNotification(n model.Notification) {
	if n.ID == "" {
		n.ID = e.ids.NewID()
	}
	e.profile.Notifications = append([]model.Notification{n}, e.profile.Notifications...)
}

func floorZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDelta(v float64) string {
	if v >= 0 {
		return "+" + formatAmount(v)
	}
	return formatAmount(v)
}
