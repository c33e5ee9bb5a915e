package service

import (
	"fmt"
	"time"

	"github.com/mana170183uk/homeal-orders/internal/models"
)

// Denial reasons surfaced verbatim to buyers. The client reacts differently
// to each, so the strings are part of the contract.
const (
	DenyReasonVacation = "kitchen on holiday"
	DenyReasonCutoff   = "orders closed for today"
	DenyReasonDailyCap = "daily order limit reached"
)

// AvailabilityGate evaluates a seller's live constraints before an order may
// be created. Checks run in a fixed order and the first failure wins: a
// holiday always explains itself before a cutoff or cap reason would.
type AvailabilityGate struct{}

// NewAvailabilityGate creates a new availability gate
func NewAvailabilityGate() *AvailabilityGate {
	return &AvailabilityGate{}
}

// Check returns nil when the seller can take an order at requestedAt, or an
// AdmissionDeniedError with the specific reason. todayCount is the seller's
// count of non-cancelled non-rejected orders so far today. No side effects.
func (g *AvailabilityGate) Check(seller *models.Seller, requestedAt time.Time, todayCount int) error {
	if onVacation(seller, requestedAt) {
		return &models.AdmissionDeniedError{Reason: DenyReasonVacation}
	}

	if pastCutoff(seller, requestedAt) {
		return &models.AdmissionDeniedError{Reason: DenyReasonCutoff}
	}

	if seller.DailyOrderCap != nil && todayCount >= *seller.DailyOrderCap {
		return &models.AdmissionDeniedError{Reason: DenyReasonDailyCap}
	}

	return nil
}

// onVacation reports whether requestedAt's date falls inside the seller's
// inclusive [start, end] vacation window.
func onVacation(seller *models.Seller, requestedAt time.Time) bool {
	if seller.VacationStart == nil || seller.VacationEnd == nil {
		return false
	}
	day := dateOnly(requestedAt)
	return !day.Before(dateOnly(*seller.VacationStart)) && !day.After(dateOnly(*seller.VacationEnd))
}

// pastCutoff reports whether requestedAt's time-of-day is at or past the
// seller's configured cutoff.
func pastCutoff(seller *models.Seller, requestedAt time.Time) bool {
	if seller.OrderCutoff == nil {
		return false
	}
	var hh, mm int
	if _, err := fmt.Sscanf(*seller.OrderCutoff, "%d:%d", &hh, &mm); err != nil {
		return false
	}
	minutes := requestedAt.Hour()*60 + requestedAt.Minute()
	return minutes >= hh*60+mm
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayBounds returns the [start, end) bounds of requestedAt's calendar day,
// used to count a seller's orders against the daily cap.
func DayBounds(requestedAt time.Time) (time.Time, time.Time) {
	start := dateOnly(requestedAt)
	return start, start.AddDate(0, 0, 1)
}
