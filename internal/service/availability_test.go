package service

import (
	"testing"
	"time"

	"github.com/mana170183uk/homeal-orders/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func str(s string) *string { return &s }
func num(n int) *int       { return &n }

func denyReason(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	denied, ok := err.(*models.AdmissionDeniedError)
	require.True(t, ok, "expected AdmissionDeniedError, got %T", err)
	return denied.Reason
}

func TestGateAdmitsUnconstrainedSeller(t *testing.T) {
	gate := NewAvailabilityGate()
	seller := &models.Seller{ID: 1}

	err := gate.Check(seller, time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC), 500)
	assert.NoError(t, err)
}

func TestGateVacationWindowInclusive(t *testing.T) {
	gate := NewAvailabilityGate()
	seller := &models.Seller{
		ID:            1,
		VacationStart: day(2026, 8, 10),
		VacationEnd:   day(2026, 8, 20),
	}

	// Boundary days are inside the window.
	err := gate.Check(seller, time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC), 0)
	assert.Equal(t, DenyReasonVacation, denyReason(t, err))

	err = gate.Check(seller, time.Date(2026, 8, 20, 23, 59, 0, 0, time.UTC), 0)
	assert.Equal(t, DenyReasonVacation, denyReason(t, err))

	assert.NoError(t, gate.Check(seller, time.Date(2026, 8, 9, 12, 0, 0, 0, time.UTC), 0))
	assert.NoError(t, gate.Check(seller, time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC), 0))
}

func TestGateCutoffAtOrPast(t *testing.T) {
	gate := NewAvailabilityGate()
	seller := &models.Seller{ID: 1, OrderCutoff: str("18:00")}

	assert.NoError(t, gate.Check(seller, time.Date(2026, 8, 31, 17, 59, 0, 0, time.UTC), 0))

	err := gate.Check(seller, time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC), 0)
	assert.Equal(t, DenyReasonCutoff, denyReason(t, err))

	err = gate.Check(seller, time.Date(2026, 8, 31, 22, 30, 0, 0, time.UTC), 0)
	assert.Equal(t, DenyReasonCutoff, denyReason(t, err))
}

func TestGateDailyCap(t *testing.T) {
	gate := NewAvailabilityGate()
	seller := &models.Seller{ID: 1, DailyOrderCap: num(2)}
	at := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, gate.Check(seller, at, 0))
	assert.NoError(t, gate.Check(seller, at, 1))

	err := gate.Check(seller, at, 2)
	assert.Equal(t, DenyReasonDailyCap, denyReason(t, err))
}

func TestGateCheckOrderIsFixed(t *testing.T) {
	gate := NewAvailabilityGate()
	// All three constraints trip; the vacation reason must win, then cutoff.
	seller := &models.Seller{
		ID:            1,
		VacationStart: day(2026, 8, 31),
		VacationEnd:   day(2026, 8, 31),
		OrderCutoff:   str("00:00"),
		DailyOrderCap: num(0),
	}
	at := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	err := gate.Check(seller, at, 99)
	assert.Equal(t, DenyReasonVacation, denyReason(t, err))

	seller.VacationStart, seller.VacationEnd = nil, nil
	err = gate.Check(seller, at, 99)
	assert.Equal(t, DenyReasonCutoff, denyReason(t, err))

	seller.OrderCutoff = nil
	err = gate.Check(seller, at, 99)
	assert.Equal(t, DenyReasonDailyCap, denyReason(t, err))
}

func TestDayBounds(t *testing.T) {
	at := time.Date(2026, 8, 31, 15, 42, 7, 0, time.UTC)
	start, end := DayBounds(at)

	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), end)
}
