package service

import (
	"math"

	"github.com/mana170183uk/homeal-orders/internal/models"
)

// Quote is the computed payment split for an order, in integer pence.
// Invariants: Total == Subtotal + DeliveryFee and PlatformFee + SellerPayout
// == Total, for any commission rate in [0, 100].
type Quote struct {
	SubtotalPence     int64
	DeliveryFeePence  int64
	TotalPence        int64
	PlatformFeePence  int64
	SellerPayoutPence int64
	CommissionRate    float64
}

// PricingCalculator computes the subtotal, delivery fee and the
// platform/seller split. The delivery fee is a platform constant captured at
// order time; the commission rate is a seller override or the platform
// default, expressed as a percentage.
type PricingCalculator struct {
	deliveryFeePence int64
	defaultRate      float64
}

// NewPricingCalculator creates a new pricing calculator
func NewPricingCalculator(deliveryFeePence int64, defaultRate float64) *PricingCalculator {
	return &PricingCalculator{
		deliveryFeePence: deliveryFeePence,
		defaultRate:      defaultRate,
	}
}

// Price computes the quote for the given order lines using the seller's
// commission override when set.
func (p *PricingCalculator) Price(items []models.OrderItem, seller *models.Seller) Quote {
	rate := p.defaultRate
	if seller.CommissionRate != nil {
		rate = *seller.CommissionRate
	}

	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPricePence * int64(item.Quantity)
	}

	total := subtotal + p.deliveryFeePence
	fee := int64(math.Round(float64(total) * rate / 100))
	payout := total - fee

	return Quote{
		SubtotalPence:     subtotal,
		DeliveryFeePence:  p.deliveryFeePence,
		TotalPence:        total,
		PlatformFeePence:  fee,
		SellerPayoutPence: payout,
		CommissionRate:    rate,
	}
}
