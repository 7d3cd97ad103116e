package payments

import (
	"context"
	"strconv"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// StripeEscrow holds a flat deposit against a ride via PaymentIntents
// with manual capture. The amount is configuration, never derived from
// the ride: fare computation is out of scope.
type StripeEscrow struct {
	DepositCents int64
	Currency     string
}

// NewStripeEscrow sets the package-level stripe key and returns an
// escrow that holds depositCents per accepted ride.
func NewStripeEscrow(apiKey string, depositCents int64, currency string) *StripeEscrow {
	stripe.Key = apiKey
	if currency == "" {
		currency = "usd"
	}
	return &StripeEscrow{DepositCents: depositCents, Currency: currency}
}

// Hold creates a manual-capture PaymentIntent for the deposit and
// returns its id.
func (s *StripeEscrow) Hold(ctx context.Context, rideID int64) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(s.DepositCents),
		Currency:      stripe.String(s.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.AddMetadata("ride_id", strconv.FormatInt(rideID, 10))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// Capture finalizes a previously-held deposit.
func (s *StripeEscrow) Capture(ctx context.Context, intentID string) error {
	_, err := paymentintent.Capture(intentID, nil)
	return err
}

// Release cancels the hold without charging.
func (s *StripeEscrow) Release(ctx context.Context, intentID string) error {
	_, err := paymentintent.Cancel(intentID, nil)
	return err
}
