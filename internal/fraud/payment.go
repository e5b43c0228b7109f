package fraud

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/audit"
	"github.com/attendly/attendly/internal/common/errors"
	"github.com/attendly/attendly/internal/metrics"
)

// AnalyzePayment scores one payment attempt against the guest's payment
// history, the card's cross-guest usage, and the expected ticket price for
// the event. Same degradation semantics as check-in analysis.
func (s *Scorer) AnalyzePayment(ctx context.Context, attempt *PaymentAttempt) (*RiskScore, error) {
	start := s.now()
	at := attempt.Timestamp
	if at.IsZero() {
		at = s.now()
	}

	event, err := s.events.GetEventInfo(ctx, attempt.EventID)
	if err != nil {
		if !errors.IsTransient(err) {
			metrics.RecordAnalyzerInvocation("payment", "error", s.now().Sub(start))
			return nil, err
		}
		s.logger.Warn("event lookup degraded, scoring without expected price",
			zap.String("event_id", attempt.EventID), zap.Error(err))
		event = nil
	}
	degraded := event == nil

	weights := s.effectiveWeights(ctx, defaultPaymentWeights)
	eval := newEvaluation(weights)

	velocity, err := s.payments.CountByGuestSince(ctx, attempt.GuestID, at.Add(-10*time.Minute))
	eval.boolean(FactorPaymentVelocity,
		fmt.Sprintf("more than %d payments within 10 minutes", s.cfg.MaxPaymentsPer10Min),
		velocity > s.cfg.MaxPaymentsPer10Min, err)

	cardGuests, err := s.payments.CountDistinctGuestsByCardSince(ctx, attempt.CardSuffix, at.Add(-30*24*time.Hour))
	eval.boolean(FactorCardReputation,
		fmt.Sprintf("card used by %d or more guests within 30 days", s.cfg.CardGuestLimit30d),
		attempt.CardSuffix != "" && cardGuests >= s.cfg.CardGuestLimit30d, err)

	amountTriggered := false
	if event != nil && event.TicketPrice > 0 {
		ratio := attempt.Amount / event.TicketPrice
		amountTriggered = ratio > 3 || ratio < 0.1
	}
	eval.boolean(FactorAmountAnomaly,
		"amount far outside the expected ticket price", amountTriggered, nil)

	eval.boolean(FactorGeoMismatch,
		"IP country differs from card issuing country",
		attempt.IPCountry != "" && attempt.CardCountry != "" && attempt.IPCountry != attempt.CardCountry, nil)

	deviceFailures, err := s.payments.CountFailedByDeviceSince(ctx, attempt.DeviceID, at.Add(-7*24*time.Hour))
	eval.boolean(FactorDeviceHistory,
		"device has repeated failed payments within 7 days",
		attempt.DeviceID != "" && deviceFailures >= 2, err)

	failed, total, err := s.payments.FailureStats(ctx, attempt.GuestID, at.Add(-30*24*time.Hour))
	eval.boolean(FactorFailureRate,
		"guest failure rate above 50% over 3 or more attempts",
		total >= 3 && float64(failed)/float64(total) > 0.5, err)

	result, err := s.finish(eval, degraded, s.cfg.PaymentBlockThreshold, s.cfg.PaymentReviewThreshold, paymentRecommendations)
	if err != nil {
		metrics.RecordAnalyzerInvocation("payment", "error", s.now().Sub(start))
		return nil, err
	}

	if result.ShouldBlock {
		s.FlagSuspiciousActivity(ctx, attempt.GuestID, audit.ActivityPaymentFraud, result, map[string]string{
			"event_id":    attempt.EventID,
			"card_suffix": attempt.CardSuffix,
		})
	}

	metrics.RecordAnalyzerInvocation("payment", result.Decision(), s.now().Sub(start))
	metrics.RecordRiskScore("payment", result.Decision(), result.Score)
	s.logger.Info("payment analyzed",
		zap.String("guest_id", attempt.GuestID),
		zap.String("event_id", attempt.EventID),
		zap.Float64("amount", attempt.Amount),
		zap.Float64("score", result.Score),
		zap.String("level", result.Level.String()),
		zap.String("decision", result.Decision()),
		zap.Bool("degraded", result.Degraded))
	return result, nil
}
