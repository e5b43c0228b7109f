package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/attendly/attendly/internal/scoring"
	"github.com/attendly/attendly/internal/signalcache"
)

// ActiveRules returns the active fraud rule catalogue, cached for the
// configured TTL. The catalogue changes rarely and is read on every
// analysis for weight overrides.
func (s *Scorer) ActiveRules(ctx context.Context) ([]Rule, error) {
	return signalcache.GetOrComputeJSON(ctx, s.cache, "fraud:rules", s.ttls.FraudRulesTTL,
		func(ctx context.Context) ([]Rule, error) {
			return s.rules.ListActive(ctx)
		})
}

// GenerateFraudReport aggregates transaction and flagged-activity counts
// over [from, to). Reports are derived data and cached whole; identical
// windows within the TTL share one computation.
func (s *Scorer) GenerateFraudReport(ctx context.Context, from, to time.Time) (*Report, error) {
	key := fmt.Sprintf("fraud:report:%d:%d", from.Unix(), to.Unix())

	report, err := signalcache.GetOrComputeJSON(ctx, s.cache, key, s.ttls.FraudReportTTL,
		func(ctx context.Context) (Report, error) {
			return s.buildReport(ctx, from, to)
		})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Scorer) buildReport(ctx context.Context, from, to time.Time) (Report, error) {
	checkins, err := s.checkins.CountInWindow(ctx, from, to)
	if err != nil {
		return Report{}, err
	}
	payments, err := s.payments.CountInWindow(ctx, from, to)
	if err != nil {
		return Report{}, err
	}
	histogram, err := s.activities.CountByLevel(ctx, from, to)
	if err != nil {
		return Report{}, err
	}

	suspicious := 0
	for _, n := range histogram {
		suspicious += n
	}

	return Report{
		From:              from,
		To:                to,
		TotalTransactions: checkins + payments,
		SuspiciousActivities: suspicious,
		// both block thresholds sit inside the critical band, so the
		// critical bucket is exactly the blocked population
		BlockedTransactions: histogram[scoring.LevelCritical.String()],
		RiskLevelHistogram:  histogram,
		GeneratedAt:         s.now().UTC(),
	}, nil
}
