package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/audit"
	"github.com/attendly/attendly/internal/metrics"
	"github.com/attendly/attendly/internal/scoring"
	"github.com/attendly/attendly/internal/signalcache"
)

const suspiciousScoreFloor = 70

// IsSuspiciousActivity reports whether the guest has a flagged activity of
// the given type scoring above 70 within the last 24 hours. The activity
// log is cached briefly so hot guests do not hammer the audit store.
func (s *Scorer) IsSuspiciousActivity(ctx context.Context, guestID string, activityType audit.ActivityType) (bool, error) {
	key := fmt.Sprintf("fraud:activity:%s", guestID)
	since := s.now().Add(-24 * time.Hour)

	log, err := signalcache.GetOrComputeJSON(ctx, s.cache, key, s.ttls.ActivityLogTTL,
		func(ctx context.Context) ([]audit.SuspiciousActivity, error) {
			return s.activities.ListByGuest(ctx, guestID, since)
		})
	if err != nil {
		return false, err
	}

	for _, a := range log {
		if a.ActivityType == activityType && a.RiskScore > suspiciousScoreFloor && a.Timestamp.After(since) {
			return true, nil
		}
	}
	return false, nil
}

// FlagSuspiciousActivity appends an audit record, merges the guest's cached
// risk profile, and raises a critical alert when warranted. Flagging is
// best-effort: an audit store outage is logged, never surfaced to the
// analysis caller.
func (s *Scorer) FlagSuspiciousActivity(ctx context.Context, guestID string, activityType audit.ActivityType, result *RiskScore, metadata map[string]string) {
	activity := audit.NewSuspiciousActivity(guestID, activityType,
		describeActivity(activityType, result), result.Score, result.Level)
	activity.Timestamp = s.now().UTC()
	for k, v := range metadata {
		activity.Metadata[k] = v
	}

	if err := s.activities.Append(ctx, activity); err != nil {
		s.logger.Error("failed to persist suspicious activity",
			zap.String("guest_id", guestID),
			zap.String("activity_type", string(activityType)),
			zap.Error(err))
	} else {
		metrics.RecordFlaggedActivity(string(activityType), result.Level.String())
	}

	// drop the cached activity log so the next IsSuspiciousActivity sees
	// this record
	_ = s.cache.Delete(ctx, fmt.Sprintf("fraud:activity:%s", guestID))

	s.mergeRiskProfile(ctx, guestID, activityType, result)

	if result.Level == scoring.LevelCritical && s.alerter != nil {
		s.alerter.RaiseCritical(ctx, activity)
	}
}

// RiskProfile returns the guest's cached risk profile, or nil when the
// guest has no flagged activity in the profile window.
func (s *Scorer) RiskProfile(ctx context.Context, guestID string) (*GuestRiskProfile, error) {
	raw, ok := s.cache.Get(ctx, profileKey(guestID))
	if !ok {
		return nil, nil
	}
	var profile GuestRiskProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		_ = s.cache.Delete(ctx, profileKey(guestID))
		return nil, nil
	}
	return &profile, nil
}

// mergeRiskProfile reads-modifies-writes the cached profile: the maximum
// score wins and the flag count accumulates for the profile's lifetime.
func (s *Scorer) mergeRiskProfile(ctx context.Context, guestID string, activityType audit.ActivityType, result *RiskScore) {
	profile := GuestRiskProfile{GuestID: guestID}
	if raw, ok := s.cache.Get(ctx, profileKey(guestID)); ok {
		_ = json.Unmarshal(raw, &profile)
	}

	if result.Score > profile.MaxRiskScore {
		profile.MaxRiskScore = result.Score
	}
	profile.FlagCount++
	profile.LastActivityType = string(activityType)
	profile.LastFlaggedAt = s.now().UTC()

	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	s.cache.Set(ctx, profileKey(guestID), raw, s.ttls.RiskProfileTTL)
}

func profileKey(guestID string) string {
	return fmt.Sprintf("fraud:profile:%s", guestID)
}

func describeActivity(activityType audit.ActivityType, result *RiskScore) string {
	triggered := 0
	for _, f := range result.Factors {
		if f.Triggered {
			triggered++
		}
	}
	verb := "check-in"
	if activityType == audit.ActivityPaymentFraud {
		verb = "payment"
	}
	return fmt.Sprintf("%s blocked at score %.1f with %d triggered factors", verb, result.Score, triggered)
}
