package fraud

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/audit"
	"github.com/attendly/attendly/internal/common/config"
	"github.com/attendly/attendly/internal/common/errors"
	"github.com/attendly/attendly/internal/metrics"
	"github.com/attendly/attendly/internal/scoring"
	"github.com/attendly/attendly/internal/signalcache"
)

// Factor names. Active rules whose Type equals one of these names override
// the factor's default weight.
const (
	FactorCheckInVelocity  = "checkin_velocity"
	FactorDeviceReputation = "device_reputation"
	FactorGeoDistance      = "geo_distance"
	FactorTimeOfDay        = "time_of_day"
	FactorQRIntegrity      = "qr_integrity"
	FactorEventWindow      = "event_window"

	FactorPaymentVelocity = "payment_velocity"
	FactorCardReputation  = "card_reputation"
	FactorAmountAnomaly   = "amount_anomaly"
	FactorGeoMismatch     = "geo_mismatch"
	FactorDeviceHistory   = "device_history"
	FactorFailureRate     = "failure_rate"
)

var defaultCheckInWeights = map[string]float64{
	FactorCheckInVelocity:  0.30,
	FactorDeviceReputation: 0.25,
	FactorGeoDistance:      0.15,
	FactorTimeOfDay:        0.10,
	FactorQRIntegrity:      0.15,
	FactorEventWindow:      0.05,
}

var defaultPaymentWeights = map[string]float64{
	FactorPaymentVelocity: 0.25,
	FactorCardReputation:  0.25,
	FactorAmountAnomaly:   0.20,
	FactorGeoMismatch:     0.10,
	FactorDeviceHistory:   0.10,
	FactorFailureRate:     0.10,
}

// Scorer analyzes check-in and payment attempts. All state it touches lives
// behind the store interfaces and the signal cache; the scorer itself is
// stateless and safe for concurrent use.
type Scorer struct {
	checkins   CheckInStore
	payments   PaymentStore
	events     EventStore
	rules      RuleStore
	activities ActivitySink
	alerter    audit.Alerter
	cache      *signalcache.Cache
	cfg        config.FraudConfig
	ttls       config.CacheConfig
	logger     *zap.Logger
	now        func() time.Time
}

// ScorerParams bundles the scorer's dependencies
type ScorerParams struct {
	CheckIns   CheckInStore
	Payments   PaymentStore
	Events     EventStore
	Rules      RuleStore
	Activities ActivitySink
	Alerter    audit.Alerter
	Cache      *signalcache.Cache
	Config     config.FraudConfig
	TTLs       config.CacheConfig
	Logger     *zap.Logger
}

func NewScorer(p ScorerParams) *Scorer {
	return &Scorer{
		checkins:   p.CheckIns,
		payments:   p.Payments,
		events:     p.Events,
		rules:      p.Rules,
		activities: p.Activities,
		alerter:    p.Alerter,
		cache:      p.Cache,
		cfg:        p.Config,
		ttls:       p.TTLs,
		logger:     p.Logger.With(zap.String("component", "fraud_scorer")),
		now:        time.Now,
	}
}

// AnalyzeCheckIn scores one check-in attempt. Transient signal failures
// degrade the factor to untriggered and force manual review rather than
// failing the request; a missing event is a caller error and is returned.
func (s *Scorer) AnalyzeCheckIn(ctx context.Context, attempt *CheckInAttempt) (*RiskScore, error) {
	start := s.now()
	at := attempt.Timestamp
	if at.IsZero() {
		at = s.now()
	}

	event, err := s.events.GetEventInfo(ctx, attempt.EventID)
	if err != nil {
		if !errors.IsTransient(err) {
			metrics.RecordAnalyzerInvocation("checkin", "error", s.now().Sub(start))
			return nil, err
		}
		s.logger.Warn("event lookup degraded, scoring without event context",
			zap.String("event_id", attempt.EventID), zap.Error(err))
		event = nil
	}
	degraded := event == nil

	weights := s.effectiveWeights(ctx, defaultCheckInWeights)

	eval := newEvaluation(weights)

	velocity, err := s.checkins.CountByGuestSince(ctx, attempt.GuestID, at.Add(-5*time.Minute))
	eval.boolean(FactorCheckInVelocity,
		fmt.Sprintf("more than %d check-ins within 5 minutes", s.cfg.MaxCheckInsPer5Min),
		velocity > s.cfg.MaxCheckInsPer5Min, err)

	deviceGuests, err := s.checkins.CountDistinctGuestsByDeviceSince(ctx, attempt.DeviceID, at.Add(-7*24*time.Hour))
	eval.boolean(FactorDeviceReputation,
		fmt.Sprintf("device used by %d or more guests within 7 days", s.cfg.DeviceGuestLimit7d),
		attempt.DeviceID != "" && deviceGuests >= s.cfg.DeviceGuestLimit7d, err)

	geoTriggered := false
	if event != nil && attempt.Latitude != 0 && attempt.Longitude != 0 {
		distance := haversineMeters(attempt.Latitude, attempt.Longitude, event.VenueLat, event.VenueLng)
		geoTriggered = distance > s.cfg.GeoDistanceLimitMeters
	}
	eval.boolean(FactorGeoDistance,
		fmt.Sprintf("check-in location more than %.0fm from venue", s.cfg.GeoDistanceLimitMeters),
		geoTriggered, nil)

	hours, err := s.checkins.CheckInHours(ctx, attempt.GuestID, at.Add(-90*24*time.Hour))
	eval.boolean(FactorTimeOfDay,
		"check-in hour deviates from the guest's established pattern",
		deviatesFromPattern(at.UTC().Hour(), hours), err)

	eval.boolean(FactorQRIntegrity,
		"QR payload malformed or bound to a different guest or event",
		!validQRPayload(attempt.QRPayload, attempt.EventID, attempt.GuestID), nil)

	windowTriggered := false
	if event != nil {
		windowTriggered = at.Before(event.StartTime.Add(-2*time.Hour)) || at.After(event.EndTime)
	}
	eval.boolean(FactorEventWindow, "check-in outside the event window", windowTriggered, nil)

	result, err := s.finish(eval, degraded, s.cfg.CheckInBlockThreshold, s.cfg.CheckInReviewThreshold, checkInRecommendations)
	if err != nil {
		metrics.RecordAnalyzerInvocation("checkin", "error", s.now().Sub(start))
		return nil, err
	}

	if result.ShouldBlock {
		s.FlagSuspiciousActivity(ctx, attempt.GuestID, audit.ActivityCheckInFraud, result, map[string]string{
			"event_id":  attempt.EventID,
			"device_id": attempt.DeviceID,
		})
	}

	metrics.RecordAnalyzerInvocation("checkin", result.Decision(), s.now().Sub(start))
	metrics.RecordRiskScore("checkin", result.Decision(), result.Score)
	s.logger.Info("check-in analyzed",
		zap.String("guest_id", attempt.GuestID),
		zap.String("event_id", attempt.EventID),
		zap.Float64("score", result.Score),
		zap.String("level", result.Level.String()),
		zap.String("decision", result.Decision()),
		zap.Bool("degraded", result.Degraded))
	return result, nil
}

// evaluation accumulates factors for one analysis run
type evaluation struct {
	weights  map[string]float64
	factors  []scoring.Factor
	degraded bool
}

func newEvaluation(weights map[string]float64) *evaluation {
	return &evaluation{weights: weights}
}

// boolean records one boolean factor. A non-nil transient err degrades the
// factor to untriggered and marks the whole run degraded; a permanent err
// is treated the same since the signal is equally unavailable.
func (e *evaluation) boolean(name, description string, triggered bool, err error) {
	if err != nil {
		triggered = false
		e.degraded = true
	}
	e.factors = append(e.factors, scoring.Factor{
		Name:        name,
		Weight:      e.weights[name],
		Description: description,
		Triggered:   triggered,
	})
}

type recommendations struct {
	block  string
	review string
	allow  string
}

var checkInRecommendations = recommendations{
	block:  "Block the check-in and investigate the guest",
	review: "Allow the check-in but queue it for manual review",
	allow:  "Allow the check-in",
}

var paymentRecommendations = recommendations{
	block:  "Decline the payment and investigate the guest",
	review: "Hold the payment for manual review",
	allow:  "Approve the payment",
}

// finish scores the accumulated factors and applies the decision thresholds.
// ShouldBlock implies RequiresManualReview; a degraded run always requires
// manual review regardless of score.
func (s *Scorer) finish(eval *evaluation, degraded bool, blockThreshold, reviewThreshold float64, recs recommendations) (*RiskScore, error) {
	score, err := scoring.Score(eval.factors)
	if err != nil {
		return nil, err
	}
	degraded = degraded || eval.degraded

	result := &RiskScore{
		Score:       score,
		Level:       scoring.Classify(score),
		Factors:     eval.factors,
		ShouldBlock: score > blockThreshold,
		Degraded:    degraded,
	}
	result.RequiresManualReview = result.ShouldBlock || score > reviewThreshold || degraded

	switch {
	case result.ShouldBlock:
		result.Recommendation = recs.block
	case result.RequiresManualReview:
		result.Recommendation = recs.review
	default:
		result.Recommendation = recs.allow
	}
	if degraded {
		result.Recommendation += " (signal sources degraded)"
	}
	return result, nil
}

// effectiveWeights merges rule overrides into the default weight table.
// Rule lookup failures fall back to defaults; weight overrides are an
// operational convenience, never a correctness dependency.
func (s *Scorer) effectiveWeights(ctx context.Context, defaults map[string]float64) map[string]float64 {
	rules, err := s.ActiveRules(ctx)
	if err != nil {
		s.logger.Warn("fraud rules unavailable, using default weights", zap.Error(err))
		return defaults
	}

	weights := make(map[string]float64, len(defaults))
	for name, w := range defaults {
		weights[name] = w
	}
	for _, r := range rules {
		if _, ok := weights[r.Type]; ok && r.RiskWeight >= 0 && r.RiskWeight <= 1 {
			weights[r.Type] = r.RiskWeight
		}
	}
	return weights
}

// deviatesFromPattern reports whether hour falls outside the guest's
// established check-in hours. Guests without enough history never deviate.
func deviatesFromPattern(hour int, typical []int) bool {
	if len(typical) < 3 {
		return false
	}
	for _, h := range typical {
		diff := int(math.Abs(float64(hour - h)))
		if diff > 12 {
			diff = 24 - diff
		}
		if diff <= 2 {
			return false
		}
	}
	return true
}

// validQRPayload checks the check-in QR format: ATD1:<event>:<guest>:<sig>.
// The signature itself is verified upstream; here we only care that the
// payload is well formed and bound to the attempt.
func validQRPayload(payload, eventID, guestID string) bool {
	parts := strings.Split(payload, ":")
	if len(parts) != 4 || parts[0] != "ATD1" {
		return false
	}
	return parts[1] == eventID && parts[2] == guestID && parts[3] != ""
}

const earthRadiusMeters = 6371000

// haversineMeters returns the great-circle distance between two coordinates
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
