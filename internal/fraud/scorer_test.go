package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/audit"
	"github.com/attendly/attendly/internal/common/config"
	"github.com/attendly/attendly/internal/common/errors"
	"github.com/attendly/attendly/internal/common/testutil"
	"github.com/attendly/attendly/internal/scoring"
	"github.com/attendly/attendly/internal/signalcache"
)

var testNow = time.Date(2026, 6, 13, 19, 30, 0, 0, time.UTC)

func testFraudConfig() config.FraudConfig {
	return config.FraudConfig{
		CheckInBlockThreshold:  90,
		CheckInReviewThreshold: 70,
		PaymentBlockThreshold:  85,
		PaymentReviewThreshold: 60,
		MaxCheckInsPer5Min:     3,
		MaxPaymentsPer10Min:    2,
		DeviceGuestLimit7d:     5,
		CardGuestLimit30d:      4,
		GeoDistanceLimitMeters: 500,
	}
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		FactoryTimeout: time.Second,
		ActivityLogTTL: 5 * time.Minute,
		RiskProfileTTL: 24 * time.Hour,
		FraudReportTTL: time.Hour,
		FraudRulesTTL:  6 * time.Hour,
	}
}

func newTestScorer(t *testing.T) (*Scorer, *MemoryStore, *audit.MemoryStore) {
	t.Helper()

	mock := testutil.NewMockRedis(zap.NewNop())
	require.NoError(t, mock.Setup())
	t.Cleanup(func() { _ = mock.Shutdown() })

	store := NewMemoryStore()
	sink := audit.NewMemoryStore()
	scorer := NewScorer(ScorerParams{
		CheckIns:   store,
		Payments:   store.Payments(),
		Events:     store,
		Rules:      store,
		Activities: sink,
		Cache:      signalcache.New(mock.Client(), time.Second, zap.NewNop()),
		Config:     testFraudConfig(),
		TTLs:       testCacheConfig(),
		Logger:     zap.NewNop(),
	})
	scorer.now = func() time.Time { return testNow }
	return scorer, store, sink
}

func testEvent() EventInfo {
	return EventInfo{
		ID:          "evt-1",
		VenueLat:    41.0082,
		VenueLng:    28.9784,
		StartTime:   testNow.Add(-time.Hour),
		EndTime:     testNow.Add(3 * time.Hour),
		TicketPrice: 150000,
	}
}

func cleanCheckIn() *CheckInAttempt {
	return &CheckInAttempt{
		GuestID:   "guest-1",
		EventID:   "evt-1",
		DeviceID:  "device-1",
		Latitude:  41.0082,
		Longitude: 28.9784,
		QRPayload: "ATD1:evt-1:guest-1:sig-abc",
		Timestamp: testNow,
	}
}

// weightRules builds active rules that pin every named factor to the given
// weight, zeroing everything else in the table.
func weightRules(table map[string]float64, pinned map[string]float64) []Rule {
	var rules []Rule
	for name := range table {
		w, ok := pinned[name]
		if !ok {
			w = 0
		}
		rules = append(rules, Rule{
			ID:         "rule-" + name,
			Name:       name + " override",
			RiskWeight: w,
			IsActive:   true,
			Type:       name,
		})
	}
	return rules
}

func TestAnalyzeCheckIn_CleanAttemptAllows(t *testing.T) {
	scorer, store, sink := newTestScorer(t)
	store.PutEvent(testEvent())

	result, err := scorer.AnalyzeCheckIn(context.Background(), cleanCheckIn())
	require.NoError(t, err)

	assert.Zero(t, result.Score)
	assert.Equal(t, scoring.LevelLow, result.Level)
	assert.False(t, result.ShouldBlock)
	assert.False(t, result.RequiresManualReview)
	assert.False(t, result.Degraded)
	assert.Equal(t, "allow", result.Decision())
	assert.Len(t, result.Factors, 6)
	assert.Empty(t, sink.All())
}

func TestAnalyzeCheckIn_VelocityFactorTriggers(t *testing.T) {
	scorer, store, _ := newTestScorer(t)
	store.PutEvent(testEvent())
	for i := 0; i < 4; i++ {
		store.AddCheckIn("guest-1", "device-1", testNow.Add(-time.Duration(i)*time.Minute), true)
	}

	result, err := scorer.AnalyzeCheckIn(context.Background(), cleanCheckIn())
	require.NoError(t, err)

	var velocity *scoring.Factor
	for i := range result.Factors {
		if result.Factors[i].Name == FactorCheckInVelocity {
			velocity = &result.Factors[i]
		}
	}
	require.NotNil(t, velocity)
	assert.True(t, velocity.Triggered)
	assert.InDelta(t, 30.0, result.Score, 0.001)
	assert.Equal(t, scoring.LevelLow, result.Level)
}

func TestAnalyzeCheckIn_MalformedQRTriggers(t *testing.T) {
	scorer, store, _ := newTestScorer(t)
	store.PutEvent(testEvent())

	attempt := cleanCheckIn()
	attempt.QRPayload = "ATD1:evt-other:guest-1:sig"

	result, err := scorer.AnalyzeCheckIn(context.Background(), attempt)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, result.Score, 0.001)
}

// A single dominant velocity factor must escalate straight to a critical
// block, flag the guest, and merge the risk profile.
func TestAnalyzeCheckIn_DominantVelocityBlocksAndFlags(t *testing.T) {
	scorer, store, sink := newTestScorer(t)
	store.PutEvent(testEvent())
	store.PutRules(weightRules(defaultCheckInWeights, map[string]float64{
		FactorCheckInVelocity: 1.0,
	})...)
	for i := 0; i < 4; i++ {
		store.AddCheckIn("guest-1", "device-1", testNow.Add(-time.Duration(i)*time.Minute), true)
	}

	result, err := scorer.AnalyzeCheckIn(context.Background(), cleanCheckIn())
	require.NoError(t, err)

	assert.InDelta(t, 100.0, result.Score, 0.001)
	assert.Equal(t, scoring.LevelCritical, result.Level)
	assert.True(t, result.ShouldBlock)
	assert.True(t, result.RequiresManualReview, "a block must always require manual review")

	activities := sink.All()
	require.Len(t, activities, 1)
	assert.Equal(t, audit.ActivityCheckInFraud, activities[0].ActivityType)
	assert.Equal(t, "guest-1", activities[0].GuestID)

	profile, err := scorer.RiskProfile(context.Background(), "guest-1")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, 1, profile.FlagCount)
	assert.InDelta(t, 100.0, profile.MaxRiskScore, 0.001)
}

// An amount anomaly carrying weight 0.8 with everything else zeroed lands
// exactly on 80: high, reviewed, but never blocked.
func TestAnalyzePayment_DominantAmountAnomalyReviewsWithoutBlock(t *testing.T) {
	scorer, store, sink := newTestScorer(t)
	store.PutEvent(testEvent())
	store.PutRules(weightRules(defaultPaymentWeights, map[string]float64{
		FactorAmountAnomaly: 0.8,
	})...)

	result, err := scorer.AnalyzePayment(context.Background(), &PaymentAttempt{
		GuestID:    "guest-1",
		EventID:    "evt-1",
		DeviceID:   "device-1",
		CardSuffix: "4242",
		Amount:     1500000, // 10x the ticket price
		Timestamp:  testNow,
	})
	require.NoError(t, err)

	assert.InDelta(t, 80.0, result.Score, 0.001)
	assert.Equal(t, scoring.LevelHigh, result.Level)
	assert.False(t, result.ShouldBlock)
	assert.True(t, result.RequiresManualReview)
	assert.Equal(t, "review", result.Decision())
	assert.Empty(t, sink.All())
}

func TestAnalyzePayment_GeoMismatchAndFailureRate(t *testing.T) {
	scorer, store, _ := newTestScorer(t)
	store.PutEvent(testEvent())
	for i := 0; i < 4; i++ {
		store.AddPayment("guest-1", "device-9", "4242", testNow.Add(-time.Duration(i+20)*time.Minute), i < 3)
	}

	result, err := scorer.AnalyzePayment(context.Background(), &PaymentAttempt{
		GuestID:     "guest-1",
		EventID:     "evt-1",
		DeviceID:    "device-1",
		IPCountry:   "TR",
		CardCountry: "US",
		CardSuffix:  "4242",
		Amount:      150000,
		Timestamp:   testNow,
	})
	require.NoError(t, err)

	// geo mismatch (0.10) + failure rate (0.10) = 20
	assert.InDelta(t, 20.0, result.Score, 0.001)
	assert.False(t, result.RequiresManualReview)
}

func TestAnalyzeCheckIn_FailsClosedOnStoreOutage(t *testing.T) {
	scorer, store, sink := newTestScorer(t)
	store.PutEvent(testEvent())
	store.FailDependencies(true)

	result, err := scorer.AnalyzeCheckIn(context.Background(), cleanCheckIn())
	require.NoError(t, err, "a signal outage must degrade, not fail the request")

	assert.True(t, result.Degraded)
	assert.True(t, result.RequiresManualReview)
	assert.False(t, result.ShouldBlock)
	assert.Equal(t, "review", result.Decision())
	assert.Empty(t, sink.All())
}

func TestAnalyzeCheckIn_UnknownEventIsCallerError(t *testing.T) {
	scorer, _, _ := newTestScorer(t)

	_, err := scorer.AnalyzeCheckIn(context.Background(), cleanCheckIn())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrEventNotFound))
}

func TestIsSuspiciousActivity(t *testing.T) {
	scorer, store, _ := newTestScorer(t)
	store.PutEvent(testEvent())
	ctx := context.Background()

	suspicious, err := scorer.IsSuspiciousActivity(ctx, "guest-1", audit.ActivityCheckInFraud)
	require.NoError(t, err)
	assert.False(t, suspicious)

	scorer.FlagSuspiciousActivity(ctx, "guest-1", audit.ActivityCheckInFraud, &RiskScore{
		Score: 95,
		Level: scoring.LevelCritical,
	}, nil)

	suspicious, err = scorer.IsSuspiciousActivity(ctx, "guest-1", audit.ActivityCheckInFraud)
	require.NoError(t, err)
	assert.True(t, suspicious, "flagging must invalidate the cached activity log")

	suspicious, err = scorer.IsSuspiciousActivity(ctx, "guest-1", audit.ActivityPaymentFraud)
	require.NoError(t, err)
	assert.False(t, suspicious, "activity types are tracked separately")
}

func TestFlagSuspiciousActivity_ProfileMerges(t *testing.T) {
	scorer, _, _ := newTestScorer(t)
	ctx := context.Background()

	scorer.FlagSuspiciousActivity(ctx, "guest-1", audit.ActivityCheckInFraud,
		&RiskScore{Score: 92, Level: scoring.LevelCritical}, nil)
	scorer.FlagSuspiciousActivity(ctx, "guest-1", audit.ActivityPaymentFraud,
		&RiskScore{Score: 88, Level: scoring.LevelCritical}, nil)

	profile, err := scorer.RiskProfile(ctx, "guest-1")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.InDelta(t, 92.0, profile.MaxRiskScore, 0.001, "the maximum score wins the merge")
	assert.Equal(t, 2, profile.FlagCount)
	assert.Equal(t, string(audit.ActivityPaymentFraud), profile.LastActivityType)
}

func TestGenerateFraudReport(t *testing.T) {
	scorer, store, _ := newTestScorer(t)
	ctx := context.Background()
	from, to := testNow.Add(-24*time.Hour), testNow.Add(time.Hour)

	for i := 0; i < 5; i++ {
		store.AddCheckIn("guest-1", "device-1", testNow.Add(-time.Duration(i)*time.Hour), true)
	}
	store.AddPayment("guest-1", "device-1", "4242", testNow.Add(-time.Hour), false)
	scorer.FlagSuspiciousActivity(ctx, "guest-2", audit.ActivityCheckInFraud,
		&RiskScore{Score: 95, Level: scoring.LevelCritical}, nil)

	report, err := scorer.GenerateFraudReport(ctx, from, to)
	require.NoError(t, err)

	assert.Equal(t, 6, report.TotalTransactions)
	assert.Equal(t, 1, report.SuspiciousActivities)
	assert.Equal(t, 1, report.BlockedTransactions)
	assert.Equal(t, 1, report.RiskLevelHistogram["critical"])

	// reports are cached whole: new data inside the TTL is not reflected
	store.AddCheckIn("guest-3", "device-2", testNow, true)
	cached, err := scorer.GenerateFraudReport(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 6, cached.TotalTransactions)
}

func TestActiveRules_Cached(t *testing.T) {
	scorer, store, _ := newTestScorer(t)
	ctx := context.Background()
	store.PutRules(Rule{ID: "r1", Name: "velocity override", RiskWeight: 0.5, IsActive: true, Type: FactorCheckInVelocity})

	rules, err := scorer.ActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	store.PutRules(Rule{ID: "r2", Name: "late addition", RiskWeight: 0.4, IsActive: true, Type: FactorGeoDistance})
	rules, err = scorer.ActiveRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1, "the rule catalogue is served from the cache inside its TTL")
}

func TestDeviatesFromPattern(t *testing.T) {
	assert.False(t, deviatesFromPattern(3, []int{19, 20}), "too little history")
	assert.False(t, deviatesFromPattern(20, []int{18, 19, 20}))
	assert.False(t, deviatesFromPattern(21, []int{18, 19, 20}), "within two hours of a typical hour")
	assert.True(t, deviatesFromPattern(4, []int{18, 19, 20}))
	assert.False(t, deviatesFromPattern(23, []int{1, 12, 15}), "wraps around midnight")
}

func TestValidQRPayload(t *testing.T) {
	assert.True(t, validQRPayload("ATD1:evt-1:guest-1:sig", "evt-1", "guest-1"))
	assert.False(t, validQRPayload("", "evt-1", "guest-1"))
	assert.False(t, validQRPayload("ATD1:evt-1:guest-1", "evt-1", "guest-1"))
	assert.False(t, validQRPayload("ATD2:evt-1:guest-1:sig", "evt-1", "guest-1"))
	assert.False(t, validQRPayload("ATD1:evt-2:guest-1:sig", "evt-1", "guest-1"))
	assert.False(t, validQRPayload("ATD1:evt-1:guest-1:", "evt-1", "guest-1"))
}

func TestHaversineMeters(t *testing.T) {
	// Hagia Sophia to the Blue Mosque is roughly 350m
	d := haversineMeters(41.008583, 28.980175, 41.005270, 28.976960)
	assert.InDelta(t, 460, d, 120)
	assert.Zero(t, haversineMeters(41.0, 29.0, 41.0, 29.0))
}
