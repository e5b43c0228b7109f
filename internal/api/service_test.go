package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/audit"
	"github.com/attendly/attendly/internal/capacity"
	"github.com/attendly/attendly/internal/common/config"
	"github.com/attendly/attendly/internal/common/testutil"
	"github.com/attendly/attendly/internal/fraud"
	"github.com/attendly/attendly/internal/pricing"
	"github.com/attendly/attendly/internal/signalcache"
)

type apiFixture struct {
	router     *gin.Engine
	fraudStore *fraud.MemoryStore
	eventStore *capacity.MemoryEventStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mock := testutil.NewMockRedis(zap.NewNop())
	require.NoError(t, mock.Setup())
	t.Cleanup(func() { _ = mock.Shutdown() })

	cache := signalcache.New(mock.Client(), time.Second, zap.NewNop())
	cacheCfg := config.CacheConfig{
		FactoryTimeout: time.Second,
		NoShowTTL:      time.Hour,
		StrategyTTL:    time.Hour,
		DemandTTL:      time.Hour,
		CompetitorTTL:  time.Hour,
		ActivityLogTTL: 5 * time.Minute,
		RiskProfileTTL: 24 * time.Hour,
		FraudReportTTL: time.Hour,
		FraudRulesTTL:  6 * time.Hour,
	}

	fraudStore := fraud.NewMemoryStore()
	scorer := fraud.NewScorer(fraud.ScorerParams{
		CheckIns:   fraudStore,
		Payments:   fraudStore.Payments(),
		Events:     fraudStore,
		Rules:      fraudStore,
		Activities: audit.NewMemoryStore(),
		Cache:      cache,
		Config: config.FraudConfig{
			CheckInBlockThreshold:  90,
			CheckInReviewThreshold: 70,
			PaymentBlockThreshold:  85,
			PaymentReviewThreshold: 60,
			MaxCheckInsPer5Min:     3,
			MaxPaymentsPer10Min:    2,
			DeviceGuestLimit7d:     5,
			CardGuestLimit30d:      4,
			GeoDistanceLimitMeters: 500,
		},
		TTLs:   cacheCfg,
		Logger: zap.NewNop(),
	})

	eventStore := capacity.NewMemoryEventStore()
	capOpt := capacity.NewOptimizer(capacity.OptimizerParams{
		Events:   eventStore,
		Cache:    cache,
		Weather:  capacity.StubWeatherProvider{},
		Accuracy: capacity.StubAccuracyProvider{},
		Config: config.CapacityConfig{
			MaxNoShowRate:      0.40,
			MaxOverbookingRate: 0.30,
			TicketPrice:        150000,
			CostPerGuest:       25000,
		},
		TTLs:   cacheCfg,
		Logger: zap.NewNop(),
	})

	priceOpt := pricing.NewOptimizer(pricing.OptimizerParams{
		Events:      eventStore,
		Occupancy:   capOpt,
		Demand:      capacity.StubDemandProvider{},
		Competitors: capacity.StubCompetitorPriceProvider{},
		Holidays:    capacity.StubHolidayProvider{},
		Cache:       cache,
		Config: config.PricingConfig{
			UrgentDays:         7,
			SoonDays:           30,
			UrgentMultiplier:   1.3,
			SoonMultiplier:     1.1,
			HighOccupancy:      0.8,
			LowOccupancy:       0.3,
			HighOccMultiplier:  1.2,
			LowOccMultiplier:   0.9,
			WeekendMultiplier:  1.15,
			HolidayMultiplier:  1.25,
			MaxCompetitorRatio: 1.5,
			RoundingUnit:       1000,
		},
		TTLs:   cacheCfg,
		Logger: zap.NewNop(),
	})

	router := gin.New()
	svc := NewService(scorer, capOpt, priceOpt, nil, zap.NewNop())
	RegisterRoutes(router, svc)

	return &apiFixture{router: router, fraudStore: fraudStore, eventStore: eventStore}
}

func (f *apiFixture) seedEvent(t *testing.T, id string, start time.Time) {
	t.Helper()

	f.eventStore.PutEvent(capacity.Event{
		ID:            id,
		Name:          "Launch Gala",
		EventType:     "conference",
		City:          "istanbul",
		StartTime:     start,
		EndTime:       start.Add(4 * time.Hour),
		MaxGuests:     100,
		Registrations: 50,
		TicketPrice:   100000,
	})
	f.fraudStore.PutEvent(fraud.EventInfo{
		ID:          id,
		VenueLat:    41.0082,
		VenueLng:    28.9784,
		StartTime:   start.Add(-time.Hour),
		EndTime:     start.Add(4 * time.Hour),
		TicketPrice: 100000,
	})
}

func (f *apiFixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)
	return w
}

func TestAnalyzeCheckIn_CleanAttempt(t *testing.T) {
	f := newAPIFixture(t)
	now := time.Now().UTC()
	f.seedEvent(t, "evt-1", now)

	w := f.do("POST", "/api/v1/fraud/checkins/analyze", fraud.CheckInAttempt{
		GuestID:   "guest-1",
		EventID:   "evt-1",
		DeviceID:  "device-1",
		Latitude:  41.0082,
		Longitude: 28.9784,
		QRPayload: "ATD1:evt-1:guest-1:c2lnbmF0dXJl",
		Timestamp: now,
	})

	require.Equal(t, 200, w.Code, w.Body.String())
	var result fraud.RiskScore
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "allow", result.Decision())
	assert.False(t, result.ShouldBlock)
}

func TestAnalyzeCheckIn_MissingGuest(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("POST", "/api/v1/fraud/checkins/analyze", fraud.CheckInAttempt{EventID: "evt-1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "guest_id")
}

func TestAnalyzeCheckIn_UnknownEvent(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("POST", "/api/v1/fraud/checkins/analyze", fraud.CheckInAttempt{
		GuestID: "guest-1",
		EventID: "evt-missing",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "EVENT_NOT_FOUND")
}

func TestAnalyzePayment_RejectsNonPositiveAmount(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("POST", "/api/v1/fraud/payments/analyze", fraud.PaymentAttempt{
		GuestID: "guest-1",
		EventID: "evt-1",
		Amount:  0,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "amount")
}

func TestListRules_EmptyCatalogue(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("GET", "/api/v1/fraud/rules", nil)

	require.Equal(t, 200, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}

func TestFraudReport_RejectsBadWindow(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("GET", "/api/v1/fraud/report?from=2026-06-30&to=2026-06-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do("GET", "/api/v1/fraud/report?from=not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFraudReport_DefaultWindow(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("GET", "/api/v1/fraud/report", nil)

	require.Equal(t, 200, w.Code)
	var report fraud.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.From.Before(report.To))
}

func TestRiskProfile_UnknownGuest(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("GET", "/api/v1/guests/guest-unknown/risk-profile", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "GUEST_NOT_FOUND")
}

func TestIsSuspicious_CleanGuest(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("GET", "/api/v1/guests/guest-1/suspicious?type=payment_fraud", nil)

	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"suspicious":false`)

	w = f.do("GET", "/api/v1/guests/guest-1/suspicious?type=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoShowRate_DefaultsWithoutHistory(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEvent(t, "evt-1", time.Now().Add(45*24*time.Hour))

	w := f.do("GET", "/api/v1/events/evt-1/no-show-rate", nil)

	require.Equal(t, 200, w.Code)
	var resp struct {
		Rate float64 `json:"no_show_rate"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 0.10, resp.Rate, 0.0001)
}

func TestCapacityPlan_UnknownEvent(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("GET", "/api/v1/events/evt-missing/capacity", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCapacityRecommendation(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEvent(t, "evt-1", time.Now().Add(45*24*time.Hour))

	w := f.do("GET", "/api/v1/events/evt-1/capacity/recommendation", nil)

	require.Equal(t, 200, w.Code)
	var rec capacity.Recommendation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "evt-1", rec.Plan.EventID)
	assert.GreaterOrEqual(t, rec.Confidence, 0.0)
	assert.LessOrEqual(t, rec.Confidence, 1.0)
}

func TestDynamicPrice_RoundedQuote(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEvent(t, "evt-1", time.Now().Add(45*24*time.Hour))

	w := f.do("GET", "/api/v1/events/evt-1/price", nil)

	require.Equal(t, 200, w.Code, w.Body.String())
	var quote pricing.Quote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
	assert.Greater(t, quote.FinalPrice, 0.0)
	assert.Zero(t, math.Mod(quote.FinalPrice, 1000))
}

func TestPricingFactors(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEvent(t, "evt-1", time.Now().Add(45*24*time.Hour))

	w := f.do("GET", "/api/v1/events/evt-1/price/factors", nil)

	require.Equal(t, 200, w.Code)
	var factors pricing.Factors
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &factors))
	assert.Greater(t, factors.DemandMultiplier, 0.0)
}

func TestSearchActivities_UnavailableWithoutElasticsearch(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("GET", "/api/v1/fraud/activities/search?guest_id=guest-1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoutes_MethodShape(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEvent(t, "evt-1", time.Now().Add(45*24*time.Hour))

	for _, path := range []string{
		"/api/v1/events/evt-1/no-show-rate",
		"/api/v1/events/evt-1/overbooking",
		"/api/v1/events/evt-1/capacity",
		"/api/v1/events/evt-1/price",
	} {
		w := f.do("GET", path, nil)
		assert.Equal(t, 200, w.Code, fmt.Sprintf("GET %s: %s", path, w.Body.String()))
	}
}
