// Package api exposes the decision engine over HTTP. Handlers are thin:
// they bind input, call the engine, and map domain errors to status codes.
package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/audit"
	"github.com/attendly/attendly/internal/capacity"
	"github.com/attendly/attendly/internal/common/errors"
	"github.com/attendly/attendly/internal/fraud"
	"github.com/attendly/attendly/internal/pricing"
)

// Service wires the three analyzers behind one route surface
type Service struct {
	fraud    *fraud.Scorer
	capacity *capacity.Optimizer
	pricing  *pricing.Optimizer
	activity *audit.Store
	logger   *zap.Logger
}

// NewService creates the HTTP service. The activity store may be nil when
// Elasticsearch search is not configured.
func NewService(scorer *fraud.Scorer, cap *capacity.Optimizer, price *pricing.Optimizer, activity *audit.Store, logger *zap.Logger) *Service {
	return &Service{
		fraud:    scorer,
		capacity: cap,
		pricing:  price,
		activity: activity,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// RegisterRoutes mounts the decision engine API
func RegisterRoutes(router *gin.Engine, svc *Service) {
	v1 := router.Group("/api/v1")
	{
		// Fraud analysis
		v1.POST("/fraud/checkins/analyze", svc.handleAnalyzeCheckIn)
		v1.POST("/fraud/payments/analyze", svc.handleAnalyzePayment)
		v1.GET("/fraud/rules", svc.handleListRules)
		v1.GET("/fraud/report", svc.handleFraudReport)
		v1.GET("/fraud/activities/search", svc.handleSearchActivities)

		// Guest risk
		v1.GET("/guests/:id/risk-profile", svc.handleRiskProfile)
		v1.GET("/guests/:id/suspicious", svc.handleIsSuspicious)

		// Capacity optimization
		v1.GET("/events/:id/no-show-rate", svc.handleNoShowRate)
		v1.GET("/events/:id/overbooking", svc.handleOverbookingStrategy)
		v1.GET("/events/:id/capacity", svc.handleCapacityPlan)
		v1.GET("/events/:id/capacity/recommendation", svc.handleRecommendation)

		// Dynamic pricing
		v1.GET("/events/:id/price", svc.handleDynamicPrice)
		v1.GET("/events/:id/price/factors", svc.handlePricingFactors)
	}
}

func (s *Service) handleAnalyzeCheckIn(c *gin.Context) {
	var attempt fraud.CheckInAttempt
	if err := c.ShouldBindJSON(&attempt); err != nil {
		errors.HandleError(c, errors.ValidationError(err.Error()))
		return
	}
	if attempt.GuestID == "" || attempt.EventID == "" {
		errors.HandleError(c, errors.ValidationError("guest_id and event_id are required"))
		return
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now().UTC()
	}

	result, err := s.fraud.AnalyzeCheckIn(c.Request.Context(), &attempt)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(200, result)
}

func (s *Service) handleAnalyzePayment(c *gin.Context) {
	var attempt fraud.PaymentAttempt
	if err := c.ShouldBindJSON(&attempt); err != nil {
		errors.HandleError(c, errors.ValidationError(err.Error()))
		return
	}
	if attempt.GuestID == "" || attempt.EventID == "" {
		errors.HandleError(c, errors.ValidationError("guest_id and event_id are required"))
		return
	}
	if attempt.Amount <= 0 {
		errors.HandleError(c, errors.ValidationError("amount must be positive"))
		return
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now().UTC()
	}

	result, err := s.fraud.AnalyzePayment(c.Request.Context(), &attempt)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(200, result)
}

func (s *Service) handleListRules(c *gin.Context) {
	rules, err := s.fraud.ActiveRules(c.Request.Context())
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(200, gin.H{"rules": rules, "count": len(rules)})
}

// handleFraudReport builds the windowed fraud report. The window defaults
// to the trailing 30 days.
func (s *Service) handleFraudReport(c *gin.Context) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			errors.HandleError(c, errors.ValidationError("from must be YYYY-MM-DD"))
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			errors.HandleError(c, errors.ValidationError("to must be YYYY-MM-DD"))
			return
		}
		to = t.Add(24*time.Hour - time.Second)
	}
	if !from.Before(to) {
		errors.HandleError(c, errors.ValidationError("from must precede to"))
		return
	}

	report, err := s.fraud.GenerateFraudReport(c.Request.Context(), from, to)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(200, report)
}

// handleSearchActivities performs full-text search over flagged activities
// via Elasticsearch
func (s *Service) handleSearchActivities(c *gin.Context) {
	if s.activity == nil {
		c.JSON(503, gin.H{"error": "activity search not available"})
		return
	}

	q := audit.SearchQuery{
		GuestID: c.Query("guest_id"),
		Limit:   50,
	}
	if v := c.Query("type"); v != "" {
		q.ActivityType = audit.ActivityType(v)
	}
	if v := c.Query("min_score"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errors.HandleError(c, errors.ValidationError("min_score must be numeric"))
			return
		}
		q.MinScore = score
	}
	if v := c.Query("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= 500 {
			q.Limit = limit
		}
	}

	activities, err := s.activity.Search(c.Request.Context(), q)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(200, gin.H{"activities": activities, "count": len(activities)})
}

func (s *Service) handleRiskProfile(c *gin.Context) {
	guestID := c.Param("id")

	profile, err := s.fraud.RiskProfile(c.Request.Context(), guestID)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	if profile == nil {
		errors.HandleError(c, errors.GuestNotFound(guestID))
		return
	}
	c.JSON(200, profile)
}

func (s *Service) handleIsSuspicious(c *gin.Context) {
	guestID := c.Param("id")

	activityType := audit.ActivityCheckInFraud
	if v := c.Query("type"); v != "" {
		switch audit.ActivityType(v) {
		case audit.ActivityCheckInFraud, audit.ActivityPaymentFraud:
			activityType = audit.ActivityType(v)
		default:
			errors.HandleError(c, errors.ValidationError("type must be checkin_fraud or payment_fraud"))
			return
		}
	}

	suspicious, err := s.fraud.IsSuspiciousActivity(c.Request.Context(), guestID, activityType)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(200, gin.H{"guest_id": guestID, "activity_type": activityType, "suspicious": suspicious})
}

func (s *Service) handleNoShowRate(c *gin.Context) {
	eventID := c.Param("id")

	rate, err := s.capacity.HistoricalNoShowRate(c.Request.Context(), eventID)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(200, gin.H{"event_id": eventID, "no_show_rate": rate})
}

func (s *Service) handleOverbookingStrategy(c *gin.Context) {
	strategy, err := s.capacity.OverbookingStrategy(c.Request.Context(), c.Param("id"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(200, strategy)
}

func (s *Service) handleCapacityPlan(c *gin.Context) {
	plan, err := s.capacity.OptimizeEventCapacity(c.Request.Context(), c.Param("id"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(200, plan)
}

func (s *Service) handleRecommendation(c *gin.Context) {
	rec, err := s.capacity.Recommend(c.Request.Context(), c.Param("id"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(200, rec)
}

func (s *Service) handleDynamicPrice(c *gin.Context) {
	quote, err := s.pricing.DynamicPrice(c.Request.Context(), c.Param("id"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(200, quote)
}

func (s *Service) handlePricingFactors(c *gin.Context) {
	factors, err := s.pricing.PricingFactors(c.Request.Context(), c.Param("id"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(200, factors)
}
