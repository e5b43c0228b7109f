package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/attendly/attendly/internal/common/database"
	"github.com/attendly/attendly/internal/common/errors"
	"github.com/attendly/attendly/internal/scoring"
)

// SearchQuery narrows an Elasticsearch search over the activity index
type SearchQuery struct {
	GuestID      string
	ActivityType ActivityType
	MinScore     float64
	From         time.Time
	To           time.Time
	Limit        int
}

// Search queries the Elasticsearch activity index. Returns an error when the
// store was built without an Elasticsearch client.
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]SuspiciousActivity, error) {
	if s.es == nil {
		return nil, errors.BadRequest("activity search requires elasticsearch")
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}

	var filters []string
	if q.GuestID != "" {
		filters = append(filters, fmt.Sprintf(`{"term":{"guest_id":%q}}`, q.GuestID))
	}
	if q.ActivityType != "" {
		filters = append(filters, fmt.Sprintf(`{"term":{"activity_type":%q}}`, string(q.ActivityType)))
	}
	if q.MinScore > 0 {
		filters = append(filters, fmt.Sprintf(`{"range":{"risk_score":{"gte":%f}}}`, q.MinScore))
	}
	if !q.From.IsZero() || !q.To.IsZero() {
		bounds := []string{}
		if !q.From.IsZero() {
			bounds = append(bounds, fmt.Sprintf(`"gte":%q`, q.From.Format(time.RFC3339)))
		}
		if !q.To.IsZero() {
			bounds = append(bounds, fmt.Sprintf(`"lt":%q`, q.To.Format(time.RFC3339)))
		}
		filters = append(filters, fmt.Sprintf(`{"range":{"timestamp":{%s}}}`, strings.Join(bounds, ",")))
	}

	query := fmt.Sprintf(`{
		"size": %d,
		"sort": [{"timestamp": {"order": "desc"}}],
		"query": {"bool": {"filter": [%s]}}
	}`, q.Limit, strings.Join(filters, ","))

	body, err := s.es.Search(activityIndex, strings.NewReader(query))
	if err != nil {
		return nil, errors.RepositoryError("search suspicious activities", err)
	}

	var resp database.EsSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Internal("failed to decode activity search response", err)
	}

	activities := make([]SuspiciousActivity, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var a SuspiciousActivity
		if err := json.Unmarshal(hit.Source, &a); err != nil {
			continue
		}
		activities = append(activities, a)
	}
	return activities, nil
}

func levelFromString(level string) scoring.Level {
	switch level {
	case "medium":
		return scoring.LevelMedium
	case "high":
		return scoring.LevelHigh
	case "critical":
		return scoring.LevelCritical
	default:
		return scoring.LevelLow
	}
}
