package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/common/database"
	"github.com/attendly/attendly/internal/common/errors"
)

const activityIndex = "suspicious-activities"

// Store persists suspicious activities to PostgreSQL and optionally indexes
// them into Elasticsearch for dashboard search. The table is insert-only.
type Store struct {
	db      *database.PostgresDB
	es      *database.ElasticsearchClient // nil disables indexing
	journal *Journal                      // nil disables the dead-letter journal
	logger  *zap.Logger
}

// NewStore creates an audit store. es may be nil when search is not deployed.
func NewStore(db *database.PostgresDB, es *database.ElasticsearchClient, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		es:     es,
		logger: logger.With(zap.String("component", "audit_store")),
	}
}

// WithJournal attaches a dead-letter journal. Activities that fail the
// primary insert are preserved there for later replay.
func (s *Store) WithJournal(journal *Journal) *Store {
	s.journal = journal
	return s
}

// Append inserts one suspicious-activity record. Elasticsearch indexing is
// best-effort: an index failure is logged and does not fail the append.
// When the insert itself fails and a journal is attached, the record is
// preserved there for replay.
func (s *Store) Append(ctx context.Context, activity *SuspiciousActivity) error {
	err := s.insert(ctx, activity)
	if err != nil && s.journal != nil {
		if jerr := s.journal.Append(activity); jerr != nil {
			s.logger.Error("Failed to journal suspicious activity",
				zap.String("activity_id", activity.ID), zap.Error(jerr))
		} else {
			s.logger.Warn("Suspicious activity journaled for replay",
				zap.String("activity_id", activity.ID))
		}
	}
	return err
}

// ReplayJournal drains journaled activities back into the primary store.
// The journal is truncated only after every record lands.
func (s *Store) ReplayJournal(ctx context.Context) (int, error) {
	if s.journal == nil {
		return 0, nil
	}

	activities, err := s.journal.Replay()
	if err != nil {
		return 0, errors.Internal("journal replay failed", err)
	}

	for i := range activities {
		if err := s.insert(ctx, &activities[i]); err != nil {
			return i, err
		}
	}
	if err := s.journal.Truncate(); err != nil {
		return len(activities), errors.Internal("journal truncate failed", err)
	}
	return len(activities), nil
}

func (s *Store) insert(ctx context.Context, activity *SuspiciousActivity) error {
	metadata, err := json.Marshal(activity.Metadata)
	if err != nil {
		return errors.Internal("failed to encode activity metadata", err)
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO suspicious_activities
			(id, guest_id, activity_type, description, risk_score, level, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, activity.ID, activity.GuestID, string(activity.ActivityType), activity.Description,
		activity.RiskScore, string(activity.Level), metadata, activity.Timestamp)
	if err != nil {
		return errors.RepositoryError("append suspicious activity", err)
	}

	if s.es != nil {
		doc, err := json.Marshal(activity)
		if err == nil {
			err = s.es.Index(activityIndex, activity.ID, doc)
		}
		if err != nil {
			s.logger.Warn("Failed to index suspicious activity",
				zap.String("activity_id", activity.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Suspicious activity recorded",
		zap.String("activity_id", activity.ID),
		zap.String("guest_id", activity.GuestID),
		zap.String("activity_type", string(activity.ActivityType)),
		zap.Float64("risk_score", activity.RiskScore),
		zap.String("level", string(activity.Level)),
	)
	return nil
}

// ListByGuest returns the guest's activities since the given time, newest
// first.
func (s *Store) ListByGuest(ctx context.Context, guestID string, since time.Time) ([]SuspiciousActivity, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, guest_id, activity_type, description, risk_score, level, metadata, created_at
		FROM suspicious_activities
		WHERE guest_id = $1 AND created_at > $2
		ORDER BY created_at DESC
	`, guestID, since)
	if err != nil {
		return nil, errors.RepositoryError("list suspicious activities", err)
	}
	defer rows.Close()

	var activities []SuspiciousActivity
	for rows.Next() {
		var a SuspiciousActivity
		var activityType, level string
		var metadata []byte
		if err := rows.Scan(&a.ID, &a.GuestID, &activityType, &a.Description,
			&a.RiskScore, &level, &metadata, &a.Timestamp); err != nil {
			return nil, errors.RepositoryError("scan suspicious activity", err)
		}
		a.ActivityType = ActivityType(activityType)
		a.Level = levelFromString(level)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
				s.logger.Warn("Corrupted activity metadata",
					zap.String("activity_id", a.ID), zap.Error(err))
			}
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// CountByLevel returns the number of activities per risk level in the window
func (s *Store) CountByLevel(ctx context.Context, from, to time.Time) (map[string]int, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT level, COUNT(*)
		FROM suspicious_activities
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY level
	`, from, to)
	if err != nil {
		return nil, errors.RepositoryError("count activities by level", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, errors.RepositoryError("scan activity count", err)
		}
		counts[level] = count
	}
	return counts, rows.Err()
}
