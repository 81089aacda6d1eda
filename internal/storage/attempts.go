package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"medchat/internal/provider"
)

// AttemptLog journals provider attempts. It satisfies provider.Recorder.
type AttemptLog struct {
	db *sql.DB
}

func NewAttemptLog(db *sql.DB) *AttemptLog {
	return &AttemptLog{db: db}
}

// ProviderStat is the number of attempts of one provider with one outcome.
type ProviderStat struct {
	Provider string `json:"provider"`
	Outcome  string `json:"outcome"`
	Count    int64  `json:"count"`
}

func (l *AttemptLog) RecordAttempt(ctx context.Context, a provider.Attempt) error {
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO provider_attempts(conversation_id, provider, outcome, latency_ms, created_at) VALUES(?, ?, ?, ?, ?)`,
		a.ConversationID, a.Provider, a.Outcome, a.Latency.Milliseconds(), at.UTC())
	if err != nil {
		return fmt.Errorf("insert provider attempt: %w", err)
	}
	return nil
}

// Stats returns attempt counts grouped by provider and outcome.
func (l *AttemptLog) Stats(ctx context.Context) ([]ProviderStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT provider, outcome, COUNT(*) FROM provider_attempts GROUP BY provider, outcome ORDER BY provider, outcome`)
	if err != nil {
		return nil, fmt.Errorf("query provider stats: %w", err)
	}
	defer rows.Close()

	stats := []ProviderStat{}
	for rows.Next() {
		var s ProviderStat
		if err := rows.Scan(&s.Provider, &s.Outcome, &s.Count); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
