// File: internal/recorder/recorder.go
// Description: Best-effort persistence of orchestration outcomes. The
// PostgreSQL implementation is used when a DSN is configured; otherwise the
// pipeline runs with the no-op recorder.

package recorder

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/promptsmith/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PostgresRecorder implements schemas.Recorder backed by PostgreSQL.
type PostgresRecorder struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgres creates a recorder and verifies the connection.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresRecorder, error) {
	if pool == nil {
		return nil, fmt.Errorf("cannot initialize recorder with a nil pool")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresRecorder{
		pool: pool,
		log:  logger.Named("recorder"),
	}, nil
}

const insertOutcomeSQL = `
    INSERT INTO outcomes (run_id, stage, original_text, final_text, original_score, final_score, improved, context, recorded_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`

// Record persists one outcome. The classified context is stored as a JSON
// document so the schema survives classifier changes.
func (r *PostgresRecorder) Record(ctx context.Context, rec *schemas.OutcomeRecord) error {
	if rec == nil {
		return fmt.Errorf("cannot record a nil outcome")
	}

	contextJSON := []byte("{}")
	if rec.Context != nil {
		encoded, err := json.Marshal(rec.Context)
		if err != nil {
			return fmt.Errorf("failed to encode prompt context: %w", err)
		}
		contextJSON = encoded
	}

	_, err := r.pool.Exec(ctx, insertOutcomeSQL,
		rec.RunID, string(rec.Stage),
		rec.OriginalText, rec.FinalText,
		rec.OriginalScore, rec.FinalScore,
		rec.Improved, contextJSON,
		rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}

	r.log.Debug("Recorded outcome",
		zap.String("run_id", rec.RunID),
		zap.String("stage", string(rec.Stage)),
	)
	return nil
}

const recentOutcomesSQL = `
    SELECT run_id, stage, original_text, final_text, original_score, final_score, improved, context, recorded_at
    FROM outcomes
    ORDER BY recorded_at DESC
    LIMIT $1;
`

// RecentOutcomes returns the most recently recorded outcomes, newest first.
func (r *PostgresRecorder) RecentOutcomes(ctx context.Context, limit int) ([]schemas.OutcomeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, recentOutcomesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var records []schemas.OutcomeRecord
	for rows.Next() {
		var (
			rec         schemas.OutcomeRecord
			stageStr    string
			contextJSON []byte
		)
		err := rows.Scan(
			&rec.RunID, &stageStr,
			&rec.OriginalText, &rec.FinalText,
			&rec.OriginalScore, &rec.FinalScore,
			&rec.Improved, &contextJSON,
			&rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome row: %w", err)
		}
		rec.Stage = schemas.OutcomeStage(stageStr)

		if len(contextJSON) > 0 && string(contextJSON) != "{}" {
			var pc schemas.PromptContext
			if err := json.Unmarshal(contextJSON, &pc); err != nil {
				return nil, fmt.Errorf("failed to decode prompt context: %w", err)
			}
			rec.Context = &pc
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

// Nop is a schemas.Recorder that discards everything. Used when no DSN is
// configured.
type Nop struct{}

// NewNop creates a no-op recorder.
func NewNop() Nop { return Nop{} }

// Record discards rec.
func (Nop) Record(ctx context.Context, rec *schemas.OutcomeRecord) error { return nil }
