package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qnachat/authcore/internal/database"
	"github.com/qnachat/authcore/internal/models"
)

// ActivityRepository is the Postgres-backed append-only activity store.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

func NewActivityRepository(db *database.Postgres) *ActivityRepository {
	return &ActivityRepository{pool: db.Pool}
}

func (r *ActivityRepository) Insert(ctx context.Context, record *models.ActivityRecord) error {
	query := `
		INSERT INTO activity_records (id, ts, actor, source_address, action, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		record.ID, record.Timestamp, record.Actor, record.SourceAddress,
		record.Action, record.Outcome, record.Detail,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// Query returns matching records ordered by timestamp ascending.
func (r *ActivityRepository) Query(ctx context.Context, filter models.ActivityFilter) ([]*models.ActivityRecord, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, ts, actor, source_address, action, outcome, detail FROM activity_records`)

	var conds []string
	var args []interface{}

	if filter.Actor != "" {
		args = append(args, filter.Actor)
		conds = append(conds, "actor = $"+strconv.Itoa(len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, "ts >= $"+strconv.Itoa(len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, "ts < $"+strconv.Itoa(len(args)))
	}
	if filter.Outcome != "" {
		args = append(args, filter.Outcome)
		conds = append(conds, "outcome = $"+strconv.Itoa(len(args)))
	}

	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY ts ASC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	records := make([]*models.ActivityRecord, 0)
	for rows.Next() {
		var rec models.ActivityRecord
		err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Actor, &rec.SourceAddress,
			&rec.Action, &rec.Outcome, &rec.Detail)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return records, nil
}
