package repositories

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/qnachat/authcore/internal/models"
)

func parseRecordID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// SQLiteActivityRepository is the append-only activity store backed by the
// embedded SQLite file.
type SQLiteActivityRepository struct {
	db *sql.DB
}

func NewSQLiteActivityRepository(db *sql.DB) *SQLiteActivityRepository {
	return &SQLiteActivityRepository{db: db}
}

func (r *SQLiteActivityRepository) Insert(ctx context.Context, record *models.ActivityRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_records (id, ts, actor, source_address, action, outcome, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(), record.Timestamp, record.Actor, record.SourceAddress,
		record.Action, record.Outcome, record.Detail,
	)
	return mapSQLiteError(err)
}

func (r *SQLiteActivityRepository) Query(ctx context.Context, filter models.ActivityFilter) ([]*models.ActivityRecord, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, ts, actor, source_address, action, outcome, detail FROM activity_records`)

	var conds []string
	var args []interface{}

	if filter.Actor != "" {
		conds = append(conds, "actor = ?")
		args = append(args, filter.Actor)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "ts < ?")
		args = append(args, filter.To)
	}
	if filter.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY ts ASC")
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	records := make([]*models.ActivityRecord, 0)
	for rows.Next() {
		var rec models.ActivityRecord
		var id string
		err := rows.Scan(&id, &rec.Timestamp, &rec.Actor, &rec.SourceAddress,
			&rec.Action, &rec.Outcome, &rec.Detail)
		if err != nil {
			return nil, mapSQLiteError(err)
		}
		rec.ID = parseRecordID(id)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return records, nil
}
