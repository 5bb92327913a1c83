package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

// SQLFollowUpRepository implements FollowUpRepository on the followups table
type SQLFollowUpRepository struct {
	db    *sql.DB
	cb    *gobreaker.CircuitBreaker
	retry retryPolicy
}

var _ ports.FollowUpRepository = (*SQLFollowUpRepository)(nil)

func NewSQLFollowUpRepository(db *sql.DB, settings BreakerSettings) *SQLFollowUpRepository {
	return &SQLFollowUpRepository{
		db:    db,
		cb:    newBreaker("followups", settings),
		retry: defaultRetryPolicy(),
	}
}

func (r *SQLFollowUpRepository) WithRetry(maxRetries int, delay time.Duration) *SQLFollowUpRepository {
	r.retry = retryPolicy{maxRetries: maxRetries, delay: delay}
	return r
}

const followUpColumns = `id, patient_name, age, village, conditions, last_visit, due_date, status, completed`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFollowUp(row rowScanner) (*domain.FollowUp, error) {
	var (
		f          domain.FollowUp
		conditions []byte
		lastVisit  sql.NullTime
		status     sql.NullString
	)
	if err := row.Scan(&f.ID, &f.PatientName, &f.Age, &f.Village, &conditions, &lastVisit, &f.DueDate, &status, &f.Completed); err != nil {
		return nil, err
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &f.Conditions); err != nil {
			return nil, fmt.Errorf("%w: invalid conditions for follow-up %s: %v", errPermanent, f.ID, err)
		}
	}
	if lastVisit.Valid {
		f.LastVisit = lastVisit.Time
	}
	f.Status = domain.FollowUpStatus(status.String)
	return &f, nil
}

func (r *SQLFollowUpRepository) ListFollowUps(ctx context.Context) ([]*domain.FollowUp, error) {
	result, err := r.cb.Execute(func() (interface{}, error) {
		var items []*domain.FollowUp
		err := r.retry.do(ctx, func() error {
			items = nil
			rows, err := r.db.QueryContext(ctx, `SELECT `+followUpColumns+` FROM followups ORDER BY due_date ASC, id ASC`)
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				f, err := scanFollowUp(rows)
				if err != nil {
					return err
				}
				items = append(items, f)
			}
			return rows.Err()
		})
		if err != nil {
			return nil, err
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]*domain.FollowUp), nil
}

func (r *SQLFollowUpRepository) GetFollowUp(ctx context.Context, id string) (*domain.FollowUp, error) {
	result, err := r.cb.Execute(func() (interface{}, error) {
		var f *domain.FollowUp
		err := r.retry.do(ctx, func() error {
			var err error
			f, err = scanFollowUp(r.db.QueryRowContext(ctx, `SELECT `+followUpColumns+` FROM followups WHERE id = $1`, id))
			return err
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrFollowUpNotFound
		}
		return nil, err
	}
	return result.(*domain.FollowUp), nil
}

func (r *SQLFollowUpRepository) SetCompleted(ctx context.Context, id string, completed bool) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		var affected int64
		err := r.retry.do(ctx, func() error {
			res, err := r.db.ExecContext(ctx, `UPDATE followups SET completed = $1, updated_at = now() WHERE id = $2`, completed, id)
			if err != nil {
				return err
			}
			affected, err = res.RowsAffected()
			return err
		})
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, sql.ErrNoRows
		}
		return nil, nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrFollowUpNotFound
	}
	return err
}

const upsertFollowUp = `INSERT INTO followups (id, patient_name, age, village, conditions, last_visit, due_date, status, completed)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		patient_name = EXCLUDED.patient_name,
		age = EXCLUDED.age,
		village = EXCLUDED.village,
		conditions = EXCLUDED.conditions,
		last_visit = EXCLUDED.last_visit,
		due_date = EXCLUDED.due_date,
		status = EXCLUDED.status,
		completed = EXCLUDED.completed,
		updated_at = now()`

// UpsertFollowUps writes the roster in one transaction
func (r *SQLFollowUpRepository) UpsertFollowUps(ctx context.Context, items []*domain.FollowUp) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, r.retry.do(ctx, func() error {
			return r.upsert(ctx, items)
		})
	})
	return err
}

func (r *SQLFollowUpRepository) upsert(ctx context.Context, items []*domain.FollowUp) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, f := range items {
		conditions := f.Conditions
		if conditions == nil {
			conditions = []string{}
		}
		body, err := json.Marshal(conditions)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: %v", errPermanent, err)
		}
		var lastVisit, status any
		if !f.LastVisit.IsZero() {
			lastVisit = f.LastVisit
		}
		if f.Status != "" {
			status = string(f.Status)
		}
		if _, err := tx.ExecContext(ctx, upsertFollowUp, f.ID, f.PatientName, f.Age, f.Village,
			string(body), lastVisit, f.DueDate, status, f.Completed); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
