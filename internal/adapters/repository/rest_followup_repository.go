package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

const dateLayout = "2006-01-02"

// followUpRow is the wire shape of a followups row; dates travel as YYYY-MM-DD
type followUpRow struct {
	ID          string   `json:"id"`
	PatientName string   `json:"patient_name"`
	Age         int      `json:"age"`
	Village     string   `json:"village"`
	Conditions  []string `json:"conditions"`
	LastVisit   *string  `json:"last_visit"`
	DueDate     string   `json:"due_date"`
	Status      *string  `json:"status"`
	Completed   bool     `json:"completed"`
}

func newFollowUpRow(f *domain.FollowUp) followUpRow {
	row := followUpRow{
		ID:          f.ID,
		PatientName: f.PatientName,
		Age:         f.Age,
		Village:     f.Village,
		Conditions:  f.Conditions,
		DueDate:     f.DueDate.Format(dateLayout),
		Completed:   f.Completed,
	}
	if row.Conditions == nil {
		row.Conditions = []string{}
	}
	if !f.LastVisit.IsZero() {
		lv := f.LastVisit.Format(dateLayout)
		row.LastVisit = &lv
	}
	if f.Status != "" {
		st := string(f.Status)
		row.Status = &st
	}
	return row
}

func (r followUpRow) toDomain() (*domain.FollowUp, error) {
	due, err := time.Parse(dateLayout, r.DueDate)
	if err != nil {
		return nil, fmt.Errorf("follow-up %s: invalid due_date: %w", r.ID, err)
	}
	f := &domain.FollowUp{
		ID:          r.ID,
		PatientName: r.PatientName,
		Age:         r.Age,
		Village:     r.Village,
		Conditions:  r.Conditions,
		DueDate:     due,
		Completed:   r.Completed,
	}
	if r.LastVisit != nil {
		lv, err := time.Parse(dateLayout, *r.LastVisit)
		if err != nil {
			return nil, fmt.Errorf("follow-up %s: invalid last_visit: %w", r.ID, err)
		}
		f.LastVisit = lv
	}
	if r.Status != nil {
		f.Status = domain.FollowUpStatus(*r.Status)
	}
	return f, nil
}

// RESTFollowUpRepository implements FollowUpRepository against the row API
type RESTFollowUpRepository struct {
	client *resty.Client
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

var _ ports.FollowUpRepository = (*RESTFollowUpRepository)(nil)

// NewRESTFollowUpRepository shares the read client of the record store;
// every follow-up call is idempotent so retries are safe.
func NewRESTFollowUpRepository(store *RESTRecordStore, settings BreakerSettings) *RESTFollowUpRepository {
	return &RESTFollowUpRepository{
		client: store.reader,
		cb:     newBreaker("followups-rest", settings),
		logger: store.logger,
	}
}

func (r *RESTFollowUpRepository) fetch(ctx context.Context, params map[string]string) ([]*domain.FollowUp, error) {
	result, err := r.cb.Execute(func() (interface{}, error) {
		var rows []followUpRow
		resp, err := r.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetResult(&rows).
			Get("/rest/v1/followups")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, &restError{Status: resp.StatusCode(), Body: resp.String()}
		}
		items := make([]*domain.FollowUp, 0, len(rows))
		for _, row := range rows {
			f, err := row.toDomain()
			if err != nil {
				return nil, err
			}
			items = append(items, f)
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]*domain.FollowUp), nil
}

func (r *RESTFollowUpRepository) ListFollowUps(ctx context.Context) ([]*domain.FollowUp, error) {
	return r.fetch(ctx, map[string]string{"order": "due_date.asc,id.asc"})
}

func (r *RESTFollowUpRepository) GetFollowUp(ctx context.Context, id string) (*domain.FollowUp, error) {
	items, err := r.fetch(ctx, map[string]string{"id": "eq." + id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrFollowUpNotFound
	}
	return items[0], nil
}

func (r *RESTFollowUpRepository) SetCompleted(ctx context.Context, id string, completed bool) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		var updated []followUpRow
		resp, err := r.client.R().
			SetContext(ctx).
			SetHeader("Prefer", "return=representation").
			SetQueryParam("id", "eq."+id).
			SetBody(map[string]any{"completed": completed}).
			SetResult(&updated).
			Patch("/rest/v1/followups")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, &restError{Status: resp.StatusCode(), Body: resp.String()}
		}
		if len(updated) == 0 {
			return nil, domain.ErrFollowUpNotFound
		}
		return nil, nil
	})
	return err
}

func (r *RESTFollowUpRepository) UpsertFollowUps(ctx context.Context, items []*domain.FollowUp) error {
	rows := make([]followUpRow, len(items))
	for i, f := range items {
		rows[i] = newFollowUpRow(f)
	}
	_, err := r.cb.Execute(func() (interface{}, error) {
		resp, err := r.client.R().
			SetContext(ctx).
			SetHeader("Prefer", "resolution=merge-duplicates").
			SetBody(rows).
			Post("/rest/v1/followups")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, &restError{Status: resp.StatusCode(), Body: resp.String()}
		}
		return nil, nil
	})
	if err != nil {
		r.logger.Error("failed to upsert follow-ups", zap.Int("count", len(items)), zap.Error(err))
	}
	return err
}
