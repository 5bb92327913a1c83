package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

// RESTRecordStore implements RecordStore against a PostgREST-style row API
type RESTRecordStore struct {
	reader *resty.Client
	writer *resty.Client
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

var _ ports.RecordStore = (*RESTRecordStore)(nil)

// NewRESTRecordStore creates the store. Reads retry on transport errors and 5xx;
// writes are sent once.
func NewRESTRecordStore(baseURL, apiKey string, settings BreakerSettings, logger *zap.Logger) *RESTRecordStore {
	newClient := func() *resty.Client {
		c := resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json")
		if apiKey != "" {
			c.SetHeader("apikey", apiKey).SetAuthToken(apiKey)
		}
		return c
	}

	reader := newClient().
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &RESTRecordStore{
		reader: reader,
		writer: newClient(),
		cb:     newBreaker("records-rest", settings),
		logger: logger,
	}
}

// restError carries the status and body of a rejected call
type restError struct {
	Status int
	Body   string
}

func (e *restError) Error() string {
	return fmt.Sprintf("record store returned %d: %s", e.Status, e.Body)
}

func (e *restError) Unwrap() error {
	if e.Status >= 400 && e.Status < 500 {
		return errPermanent
	}
	return nil
}

func (s *RESTRecordStore) Create(ctx context.Context, table string, record map[string]any) (string, error) {
	if _, ok := recordColumns[table]; !ok {
		return "", fmt.Errorf("unknown table %q", table)
	}

	result, err := s.cb.Execute(func() (interface{}, error) {
		var created []struct {
			ID any `json:"id"`
		}
		resp, err := s.writer.R().
			SetContext(ctx).
			SetHeader("Prefer", "return=representation").
			SetBody(record).
			SetResult(&created).
			Post("/rest/v1/" + table)
		if err != nil {
			s.logger.Error("record store call failed",
				zap.String("table", table),
				zap.Error(err),
			)
			return nil, err
		}
		if resp.IsError() {
			s.logger.Error("record store rejected insert",
				zap.String("table", table),
				zap.Int("status_code", resp.StatusCode()),
			)
			return nil, &restError{Status: resp.StatusCode(), Body: resp.String()}
		}
		if len(created) == 0 || created[0].ID == nil {
			return "", nil
		}
		return fmt.Sprint(created[0].ID), nil
	})
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", table, err)
	}
	return result.(string), nil
}

func (s *RESTRecordStore) ReadFamilies(ctx context.Context) ([]*domain.Family, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		var rows []familyRow
		resp, err := s.reader.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"select":        "*,members(*)",
				"order":         "created_at.desc",
				"members.order": "id.asc",
			}).
			SetResult(&rows).
			Get("/rest/v1/" + ports.TableFamilies)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, &restError{Status: resp.StatusCode(), Body: resp.String()}
		}

		families := make([]*domain.Family, 0, len(rows))
		for _, row := range rows {
			f, err := row.toDomain()
			if err != nil {
				return nil, err
			}
			families = append(families, f)
		}
		return families, nil
	})
	if err != nil {
		s.logger.Error("failed to read families", zap.Error(err))
		return nil, err
	}

	families := result.([]*domain.Family)
	s.logger.Debug("read families", zap.Int("family_count", len(families)))
	return families, nil
}
