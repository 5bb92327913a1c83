package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

// recordColumns whitelists the writable columns of each record table
var recordColumns = map[string]map[string]bool{
	ports.TableFamilies: columnSet("village", "head_name", "mobile", "house_number", "health_id"),
	ports.TableMembers: columnSet("family_id", "name", "age", "gender", "health_id", "weight_kg",
		"height_cm", "bmi", "systolic_bp", "glucose", "temperature_f", "symptoms", "history",
		"missed_follow_ups", "category", "risk_level", "risk_reasons", "care_plan"),
	ports.TablePregnancies: columnSet("member_id", "gravida", "para", "trimester", "lmp", "edd",
		"history", "vitals", "danger_signs", "compliance"),
	ports.TableChildren: columnSet("member_id", "growth", "vitals", "symptoms", "compliance"),
}

func columnSet(cols ...string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}

// SQLRecordStore implements RecordStore on PostgreSQL.
// Reads are retried and all calls go through a circuit breaker; inserts are attempted once
// so a timed-out insert is never duplicated.
type SQLRecordStore struct {
	db      *sql.DB
	writeCB *gobreaker.CircuitBreaker
	readCB  *gobreaker.CircuitBreaker
	retry   retryPolicy
}

var _ ports.RecordStore = (*SQLRecordStore)(nil)

func NewSQLRecordStore(db *sql.DB, settings BreakerSettings) *SQLRecordStore {
	return &SQLRecordStore{
		db:      db,
		writeCB: newBreaker("records-write", settings),
		readCB:  newBreaker("records-read", settings),
		retry:   defaultRetryPolicy(),
	}
}

// WithRetry overrides the read retry policy
func (r *SQLRecordStore) WithRetry(maxRetries int, delay time.Duration) *SQLRecordStore {
	r.retry = retryPolicy{maxRetries: maxRetries, delay: delay}
	return r
}

// buildInsert renders a parameterized INSERT with columns in sorted order
func buildInsert(table string, record map[string]any) (string, []any, error) {
	allowed, ok := recordColumns[table]
	if !ok {
		return "", nil, fmt.Errorf("unknown table %q", table)
	}
	cols := make([]string, 0, len(record))
	for col := range record {
		if !allowed[col] {
			return "", nil, fmt.Errorf("unknown column %q for table %s", col, table)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		v, err := columnValue(record[col])
		if err != nil {
			return "", nil, fmt.Errorf("column %s: %w", col, err)
		}
		args[i] = v
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return query, args, nil
}

// columnValue passes scalars through and encodes everything else as JSON text for jsonb columns
func columnValue(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64, time.Time:
		return v, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(body), nil
}

func (r *SQLRecordStore) Create(ctx context.Context, table string, record map[string]any) (string, error) {
	query, args, err := buildInsert(table, record)
	if err != nil {
		return "", err
	}
	result, err := r.writeCB.Execute(func() (interface{}, error) {
		var id string
		if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return nil, err
		}
		return id, nil
	})
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", table, err)
	}
	return result.(string), nil
}

const (
	selectFamilies = `SELECT id, village, head_name, mobile, house_number, health_id, created_at
		FROM families ORDER BY created_at DESC`
	selectMembers = `SELECT id, family_id, name, age, gender, health_id, weight_kg, height_cm, bmi,
		systolic_bp, glucose, temperature_f, symptoms, history, missed_follow_ups, category,
		risk_level, risk_reasons, care_plan
		FROM members ORDER BY id ASC`
)

func (r *SQLRecordStore) ReadFamilies(ctx context.Context) ([]*domain.Family, error) {
	result, err := r.readCB.Execute(func() (interface{}, error) {
		var families []*domain.Family
		err := r.retry.do(ctx, func() error {
			var err error
			families, err = r.readFamilies(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		return families, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]*domain.Family), nil
}

func (r *SQLRecordStore) readFamilies(ctx context.Context) ([]*domain.Family, error) {
	rows, err := r.db.QueryContext(ctx, selectFamilies)
	if err != nil {
		return nil, err
	}
	var order []string
	byID := make(map[string]*familyRow)
	for rows.Next() {
		var (
			id       string
			healthID sql.NullString
			fr       familyRow
		)
		if err := rows.Scan(&id, &fr.Village, &fr.HeadName, &fr.Mobile, &fr.HouseNumber, &healthID, &fr.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		fr.ID = quotedID(id)
		if healthID.Valid {
			fr.HealthID = &healthID.String
		}
		order = append(order, id)
		byID[id] = &fr
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	mrows, err := r.db.QueryContext(ctx, selectMembers)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var (
			id, familyID string
			healthID     sql.NullString
			bmi          sql.NullFloat64
			symptoms     []byte
			history      []byte
			reasons      []byte
			carePlan     []byte
			mr           memberRow
		)
		if err := mrows.Scan(&id, &familyID, &mr.Name, &mr.Age, &mr.Gender, &healthID,
			&mr.WeightKg, &mr.HeightCm, &bmi, &mr.SystolicBP, &mr.Glucose, &mr.TemperatureF,
			&symptoms, &history, &mr.MissedFollowUps, &mr.Category, &mr.RiskLevel,
			&reasons, &carePlan); err != nil {
			return nil, err
		}
		fr, ok := byID[familyID]
		if !ok {
			continue
		}
		mr.ID, mr.FamilyID = quotedID(id), quotedID(familyID)
		if healthID.Valid {
			mr.HealthID = &healthID.String
		}
		if bmi.Valid {
			mr.BMI = &bmi.Float64
		}
		mr.Symptoms, mr.History = symptoms, history
		mr.RiskReasons, mr.CarePlan = reasons, carePlan
		fr.Members = append(fr.Members, mr)
	}
	if err := mrows.Err(); err != nil {
		return nil, err
	}

	families := make([]*domain.Family, 0, len(order))
	for _, id := range order {
		f, err := byID[id].toDomain()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errPermanent, err)
		}
		families = append(families, f)
	}
	return families, nil
}

func quotedID(id string) json.RawMessage {
	return json.RawMessage(strconv.Quote(id))
}
