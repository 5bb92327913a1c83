package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/umeed-health/asha-service/internal/core/domain"
)

// familyRow and memberRow mirror the families and members tables.
// JSON tags match the column names so PostgREST responses decode directly.
type familyRow struct {
	ID          json.RawMessage `json:"id"`
	Village     string          `json:"village"`
	HeadName    string          `json:"head_name"`
	Mobile      string          `json:"mobile"`
	HouseNumber string          `json:"house_number"`
	HealthID    *string         `json:"health_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Members     []memberRow     `json:"members"`
}

type memberRow struct {
	ID              json.RawMessage `json:"id"`
	FamilyID        json.RawMessage `json:"family_id"`
	Name            string          `json:"name"`
	Age             int             `json:"age"`
	Gender          string          `json:"gender"`
	HealthID        *string         `json:"health_id"`
	WeightKg        float64         `json:"weight_kg"`
	HeightCm        float64         `json:"height_cm"`
	BMI             *float64        `json:"bmi"`
	SystolicBP      float64         `json:"systolic_bp"`
	Glucose         float64         `json:"glucose"`
	TemperatureF    float64         `json:"temperature_f"`
	Symptoms        json.RawMessage `json:"symptoms"`
	History         json.RawMessage `json:"history"`
	MissedFollowUps int             `json:"missed_follow_ups"`
	Category        string          `json:"category"`
	RiskLevel       string          `json:"risk_level"`
	RiskReasons     json.RawMessage `json:"risk_reasons"`
	CarePlan        json.RawMessage `json:"care_plan"`
}

// rawID renders a JSON id (string or number) as a string
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func decodeSection(raw json.RawMessage, dst any, name string) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid %s column: %w", name, err)
	}
	return nil
}

func (r familyRow) toDomain() (*domain.Family, error) {
	f := &domain.Family{
		ID:          rawID(r.ID),
		Village:     r.Village,
		HeadName:    r.HeadName,
		Mobile:      r.Mobile,
		HouseNumber: r.HouseNumber,
		CreatedAt:   r.CreatedAt,
		Members:     make([]*domain.Member, 0, len(r.Members)),
	}
	if r.HealthID != nil {
		f.HealthID = *r.HealthID
	}
	for _, mr := range r.Members {
		m, err := mr.toDomain()
		if err != nil {
			return nil, fmt.Errorf("family %s: %w", f.ID, err)
		}
		f.Members = append(f.Members, m)
	}
	return f, nil
}

func (r memberRow) toDomain() (*domain.Member, error) {
	m := &domain.Member{
		ID:              rawID(r.ID),
		FamilyID:        rawID(r.FamilyID),
		Name:            r.Name,
		AgeInput:        fmt.Sprint(r.Age),
		Age:             r.Age,
		Gender:          domain.Gender(r.Gender),
		WeightKg:        r.WeightKg,
		HeightCm:        r.HeightCm,
		SystolicBP:      r.SystolicBP,
		Glucose:         r.Glucose,
		TemperatureF:    r.TemperatureF,
		MissedFollowUps: r.MissedFollowUps,
		Category:        domain.Category(r.Category),
		CarePlan:        []string{},
	}
	if r.HealthID != nil {
		m.HealthID = *r.HealthID
	}
	if r.BMI != nil {
		m.BMI = domain.BMI(*r.BMI)
	}
	level, err := domain.ParseRiskLevel(r.RiskLevel)
	if err != nil {
		return nil, fmt.Errorf("member %s: %w", m.ID, err)
	}
	m.Risk = domain.Assessment{Level: level, Reasons: []domain.RiskReason{}}
	if err := decodeSection(r.Symptoms, &m.Symptoms, "symptoms"); err != nil {
		return nil, err
	}
	if err := decodeSection(r.History, &m.History, "history"); err != nil {
		return nil, err
	}
	if err := decodeSection(r.RiskReasons, &m.Risk.Reasons, "risk_reasons"); err != nil {
		return nil, err
	}
	if err := decodeSection(r.CarePlan, &m.CarePlan, "care_plan"); err != nil {
		return nil, err
	}
	return m, nil
}
