package domain

import (
	"fmt"
	"strings"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// ParseGender maps form values onto Gender; unknown values become Other
func ParseGender(raw string) Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	default:
		return GenderOther
	}
}

type Category string

const (
	CategoryGeneral   Category = "General"
	CategoryPregnancy Category = "Pregnancy"
	CategoryChild     Category = "Child"
)

const (
	// PregnancyMinAge is exclusive: a Female member must be older than this
	PregnancyMinAge = 17
	// ChildMaxAge is inclusive
	ChildMaxAge = 3
)

// CategoryFor returns the candidate category for gender and age.
// A Pregnancy candidate still needs the pregnancy prompt confirmed.
func CategoryFor(gender Gender, age int) Category {
	if gender == GenderFemale && age > PregnancyMinAge {
		return CategoryPregnancy
	}
	if age <= ChildMaxAge {
		return CategoryChild
	}
	return CategoryGeneral
}

// Family is a registered household. Members are kept in registration order.
type Family struct {
	ID          string    `json:"id,omitempty"`
	Village     string    `json:"village"`
	HeadName    string    `json:"head_name"`
	Mobile      string    `json:"mobile"`
	HouseNumber string    `json:"house_number"`
	HealthID    string    `json:"health_id,omitempty"`
	Members     []*Member `json:"members"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Validate checks the fields required before the family can be persisted
func (f *Family) Validate() *ValidationError {
	fields := map[string]string{}
	if strings.TrimSpace(f.HeadName) == "" {
		fields["family.head_name"] = "required"
	}
	if strings.TrimSpace(f.Village) == "" {
		fields["family.village"] = "required"
	}
	for i, m := range f.Members {
		if strings.TrimSpace(m.Name) == "" {
			fields[fmt.Sprintf("members[%d].name", i)] = "required"
		}
		if strings.TrimSpace(m.AgeInput) == "" {
			fields[fmt.Sprintf("members[%d].age", i)] = "required"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return NewValidationError("registration is incomplete: family needs head name and village, every member needs name and age", fields)
}

// HighestRisk returns the worst risk level among the members
func (f *Family) HighestRisk() RiskLevel {
	level := RiskGreen
	for _, m := range f.Members {
		if m.Risk.Level > level {
			level = m.Risk.Level
		}
	}
	return level
}

// Member is one person of a family. At most one of Pregnancy and Child is set.
type Member struct {
	ID              string                   `json:"id,omitempty"`
	FamilyID        string                   `json:"family_id,omitempty"`
	Name            string                   `json:"name"`
	AgeInput        string                   `json:"age_input"`
	Age             int                      `json:"age"`
	Gender          Gender                   `json:"gender"`
	HealthID        string                   `json:"health_id,omitempty"`
	WeightKg        float64                  `json:"weight_kg"`
	HeightCm        float64                  `json:"height_cm"`
	BMI             BMI                      `json:"bmi"`
	SystolicBP      float64                  `json:"systolic_bp"`
	Glucose         float64                  `json:"glucose"`
	TemperatureF    float64                  `json:"temperature_f"`
	Symptoms        GeneralSymptoms          `json:"symptoms"`
	History         MedicalHistory           `json:"history"`
	MissedFollowUps int                      `json:"missed_follow_ups"`
	Category        Category                 `json:"category"`
	Risk            Assessment               `json:"risk"`
	CarePlan        []string                 `json:"care_plan"`
	Pregnancy       *PregnancySpecialization `json:"pregnancy,omitempty"`
	Child           *ChildSpecialization     `json:"child,omitempty"`
}

// SetAnthropometry updates weight and height and recomputes BMI
func (m *Member) SetAnthropometry(weightKg, heightCm float64) {
	m.WeightKg = weightKg
	m.HeightCm = heightCm
	m.BMI = CalculateBMI(weightKg, heightCm)
}

// MemberInput carries the core fields of the member form
type MemberInput struct {
	Name            string          `json:"name"`
	Age             string          `json:"age"`
	Gender          Gender          `json:"gender"`
	HealthID        string          `json:"health_id"`
	WeightKg        float64         `json:"weight_kg"`
	HeightCm        float64         `json:"height_cm"`
	SystolicBP      float64         `json:"systolic_bp"`
	Glucose         float64         `json:"glucose"`
	TemperatureF    float64         `json:"temperature_f"`
	Symptoms        GeneralSymptoms `json:"symptoms"`
	History         MedicalHistory  `json:"history"`
	MissedFollowUps int             `json:"missed_follow_ups"`
}

// DefaultMemberInput returns the neutral values a fresh member form starts with
func DefaultMemberInput() MemberInput {
	return MemberInput{
		Gender:       GenderFemale,
		WeightKg:     60,
		HeightCm:     160,
		SystolicBP:   120,
		Glucose:      100,
		TemperatureF: 98.6,
	}
}

// NewMember builds a draft member from form input
func NewMember(in MemberInput) *Member {
	if in.MissedFollowUps < 0 {
		in.MissedFollowUps = 0
	}
	m := &Member{
		Name:            strings.TrimSpace(in.Name),
		AgeInput:        strings.TrimSpace(in.Age),
		Age:             ParseAge(in.Age),
		Gender:          in.Gender,
		HealthID:        in.HealthID,
		SystolicBP:      in.SystolicBP,
		Glucose:         in.Glucose,
		TemperatureF:    in.TemperatureF,
		Symptoms:        in.Symptoms,
		History:         in.History,
		MissedFollowUps: in.MissedFollowUps,
		Category:        CategoryGeneral,
	}
	if m.Gender == "" {
		m.Gender = GenderOther
	}
	m.SetAnthropometry(in.WeightKg, in.HeightCm)
	return m
}

// FamilyInput carries the family form fields
type FamilyInput struct {
	Village     string `json:"village"`
	HeadName    string `json:"head_name"`
	Mobile      string `json:"mobile"`
	HouseNumber string `json:"house_number"`
	HealthID    string `json:"health_id"`
}
