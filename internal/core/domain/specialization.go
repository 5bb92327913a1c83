package domain

import (
	"fmt"
	"strings"
	"time"
)

type Trimester string

const (
	TrimesterFirst  Trimester = "1st"
	TrimesterSecond Trimester = "2nd"
	TrimesterThird  Trimester = "3rd"
)

// Number returns 1, 2 or 3, or 0 for an unknown trimester
func (t Trimester) Number() int {
	switch t {
	case TrimesterFirst:
		return 1
	case TrimesterSecond:
		return 2
	case TrimesterThird:
		return 3
	default:
		return 0
	}
}

func (t Trimester) Valid() bool {
	return t.Number() != 0
}

type UrineProtein string

const (
	UrineProteinNegative UrineProtein = "Negative"
	UrineProteinTrace    UrineProtein = "Trace"
	UrineProteinPlus     UrineProtein = "+"
	UrineProteinPlusPlus UrineProtein = "++"
)

func (u UrineProtein) Valid() bool {
	switch u {
	case UrineProteinNegative, UrineProteinTrace, UrineProteinPlus, UrineProteinPlusPlus:
		return true
	}
	return false
}

// GestationDays is the span from LMP to the estimated due date
const GestationDays = 280

type PregnancyVitals struct {
	SystolicBP   float64      `json:"systolic_bp"`
	DiastolicBP  float64      `json:"diastolic_bp"`
	Glucose      float64      `json:"glucose"`
	TemperatureF float64      `json:"temperature_f"`
	WeightKg     float64      `json:"weight_kg"`
	Edema        bool         `json:"edema"`
	UrineProtein UrineProtein `json:"urine_protein"`
}

type PregnancyCompliance struct {
	IronAdherent    bool `json:"iron_adherent"`
	CalciumAdherent bool `json:"calcium_adherent"`
	TTDoses         int  `json:"tt_doses"`
	MissedANC       bool `json:"missed_anc"`
	MissedFollowUps int  `json:"missed_follow_ups"`
}

// PregnancySpecialization is the antenatal record of a Pregnancy member
type PregnancySpecialization struct {
	Gravida     int                 `json:"gravida"`
	Para        int                 `json:"para"`
	Trimester   Trimester           `json:"trimester"`
	LMP         *time.Time          `json:"lmp,omitempty"`
	History     PregnancyHistory    `json:"history"`
	Vitals      PregnancyVitals     `json:"vitals"`
	DangerSigns DangerSigns         `json:"danger_signs"`
	Compliance  PregnancyCompliance `json:"compliance"`
}

// DefaultPregnancy returns the neutral values a fresh pregnancy form starts with
func DefaultPregnancy() PregnancySpecialization {
	return PregnancySpecialization{
		Gravida:   1,
		Para:      0,
		Trimester: TrimesterFirst,
		Vitals: PregnancyVitals{
			SystolicBP:   120,
			DiastolicBP:  80,
			Glucose:      100,
			TemperatureF: 98.6,
			WeightKg:     65,
			UrineProtein: UrineProteinNegative,
		},
		Compliance: PregnancyCompliance{IronAdherent: true, CalciumAdherent: true, TTDoses: 1},
	}
}

// EstimatedDueDate is LMP + 280 days; ok is false when LMP is not set
func (p *PregnancySpecialization) EstimatedDueDate() (time.Time, bool) {
	if p.LMP == nil || p.LMP.IsZero() {
		return time.Time{}, false
	}
	return p.LMP.AddDate(0, 0, GestationDays), true
}

func (p *PregnancySpecialization) Validate() *ValidationError {
	fields := map[string]string{}
	if p.Gravida < 1 {
		fields["pregnancy.gravida"] = "must be at least 1"
	}
	if p.Para < 0 {
		fields["pregnancy.para"] = "must not be negative"
	}
	if !p.Trimester.Valid() {
		fields["pregnancy.trimester"] = fmt.Sprintf("must be one of %s, %s, %s", TrimesterFirst, TrimesterSecond, TrimesterThird)
	}
	if p.Vitals.UrineProtein != "" && !p.Vitals.UrineProtein.Valid() {
		fields["pregnancy.vitals.urine_protein"] = "must be Negative, Trace, + or ++"
	}
	if p.Compliance.TTDoses < 0 {
		fields["pregnancy.compliance.tt_doses"] = "must not be negative"
	}
	if p.Compliance.MissedFollowUps < 0 {
		fields["pregnancy.compliance.missed_follow_ups"] = "must not be negative"
	}
	if len(fields) == 0 {
		return nil
	}
	return NewValidationError("invalid pregnancy record", fields)
}

type ChildGrowth struct {
	WeightKg       float64 `json:"weight_kg"`
	HeightCm       float64 `json:"height_cm"`
	MUACCm         float64 `json:"muac_cm"`
	VisibleWasting bool    `json:"visible_wasting"`
}

type ChildVitals struct {
	TemperatureF    float64 `json:"temperature_f"`
	RespiratoryRate int     `json:"respiratory_rate"`
}

type ChildCompliance struct {
	FullyImmunized        bool `json:"fully_immunized"`
	MissedVaccine         bool `json:"missed_vaccine"`
	MissedFollowUps       int  `json:"missed_follow_ups"`
	RecentHospitalization bool `json:"recent_hospitalization"`
}

// ChildSpecialization is the growth and illness record of a Child member
type ChildSpecialization struct {
	Growth     ChildGrowth     `json:"growth"`
	Vitals     ChildVitals     `json:"vitals"`
	Symptoms   ChildSymptoms   `json:"symptoms"`
	Compliance ChildCompliance `json:"compliance"`
}

func DefaultChild() ChildSpecialization {
	return ChildSpecialization{
		Growth:     ChildGrowth{WeightKg: 12, HeightCm: 85, MUACCm: 13.5},
		Vitals:     ChildVitals{TemperatureF: 98.6, RespiratoryRate: 30},
		Compliance: ChildCompliance{FullyImmunized: true},
	}
}

func (c *ChildSpecialization) Validate() *ValidationError {
	fields := map[string]string{}
	if c.Growth.MUACCm < 0 {
		fields["child.growth.muac_cm"] = "must not be negative"
	}
	if c.Vitals.RespiratoryRate < 0 {
		fields["child.vitals.respiratory_rate"] = "must not be negative"
	}
	if c.Compliance.MissedFollowUps < 0 {
		fields["child.compliance.missed_follow_ups"] = "must not be negative"
	}
	if len(fields) == 0 {
		return nil
	}
	return NewValidationError("invalid child record", fields)
}

// ParseTrimester accepts "1st", "2", "third" and similar
func ParseTrimester(raw string) Trimester {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1st", "1", "first":
		return TrimesterFirst
	case "2nd", "2", "second":
		return TrimesterSecond
	case "3rd", "3", "third":
		return TrimesterThird
	default:
		return Trimester(raw)
	}
}
