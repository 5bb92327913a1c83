package services

import (
	"github.com/umeed-health/asha-service/internal/core/domain"
)

// Record builders map domain values onto store rows.
// Flag sets and nested sections are passed as structs; adapters encode them as JSON.

func familyRecord(f *domain.Family) map[string]any {
	return map[string]any{
		"village":      f.Village,
		"head_name":    f.HeadName,
		"mobile":       f.Mobile,
		"house_number": f.HouseNumber,
		"health_id":    f.HealthID,
	}
}

func memberRecord(m *domain.Member, familyID string) map[string]any {
	var bmi any
	if m.BMI.Available() {
		bmi = float64(m.BMI)
	}
	return map[string]any{
		"family_id":         familyID,
		"name":              m.Name,
		"age":               m.Age,
		"gender":            string(m.Gender),
		"health_id":         m.HealthID,
		"weight_kg":         m.WeightKg,
		"height_cm":         m.HeightCm,
		"bmi":               bmi,
		"systolic_bp":       m.SystolicBP,
		"glucose":           m.Glucose,
		"temperature_f":     m.TemperatureF,
		"symptoms":          m.Symptoms,
		"history":           m.History,
		"missed_follow_ups": m.MissedFollowUps,
		"category":          string(m.Category),
		"risk_level":        m.Risk.Level.String(),
		"risk_reasons":      m.Risk.Reasons,
		"care_plan":         m.CarePlan,
	}
}

func pregnancyRecord(p *domain.PregnancySpecialization, memberID string) map[string]any {
	var lmp, edd any
	if p.LMP != nil {
		lmp = p.LMP.Format("2006-01-02")
	}
	if due, ok := p.EstimatedDueDate(); ok {
		edd = due.Format("2006-01-02")
	}
	return map[string]any{
		"member_id":    memberID,
		"gravida":      p.Gravida,
		"para":         p.Para,
		"trimester":    string(p.Trimester),
		"lmp":          lmp,
		"edd":          edd,
		"history":      p.History,
		"vitals":       p.Vitals,
		"danger_signs": p.DangerSigns,
		"compliance":   p.Compliance,
	}
}

func childRecord(c *domain.ChildSpecialization, memberID string) map[string]any {
	return map[string]any{
		"member_id":  memberID,
		"growth":     c.Growth,
		"vitals":     c.Vitals,
		"symptoms":   c.Symptoms,
		"compliance": c.Compliance,
	}
}
