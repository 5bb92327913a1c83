package domain

var (
	pregnancyCare = []string{
		"regular iron & calcium intake",
		"schedule/complete next ANC visit",
		"monitor BP and weight weekly",
	}
	diabetesCare = []string{
		"strict dietary control",
		"regular fasting & post-prandial glucose checks",
	}
	hypertensionCare = []string{
		"salt-restricted diet",
		"daily BP monitoring",
	}
	youngChildCare = []string{
		"ensure full immunization schedule",
		"regular growth monitoring",
		"nutritional supplements if required",
	}
	wellnessCare = []string{
		"balanced diet",
		"daily physical activity",
		"annual check-up",
	}
)

// YoungChildMaxAge is the inclusive age bound of the immunization and growth block
const YoungChildMaxAge = 5

// GenerateCarePlan returns the recommended actions for a classified member.
// Blocks are appended in a fixed order and the result depends only on m.
func GenerateCarePlan(m *Member) []string {
	plan := make([]string, 0, 8)
	if m == nil {
		return append(plan, wellnessCare...)
	}
	if m.Category == CategoryPregnancy {
		plan = append(plan, pregnancyCare...)
	}
	if hasDiabetes(m) {
		plan = append(plan, diabetesCare...)
	}
	if hasHypertension(m) || maxSystolic(m) >= SystolicThreshold {
		plan = append(plan, hypertensionCare...)
	}
	if m.Age <= YoungChildMaxAge {
		plan = append(plan, youngChildCare...)
	}
	if len(plan) == 0 {
		plan = append(plan, wellnessCare...)
	}
	return plan
}

func hasDiabetes(m *Member) bool {
	return m.History.Diabetes || (m.Pregnancy != nil && m.Pregnancy.History.Diabetes)
}

func hasHypertension(m *Member) bool {
	return m.History.Hypertension || (m.Pregnancy != nil && m.Pregnancy.History.Hypertension)
}

func maxSystolic(m *Member) float64 {
	sys := m.SystolicBP
	if m.Pregnancy != nil && m.Pregnancy.Vitals.SystolicBP > sys {
		sys = m.Pregnancy.Vitals.SystolicBP
	}
	return sys
}

// FollowUpAdvice maps a risk level to the recommended follow-up interval
func FollowUpAdvice(level RiskLevel) string {
	switch level {
	case RiskRed:
		return "Immediate PHC Referral"
	case RiskOrange:
		return "Follow-up within 7 days"
	default:
		return "Routine follow-up (30 days)"
	}
}

// PriorityScore ranks members for visit planning; higher is more urgent
func PriorityScore(level RiskLevel, missedFollowUps int, trimester Trimester) int {
	score := 10
	switch level {
	case RiskRed:
		score = 80
	case RiskOrange:
		score = 40
	}
	switch {
	case missedFollowUps > 4:
		score += 25
	case missedFollowUps > 2:
		score += 15
	}
	if trimester == TrimesterThird {
		score += 20
	}
	return score
}

// MemberPriority scores a finalized member
func MemberPriority(m *Member) int {
	missed := m.MissedFollowUps
	var trimester Trimester
	if m.Pregnancy != nil {
		trimester = m.Pregnancy.Trimester
		if m.Pregnancy.Compliance.MissedFollowUps > missed {
			missed = m.Pregnancy.Compliance.MissedFollowUps
		}
	}
	if m.Child != nil && m.Child.Compliance.MissedFollowUps > missed {
		missed = m.Child.Compliance.MissedFollowUps
	}
	return PriorityScore(m.Risk.Level, missed, trimester)
}
