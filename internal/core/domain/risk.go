package domain

import (
	"fmt"
	"strings"
)

// RiskLevel is ordered: Green < Orange < Red
type RiskLevel int

const (
	RiskGreen RiskLevel = iota
	RiskOrange
	RiskRed
)

func (l RiskLevel) String() string {
	switch l {
	case RiskOrange:
		return "Orange"
	case RiskRed:
		return "Red"
	default:
		return "Green"
	}
}

// Label is the triage wording used by the family directory (Low / Moderate / High)
func (l RiskLevel) Label() string {
	switch l {
	case RiskOrange:
		return "Moderate"
	case RiskRed:
		return "High"
	default:
		return "Low"
	}
}

func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *RiskLevel) UnmarshalText(text []byte) error {
	level, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// ParseRiskLevel accepts colour names and triage labels
func ParseRiskLevel(raw string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "green", "low":
		return RiskGreen, nil
	case "orange", "moderate":
		return RiskOrange, nil
	case "red", "high":
		return RiskRed, nil
	default:
		return RiskGreen, fmt.Errorf("unknown risk level %q", raw)
	}
}

// RiskReason tags one rule that fired during classification
type RiskReason string

const (
	ReasonHighSystolic RiskReason = "high_systolic_bp"
	ReasonHighGlucose  RiskReason = "high_glucose"
	ReasonFever        RiskReason = "high_temperature"

	ReasonSevereSystolic    RiskReason = "severe_systolic_bp"
	ReasonSevereGlucose     RiskReason = "severe_glucose"
	ReasonSevereTemperature RiskReason = "severe_temperature"

	ReasonBleeding              RiskReason = "pregnancy_bleeding"
	ReasonReducedFetalMovement  RiskReason = "pregnancy_reduced_fetal_movement"
	ReasonPregnancyHypertension RiskReason = "pregnancy_high_systolic_bp"

	ReasonConvulsions    RiskReason = "child_convulsions"
	ReasonLowMUAC        RiskReason = "child_low_muac"
	ReasonVisibleWasting RiskReason = "child_visible_wasting"
)

const (
	SystolicThreshold    = 140.0
	GlucoseThreshold     = 140.0
	TemperatureThreshold = 100.0

	SevereSystolicThreshold    = 180.0
	SevereGlucoseThreshold     = 350.0
	SevereTemperatureThreshold = 103.0

	PregnancySystolicThreshold = 140.0
	MUACThresholdCm            = 11.5
)

// Assessment is the outcome of classifying a member
type Assessment struct {
	Level   RiskLevel    `json:"level"`
	Reasons []RiskReason `json:"reasons"`
}

func (a Assessment) Has(reason RiskReason) bool {
	for _, r := range a.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

func (a *Assessment) raise(level RiskLevel, reasons ...RiskReason) {
	if len(reasons) == 0 {
		return
	}
	if level > a.Level {
		a.Level = level
	}
	a.Reasons = append(a.Reasons, reasons...)
}

// RiskPolicy holds the optional classification rules
type RiskPolicy struct {
	// SevereVitalsEscalation lets extreme general vitals reach Red
	SevereVitalsEscalation bool
}

// RiskClassifier is stateless apart from its policy and safe for concurrent use
type RiskClassifier struct {
	policy RiskPolicy
}

func NewRiskClassifier(policy RiskPolicy) *RiskClassifier {
	return &RiskClassifier{policy: policy}
}

var defaultClassifier = NewRiskClassifier(RiskPolicy{})

// Classify evaluates a member with the default policy
func Classify(m *Member) Assessment {
	return defaultClassifier.Classify(m)
}

// Classify returns the risk level and every rule that fired.
// A specialization Red overrides a general Orange.
func (c *RiskClassifier) Classify(m *Member) Assessment {
	a := Assessment{Level: RiskGreen, Reasons: []RiskReason{}}
	if m == nil {
		return a
	}

	a.raise(RiskOrange, GeneralVitalReasons(m.SystolicBP, m.Glucose, m.TemperatureF)...)
	if c.policy.SevereVitalsEscalation {
		a.raise(RiskRed, SevereVitalReasons(m.SystolicBP, m.Glucose, m.TemperatureF)...)
	}

	switch m.Category {
	case CategoryPregnancy:
		if m.Pregnancy != nil {
			a.raise(RiskRed, PregnancyDangerReasons(m.Pregnancy)...)
		}
	case CategoryChild:
		if m.Child != nil {
			a.raise(RiskRed, ChildDangerReasons(m.Child)...)
		}
	}
	return a
}

// GeneralVitalReasons returns the Orange triggers for core vitals
func GeneralVitalReasons(systolic, glucose, temperatureF float64) []RiskReason {
	var reasons []RiskReason
	if systolic > SystolicThreshold {
		reasons = append(reasons, ReasonHighSystolic)
	}
	if glucose > GlucoseThreshold {
		reasons = append(reasons, ReasonHighGlucose)
	}
	if temperatureF > TemperatureThreshold {
		reasons = append(reasons, ReasonFever)
	}
	return reasons
}

func SevereVitalReasons(systolic, glucose, temperatureF float64) []RiskReason {
	var reasons []RiskReason
	if systolic > SevereSystolicThreshold {
		reasons = append(reasons, ReasonSevereSystolic)
	}
	if glucose > SevereGlucoseThreshold {
		reasons = append(reasons, ReasonSevereGlucose)
	}
	if temperatureF > SevereTemperatureThreshold {
		reasons = append(reasons, ReasonSevereTemperature)
	}
	return reasons
}

// PregnancyDangerReasons is the single Red rule for pregnancies, shared by
// the pre-save banner and the finalize step.
func PregnancyDangerReasons(p *PregnancySpecialization) []RiskReason {
	var reasons []RiskReason
	if p.DangerSigns.Bleeding {
		reasons = append(reasons, ReasonBleeding)
	}
	if p.DangerSigns.ReducedFetalMovement {
		reasons = append(reasons, ReasonReducedFetalMovement)
	}
	if p.Vitals.SystolicBP > PregnancySystolicThreshold {
		reasons = append(reasons, ReasonPregnancyHypertension)
	}
	return reasons
}

// Malnourished reports MUAC below 11.5 cm or visible wasting.
// A MUAC of zero means it was not measured.
func (c *ChildSpecialization) Malnourished() bool {
	return (c.Growth.MUACCm > 0 && c.Growth.MUACCm < MUACThresholdCm) || c.Growth.VisibleWasting
}

func ChildDangerReasons(c *ChildSpecialization) []RiskReason {
	var reasons []RiskReason
	if c.Symptoms.Convulsions {
		reasons = append(reasons, ReasonConvulsions)
	}
	if c.Growth.MUACCm > 0 && c.Growth.MUACCm < MUACThresholdCm {
		reasons = append(reasons, ReasonLowMUAC)
	}
	if c.Growth.VisibleWasting {
		reasons = append(reasons, ReasonVisibleWasting)
	}
	return reasons
}

const (
	BannerHighRisk = "HIGH RISK"
	BannerNormal   = "NORMAL"
)

// Banner is the informational risk summary shown before a specialization is saved
type Banner struct {
	Status       string `json:"status"`
	Advice       string `json:"advice"`
	Malnutrition string `json:"malnutrition,omitempty"`
	Referral     string `json:"referral,omitempty"`
}

func (b Banner) HighRisk() bool {
	return strings.HasPrefix(b.Status, BannerHighRisk)
}

func PregnancyBanner(p *PregnancySpecialization) Banner {
	if len(PregnancyDangerReasons(p)) > 0 {
		return Banner{Status: BannerHighRisk, Advice: "Immediate referral recommended. Danger signs detected."}
	}
	return Banner{Status: BannerNormal, Advice: "Routine ANC follow-up required. Ensure iron/calcium adherence."}
}

func ChildBanner(c *ChildSpecialization) Banner {
	b := Banner{Status: "HEALTHY CHILD", Malnutrition: "Normal", Referral: "Routine care", Advice: "Continue growth monitoring."}
	if c.Malnourished() {
		b.Malnutrition = "Severe (SAM)"
	}
	if len(ChildDangerReasons(c)) > 0 {
		b.Status = "HIGH RISK DETECTED"
		b.Referral = "Immediate PHC Referral"
		b.Advice = "Immediate referral recommended. Danger signs detected."
	}
	return b
}
