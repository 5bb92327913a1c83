package domain

import "strings"

// FlagField describes one boolean flag of a flag set T.
// Slices of FlagField fix the order used for rendering, reasons and persistence.
type FlagField[T any] struct {
	Key   string
	Label string
	Get   func(T) bool
	Set   func(*T, bool)
}

// ParseYesNo converts UI toggle values ("Yes"/"No", "true"/"false") to a bool.
// Anything unrecognized is false.
func ParseYesNo(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "1":
		return true
	default:
		return false
	}
}

// YesNo renders a bool the way the mobile forms display toggles
func YesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// FlagsFromStrings builds a flag set from a key -> "Yes"/"No" map.
// Unknown keys are ignored.
func FlagsFromStrings[T any](fields []FlagField[T], values map[string]string) T {
	var out T
	for _, f := range fields {
		if v, ok := values[f.Key]; ok {
			f.Set(&out, ParseYesNo(v))
		}
	}
	return out
}

// ActiveFlags returns the keys of the set flags in descriptor order
func ActiveFlags[T any](fields []FlagField[T], value T) []string {
	var keys []string
	for _, f := range fields {
		if f.Get(value) {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// FlagLabels returns the labels of the set flags in descriptor order
func FlagLabels[T any](fields []FlagField[T], value T) []string {
	var labels []string
	for _, f := range fields {
		if f.Get(value) {
			labels = append(labels, f.Label)
		}
	}
	return labels
}

// GeneralSymptoms are the symptom toggles captured for every member
type GeneralSymptoms struct {
	PersistentCough bool `json:"persistent_cough"`
	ChestPain       bool `json:"chest_pain"`
	Breathlessness  bool `json:"breathlessness"`
	WeightLoss      bool `json:"weight_loss"`
	Fever           bool `json:"fever"`
}

var GeneralSymptomFields = []FlagField[GeneralSymptoms]{
	{"persistent_cough", "Persistent cough", func(s GeneralSymptoms) bool { return s.PersistentCough }, func(s *GeneralSymptoms, v bool) { s.PersistentCough = v }},
	{"chest_pain", "Chest pain", func(s GeneralSymptoms) bool { return s.ChestPain }, func(s *GeneralSymptoms, v bool) { s.ChestPain = v }},
	{"breathlessness", "Breathlessness", func(s GeneralSymptoms) bool { return s.Breathlessness }, func(s *GeneralSymptoms, v bool) { s.Breathlessness = v }},
	{"weight_loss", "Weight loss", func(s GeneralSymptoms) bool { return s.WeightLoss }, func(s *GeneralSymptoms, v bool) { s.WeightLoss = v }},
	{"fever", "Fever", func(s GeneralSymptoms) bool { return s.Fever }, func(s *GeneralSymptoms, v bool) { s.Fever = v }},
}

// MedicalHistory holds the known chronic conditions of a member
type MedicalHistory struct {
	Diabetes     bool `json:"diabetes"`
	Hypertension bool `json:"hypertension"`
	TB           bool `json:"tb"`
}

var MedicalHistoryFields = []FlagField[MedicalHistory]{
	{"diabetes", "Diabetes", func(h MedicalHistory) bool { return h.Diabetes }, func(h *MedicalHistory, v bool) { h.Diabetes = v }},
	{"hypertension", "Hypertension", func(h MedicalHistory) bool { return h.Hypertension }, func(h *MedicalHistory, v bool) { h.Hypertension = v }},
	{"tb", "TB", func(h MedicalHistory) bool { return h.TB }, func(h *MedicalHistory, v bool) { h.TB = v }},
}

// PregnancyHistory are the obstetric history risk flags
type PregnancyHistory struct {
	PriorCSection       bool `json:"prior_c_section"`
	Miscarriage         bool `json:"miscarriage"`
	Stillbirth          bool `json:"stillbirth"`
	Hypertension        bool `json:"hypertension"`
	Diabetes            bool `json:"diabetes"`
	Anemia              bool `json:"anemia"`
	ThyroidDisorder     bool `json:"thyroid_disorder"`
	MultipleGestation   bool `json:"multiple_gestation"`
	AdvancedMaternalAge bool `json:"advanced_maternal_age"`
}

var PregnancyHistoryFields = []FlagField[PregnancyHistory]{
	{"prior_c_section", "Previous C-section", func(h PregnancyHistory) bool { return h.PriorCSection }, func(h *PregnancyHistory, v bool) { h.PriorCSection = v }},
	{"miscarriage", "Miscarriage", func(h PregnancyHistory) bool { return h.Miscarriage }, func(h *PregnancyHistory, v bool) { h.Miscarriage = v }},
	{"stillbirth", "Stillbirth", func(h PregnancyHistory) bool { return h.Stillbirth }, func(h *PregnancyHistory, v bool) { h.Stillbirth = v }},
	{"hypertension", "Hypertension", func(h PregnancyHistory) bool { return h.Hypertension }, func(h *PregnancyHistory, v bool) { h.Hypertension = v }},
	{"diabetes", "Diabetes", func(h PregnancyHistory) bool { return h.Diabetes }, func(h *PregnancyHistory, v bool) { h.Diabetes = v }},
	{"anemia", "Anemia", func(h PregnancyHistory) bool { return h.Anemia }, func(h *PregnancyHistory, v bool) { h.Anemia = v }},
	{"thyroid_disorder", "Thyroid disorder", func(h PregnancyHistory) bool { return h.ThyroidDisorder }, func(h *PregnancyHistory, v bool) { h.ThyroidDisorder = v }},
	{"multiple_gestation", "Multiple gestation", func(h PregnancyHistory) bool { return h.MultipleGestation }, func(h *PregnancyHistory, v bool) { h.MultipleGestation = v }},
	{"advanced_maternal_age", "Advanced maternal age", func(h PregnancyHistory) bool { return h.AdvancedMaternalAge }, func(h *PregnancyHistory, v bool) { h.AdvancedMaternalAge = v }},
}

// DangerSigns are the pregnancy danger-sign symptoms
type DangerSigns struct {
	Headache             bool `json:"headache"`
	BlurredVision        bool `json:"blurred_vision"`
	AbdominalPain        bool `json:"abdominal_pain"`
	Bleeding             bool `json:"bleeding"`
	Breathlessness       bool `json:"breathlessness"`
	ReducedFetalMovement bool `json:"reduced_fetal_movement"`
	Fever                bool `json:"fever"`
	Vomiting             bool `json:"vomiting"`
}

var PregnancyDangerSignFields = []FlagField[DangerSigns]{
	{"headache", "Headache", func(d DangerSigns) bool { return d.Headache }, func(d *DangerSigns, v bool) { d.Headache = v }},
	{"blurred_vision", "Blurred vision", func(d DangerSigns) bool { return d.BlurredVision }, func(d *DangerSigns, v bool) { d.BlurredVision = v }},
	{"abdominal_pain", "Abdominal pain", func(d DangerSigns) bool { return d.AbdominalPain }, func(d *DangerSigns, v bool) { d.AbdominalPain = v }},
	{"bleeding", "Bleeding", func(d DangerSigns) bool { return d.Bleeding }, func(d *DangerSigns, v bool) { d.Bleeding = v }},
	{"breathlessness", "Breathlessness", func(d DangerSigns) bool { return d.Breathlessness }, func(d *DangerSigns, v bool) { d.Breathlessness = v }},
	{"reduced_fetal_movement", "Reduced fetal movement", func(d DangerSigns) bool { return d.ReducedFetalMovement }, func(d *DangerSigns, v bool) { d.ReducedFetalMovement = v }},
	{"fever", "Fever", func(d DangerSigns) bool { return d.Fever }, func(d *DangerSigns, v bool) { d.Fever = v }},
	{"vomiting", "Vomiting", func(d DangerSigns) bool { return d.Vomiting }, func(d *DangerSigns, v bool) { d.Vomiting = v }},
}

// ChildSymptoms are the symptom toggles of the child form
type ChildSymptoms struct {
	Fever          bool `json:"fever"`
	Cough          bool `json:"cough"`
	Diarrhea       bool `json:"diarrhea"`
	Vomiting       bool `json:"vomiting"`
	FeedingRefusal bool `json:"feeding_refusal"`
	Lethargy       bool `json:"lethargy"`
	Convulsions    bool `json:"convulsions"`
}

var ChildSymptomFields = []FlagField[ChildSymptoms]{
	{"fever", "Fever", func(c ChildSymptoms) bool { return c.Fever }, func(c *ChildSymptoms, v bool) { c.Fever = v }},
	{"cough", "Cough", func(c ChildSymptoms) bool { return c.Cough }, func(c *ChildSymptoms, v bool) { c.Cough = v }},
	{"diarrhea", "Diarrhea", func(c ChildSymptoms) bool { return c.Diarrhea }, func(c *ChildSymptoms, v bool) { c.Diarrhea = v }},
	{"vomiting", "Vomiting", func(c ChildSymptoms) bool { return c.Vomiting }, func(c *ChildSymptoms, v bool) { c.Vomiting = v }},
	{"feeding_refusal", "Refusal to feed", func(c ChildSymptoms) bool { return c.FeedingRefusal }, func(c *ChildSymptoms, v bool) { c.FeedingRefusal = v }},
	{"lethargy", "Lethargy", func(c ChildSymptoms) bool { return c.Lethargy }, func(c *ChildSymptoms, v bool) { c.Lethargy = v }},
	{"convulsions", "Convulsions", func(c ChildSymptoms) bool { return c.Convulsions }, func(c *ChildSymptoms, v bool) { c.Convulsions = v }},
}
