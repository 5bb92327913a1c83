package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/umeed-health/asha-service/internal/core/domain"
)

// formValue is one entry field as the mobile form sends it: a JSON string,
// number or bool. Absent fields stay nil and take the form default.
type formValue string

func (v *formValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = formValue(s)
	default:
		*v = formValue(data)
	}
	return nil
}

// fieldErrors collects per-field parse failures
type fieldErrors map[string]string

func (fe fieldErrors) number(key string, v *formValue, def float64) float64 {
	if v == nil {
		return def
	}
	if strings.TrimSpace(string(*v)) == "" {
		return 0
	}
	n, ok := domain.ParseMeasurement(string(*v))
	if !ok {
		fe[key] = "must be a number"
		return 0
	}
	return n
}

func (fe fieldErrors) count(key string, v *formValue, def int) int {
	n := fe.number(key, v, float64(def))
	if n != math.Trunc(n) {
		fe[key] = "must be a whole number"
		return 0
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		fe[key] = "is out of range"
		return 0
	}
	return int(n)
}

func toggle(v *formValue, def bool) bool {
	if v == nil {
		return def
	}
	return domain.ParseYesNo(string(*v))
}

func (fe fieldErrors) err(message string) error {
	if len(fe) == 0 {
		return nil
	}
	return domain.NewValidationError(message, fe)
}

type toggles map[string]formValue

func (t toggles) values() map[string]string {
	out := make(map[string]string, len(t))
	for k, v := range t {
		out[k] = string(v)
	}
	return out
}

// MemberForm is the body of the member form
type MemberForm struct {
	Name            string     `json:"name"`
	Age             *formValue `json:"age"`
	Gender          string     `json:"gender"`
	HealthID        string     `json:"health_id"`
	WeightKg        *formValue `json:"weight_kg"`
	HeightCm        *formValue `json:"height_cm"`
	SystolicBP      *formValue `json:"systolic_bp"`
	Glucose         *formValue `json:"glucose"`
	TemperatureF    *formValue `json:"temperature_f"`
	Symptoms        toggles    `json:"symptoms"`
	History         toggles    `json:"history"`
	MissedFollowUps *formValue `json:"missed_follow_ups"`
}

func (f *MemberForm) Input() (domain.MemberInput, error) {
	in := domain.DefaultMemberInput()
	fe := fieldErrors{}
	in.Name = f.Name
	if f.Age != nil {
		in.Age = string(*f.Age)
	}
	if f.Gender != "" {
		in.Gender = domain.ParseGender(f.Gender)
	}
	in.HealthID = strings.TrimSpace(f.HealthID)
	in.WeightKg = fe.number("weight_kg", f.WeightKg, in.WeightKg)
	in.HeightCm = fe.number("height_cm", f.HeightCm, in.HeightCm)
	in.SystolicBP = fe.number("systolic_bp", f.SystolicBP, in.SystolicBP)
	in.Glucose = fe.number("glucose", f.Glucose, in.Glucose)
	in.TemperatureF = fe.number("temperature_f", f.TemperatureF, in.TemperatureF)
	in.MissedFollowUps = fe.count("missed_follow_ups", f.MissedFollowUps, 0)
	in.Symptoms = domain.FlagsFromStrings(domain.GeneralSymptomFields, f.Symptoms.values())
	in.History = domain.FlagsFromStrings(domain.MedicalHistoryFields, f.History.values())
	return in, fe.err("invalid member form")
}

type pregnancyVitalsForm struct {
	SystolicBP   *formValue `json:"systolic_bp"`
	DiastolicBP  *formValue `json:"diastolic_bp"`
	Glucose      *formValue `json:"glucose"`
	TemperatureF *formValue `json:"temperature_f"`
	WeightKg     *formValue `json:"weight_kg"`
	Edema        *formValue `json:"edema"`
	UrineProtein string     `json:"urine_protein"`
}

type pregnancyComplianceForm struct {
	IronAdherent    *formValue `json:"iron_adherent"`
	CalciumAdherent *formValue `json:"calcium_adherent"`
	TTDoses         *formValue `json:"tt_doses"`
	MissedANC       *formValue `json:"missed_anc"`
	MissedFollowUps *formValue `json:"missed_follow_ups"`
}

// PregnancyForm is the body of the antenatal form. LMP is YYYY-MM-DD.
type PregnancyForm struct {
	Gravida     *formValue              `json:"gravida"`
	Para        *formValue              `json:"para"`
	Trimester   string                  `json:"trimester"`
	LMP         string                  `json:"lmp"`
	History     toggles                 `json:"history"`
	Vitals      pregnancyVitalsForm     `json:"vitals"`
	DangerSigns toggles                 `json:"danger_signs"`
	Compliance  pregnancyComplianceForm `json:"compliance"`
}

func (f *PregnancyForm) Specialization() (domain.PregnancySpecialization, error) {
	p := domain.DefaultPregnancy()
	fe := fieldErrors{}
	p.Gravida = fe.count("pregnancy.gravida", f.Gravida, p.Gravida)
	p.Para = fe.count("pregnancy.para", f.Para, p.Para)
	if f.Trimester != "" {
		p.Trimester = domain.ParseTrimester(f.Trimester)
	}
	if lmp := strings.TrimSpace(f.LMP); lmp != "" {
		t, err := time.Parse(dateLayout, lmp)
		if err != nil {
			fe["pregnancy.lmp"] = fmt.Sprintf("must be a date (%s)", dateLayout)
		} else {
			p.LMP = &t
		}
	}
	p.History = domain.FlagsFromStrings(domain.PregnancyHistoryFields, f.History.values())
	p.DangerSigns = domain.FlagsFromStrings(domain.PregnancyDangerSignFields, f.DangerSigns.values())

	v := &p.Vitals
	v.SystolicBP = fe.number("pregnancy.vitals.systolic_bp", f.Vitals.SystolicBP, v.SystolicBP)
	v.DiastolicBP = fe.number("pregnancy.vitals.diastolic_bp", f.Vitals.DiastolicBP, v.DiastolicBP)
	v.Glucose = fe.number("pregnancy.vitals.glucose", f.Vitals.Glucose, v.Glucose)
	v.TemperatureF = fe.number("pregnancy.vitals.temperature_f", f.Vitals.TemperatureF, v.TemperatureF)
	v.WeightKg = fe.number("pregnancy.vitals.weight_kg", f.Vitals.WeightKg, v.WeightKg)
	v.Edema = toggle(f.Vitals.Edema, v.Edema)
	if f.Vitals.UrineProtein != "" {
		v.UrineProtein = domain.UrineProtein(strings.TrimSpace(f.Vitals.UrineProtein))
	}

	c := &p.Compliance
	c.IronAdherent = toggle(f.Compliance.IronAdherent, c.IronAdherent)
	c.CalciumAdherent = toggle(f.Compliance.CalciumAdherent, c.CalciumAdherent)
	c.TTDoses = fe.count("pregnancy.compliance.tt_doses", f.Compliance.TTDoses, c.TTDoses)
	c.MissedANC = toggle(f.Compliance.MissedANC, c.MissedANC)
	c.MissedFollowUps = fe.count("pregnancy.compliance.missed_follow_ups", f.Compliance.MissedFollowUps, c.MissedFollowUps)
	return p, fe.err("invalid pregnancy form")
}

// ChildForm is the body of the child growth form
type ChildForm struct {
	Growth struct {
		WeightKg       *formValue `json:"weight_kg"`
		HeightCm       *formValue `json:"height_cm"`
		MUACCm         *formValue `json:"muac_cm"`
		VisibleWasting *formValue `json:"visible_wasting"`
	} `json:"growth"`
	Vitals struct {
		TemperatureF    *formValue `json:"temperature_f"`
		RespiratoryRate *formValue `json:"respiratory_rate"`
	} `json:"vitals"`
	Symptoms   toggles `json:"symptoms"`
	Compliance struct {
		FullyImmunized        *formValue `json:"fully_immunized"`
		MissedVaccine         *formValue `json:"missed_vaccine"`
		MissedFollowUps       *formValue `json:"missed_follow_ups"`
		RecentHospitalization *formValue `json:"recent_hospitalization"`
	} `json:"compliance"`
}

func (f *ChildForm) Specialization() (domain.ChildSpecialization, error) {
	c := domain.DefaultChild()
	fe := fieldErrors{}
	c.Growth.WeightKg = fe.number("child.growth.weight_kg", f.Growth.WeightKg, c.Growth.WeightKg)
	c.Growth.HeightCm = fe.number("child.growth.height_cm", f.Growth.HeightCm, c.Growth.HeightCm)
	c.Growth.MUACCm = fe.number("child.growth.muac_cm", f.Growth.MUACCm, c.Growth.MUACCm)
	c.Growth.VisibleWasting = toggle(f.Growth.VisibleWasting, c.Growth.VisibleWasting)
	c.Vitals.TemperatureF = fe.number("child.vitals.temperature_f", f.Vitals.TemperatureF, c.Vitals.TemperatureF)
	c.Vitals.RespiratoryRate = fe.count("child.vitals.respiratory_rate", f.Vitals.RespiratoryRate, c.Vitals.RespiratoryRate)
	c.Symptoms = domain.FlagsFromStrings(domain.ChildSymptomFields, f.Symptoms.values())
	c.Compliance.FullyImmunized = toggle(f.Compliance.FullyImmunized, c.Compliance.FullyImmunized)
	c.Compliance.MissedVaccine = toggle(f.Compliance.MissedVaccine, c.Compliance.MissedVaccine)
	c.Compliance.MissedFollowUps = fe.count("child.compliance.missed_follow_ups", f.Compliance.MissedFollowUps, c.Compliance.MissedFollowUps)
	c.Compliance.RecentHospitalization = toggle(f.Compliance.RecentHospitalization, c.Compliance.RecentHospitalization)
	return c, fe.err("invalid child form")
}

const dateLayout = "2006-01-02"
