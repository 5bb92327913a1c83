package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umeed-health/asha-service/internal/core/domain"
)

func generalMember(sys, glucose, temp float64) *domain.Member {
	m := domain.NewMember(domain.MemberInput{
		Name: "Ramesh", Age: "45", Gender: domain.GenderMale,
		WeightKg: 70, HeightCm: 170, SystolicBP: sys, Glucose: glucose, TemperatureF: temp,
	})
	return m
}

func TestCategoryFor(t *testing.T) {
	for _, g := range []domain.Gender{domain.GenderMale, domain.GenderFemale, domain.GenderOther} {
		for age := 0; age <= 100; age++ {
			got := domain.CategoryFor(g, age)
			switch {
			case g == domain.GenderFemale && age > 17:
				assert.Equal(t, domain.CategoryPregnancy, got, "%s %d", g, age)
			case age <= 3:
				assert.Equal(t, domain.CategoryChild, got, "%s %d", g, age)
			default:
				assert.Equal(t, domain.CategoryGeneral, got, "%s %d", g, age)
			}
		}
	}
}

func TestClassify_General(t *testing.T) {
	a := domain.Classify(generalMember(150, 100, 98.6))
	assert.Equal(t, domain.RiskOrange, a.Level)
	assert.Equal(t, []domain.RiskReason{domain.ReasonHighSystolic}, a.Reasons)

	a = domain.Classify(generalMember(120, 100, 98.6))
	assert.Equal(t, domain.RiskGreen, a.Level)
	assert.Empty(t, a.Reasons)

	a = domain.Classify(generalMember(141, 141, 100.1))
	assert.Equal(t, domain.RiskOrange, a.Level)
	assert.Equal(t, []domain.RiskReason{domain.ReasonHighSystolic, domain.ReasonHighGlucose, domain.ReasonFever}, a.Reasons)

	// thresholds are strict
	a = domain.Classify(generalMember(140, 140, 100))
	assert.Equal(t, domain.RiskGreen, a.Level)
}

func TestClassify_GeneralMonotonicity(t *testing.T) {
	for _, sys := range []float64{90, 140, 141, 200} {
		for _, glucose := range []float64{70, 140, 141, 400} {
			for _, temp := range []float64{97, 100, 100.5, 104} {
				want := domain.RiskGreen
				if sys > 140 || glucose > 140 || temp > 100 {
					want = domain.RiskOrange
				}
				assert.Equal(t, want, domain.Classify(generalMember(sys, glucose, temp)).Level, "%v/%v/%v", sys, glucose, temp)
			}
		}
	}
}

func TestClassify_SevereVitalsEscalation(t *testing.T) {
	classifier := domain.NewRiskClassifier(domain.RiskPolicy{SevereVitalsEscalation: true})

	a := classifier.Classify(generalMember(190, 100, 98.6))
	assert.Equal(t, domain.RiskRed, a.Level)
	assert.True(t, a.Has(domain.ReasonHighSystolic))
	assert.True(t, a.Has(domain.ReasonSevereSystolic))

	a = classifier.Classify(generalMember(150, 100, 98.6))
	assert.Equal(t, domain.RiskOrange, a.Level)

	// off by default
	assert.Equal(t, domain.RiskOrange, domain.Classify(generalMember(190, 100, 98.6)).Level)
}

func pregnancyMember(p domain.PregnancySpecialization) *domain.Member {
	m := domain.NewMember(domain.MemberInput{Name: "Sita", Age: "26", Gender: domain.GenderFemale, WeightKg: 60, HeightCm: 155, SystolicBP: 120, Glucose: 100, TemperatureF: 98.6})
	m.Category = domain.CategoryPregnancy
	m.Pregnancy = &p
	return m
}

func TestClassify_PregnancyRed(t *testing.T) {
	p := domain.DefaultPregnancy()
	p.DangerSigns.Bleeding = true
	a := domain.Classify(pregnancyMember(p))
	assert.Equal(t, domain.RiskRed, a.Level)
	assert.Equal(t, []domain.RiskReason{domain.ReasonBleeding}, a.Reasons)

	p = domain.DefaultPregnancy()
	p.DangerSigns.ReducedFetalMovement = true
	a = domain.Classify(pregnancyMember(p))
	assert.Equal(t, domain.RiskRed, a.Level)
	assert.True(t, a.Has(domain.ReasonReducedFetalMovement))

	p.DangerSigns.Bleeding = true
	a = domain.Classify(pregnancyMember(p))
	assert.True(t, a.Has(domain.ReasonBleeding))
	assert.True(t, a.Has(domain.ReasonReducedFetalMovement))
}

func TestPregnancyHighSystolic_RedInBannerAndClassification(t *testing.T) {
	p := domain.DefaultPregnancy()
	p.Vitals.SystolicBP = 150

	banner := domain.PregnancyBanner(&p)
	assert.Equal(t, domain.BannerHighRisk, banner.Status)

	a := domain.Classify(pregnancyMember(p))
	assert.Equal(t, domain.RiskRed, a.Level)
	assert.Equal(t, []domain.RiskReason{domain.ReasonPregnancyHypertension}, a.Reasons)
}

func TestPregnancyBanner_Normal(t *testing.T) {
	p := domain.DefaultPregnancy()
	banner := domain.PregnancyBanner(&p)
	assert.Equal(t, domain.BannerNormal, banner.Status)
	assert.Equal(t, "Routine ANC follow-up required. Ensure iron/calcium adherence.", banner.Advice)
	assert.False(t, banner.HighRisk())
}

func TestClassify_SpecializationRedOverridesOrange(t *testing.T) {
	p := domain.DefaultPregnancy()
	p.DangerSigns.Bleeding = true
	m := pregnancyMember(p)
	m.Glucose = 180

	a := domain.Classify(m)
	assert.Equal(t, domain.RiskRed, a.Level)
	assert.Equal(t, []domain.RiskReason{domain.ReasonHighGlucose, domain.ReasonBleeding}, a.Reasons)
}

func childMember(c domain.ChildSpecialization) *domain.Member {
	m := domain.NewMember(domain.MemberInput{Name: "Munna", Age: "2", Gender: domain.GenderMale, WeightKg: 12, HeightCm: 85, SystolicBP: 90, Glucose: 90, TemperatureF: 98.6})
	m.Category = domain.CategoryChild
	m.Child = &c
	return m
}

func TestClassify_ChildRed(t *testing.T) {
	c := domain.DefaultChild()
	c.Growth.MUACCm = 11.0
	a := domain.Classify(childMember(c))
	assert.Equal(t, domain.RiskRed, a.Level)
	assert.Equal(t, []domain.RiskReason{domain.ReasonLowMUAC}, a.Reasons)
	assert.Equal(t, "Severe (SAM)", domain.ChildBanner(&c).Malnutrition)

	c = domain.DefaultChild()
	c.Growth.MUACCm = 14
	c.Symptoms.Convulsions = true
	a = domain.Classify(childMember(c))
	assert.Equal(t, domain.RiskRed, a.Level)
	assert.Equal(t, []domain.RiskReason{domain.ReasonConvulsions}, a.Reasons)
	banner := domain.ChildBanner(&c)
	assert.Equal(t, "Normal", banner.Malnutrition)
	assert.Equal(t, "Immediate PHC Referral", banner.Referral)

	c = domain.DefaultChild()
	c.Growth.VisibleWasting = true
	assert.Equal(t, domain.RiskRed, domain.Classify(childMember(c)).Level)
}

func TestClassify_ChildGreen(t *testing.T) {
	c := domain.DefaultChild()
	c.Growth.MUACCm = 13.5
	a := domain.Classify(childMember(c))
	assert.Equal(t, domain.RiskGreen, a.Level)

	banner := domain.ChildBanner(&c)
	assert.Equal(t, "HEALTHY CHILD", banner.Status)
	assert.Equal(t, "Routine care", banner.Referral)
}

func TestRiskLevel_Text(t *testing.T) {
	assert.True(t, domain.RiskGreen < domain.RiskOrange && domain.RiskOrange < domain.RiskRed)
	assert.Equal(t, "High", domain.RiskRed.Label())

	data, err := json.Marshal(domain.Assessment{Level: domain.RiskOrange, Reasons: []domain.RiskReason{domain.ReasonFever}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":"Orange","reasons":["high_temperature"]}`, string(data))

	level, err := domain.ParseRiskLevel("moderate")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskOrange, level)

	_, err = domain.ParseRiskLevel("purple")
	assert.Error(t, err)
}
