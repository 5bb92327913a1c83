package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// BMI is a body-mass index rounded to one decimal.
// The zero value means the index could not be computed.
type BMI float64

// BMIUnavailable is reported when weight or height is missing or non-positive
const BMIUnavailable BMI = 0

func (b BMI) Available() bool {
	return b > 0
}

func (b BMI) String() string {
	if !b.Available() {
		return "unavailable"
	}
	return strconv.FormatFloat(float64(b), 'f', 1, 64)
}

func (b BMI) MarshalJSON() ([]byte, error) {
	if !b.Available() {
		return []byte("null"), nil
	}
	return []byte(b.String()), nil
}

func (b *BMI) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = BMIUnavailable
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = BMI(v)
	return nil
}

// CalculateBMI returns weight / (height in metres)^2 rounded to one decimal
func CalculateBMI(weightKg, heightCm float64) BMI {
	if weightKg <= 0 || heightCm <= 0 || math.IsNaN(weightKg) || math.IsNaN(heightCm) {
		return BMIUnavailable
	}
	heightM := heightCm / 100
	bmi := weightKg / (heightM * heightM)
	if math.IsInf(bmi, 0) {
		return BMIUnavailable
	}
	return BMI(math.Round(bmi*10) / 10)
}

// ParseAge reads the leading integer of an age field.
// Non-numeric input yields 0 and negative values clamp to 0.
func ParseAge(raw string) int {
	s := strings.TrimSpace(raw)
	end := 0
	for i, r := range s {
		if i == 0 && (r == '-' || r == '+') {
			end = i + 1
			continue
		}
		if r < '0' || r > '9' {
			break
		}
		end = i + 1
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParseMeasurement parses a numeric entry field as entered (no unit conversion).
// ok is false for blank or non-numeric input.
func ParseMeasurement(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
