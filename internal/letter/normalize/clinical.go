package normalize

import (
	"math"
	"strings"
	"time"

	"github.com/ehr/medletter/internal/letter"
)

// Documented defaults for history fields left empty by both schemas.
const (
	DefaultFamilyHistory   = "Fără antecedente semnificative."
	DefaultPersonalHistory = "Fără antecedente patologice semnificative."
)

// BMI returns the recorded body mass index when present, otherwise one
// computed from weight (kg) and height (cm) with Default origin.
func BMI(recorded, weightKg, heightCm *float64) Field[float64] {
	if recorded != nil && *recorded > 0 {
		return Field[float64]{value: *recorded, origin: New}
	}
	if weightKg == nil || heightCm == nil || *weightKg <= 0 || *heightCm <= 0 {
		return Field[float64]{}
	}
	m := *heightCm / 100
	bmi := math.Round(*weightKg/(m*m)*10) / 10
	return Field[float64]{value: bmi, origin: Default}
}

// BMICategory classifies a body mass index.
func BMICategory(bmi float64) string {
	switch {
	case bmi <= 0:
		return ""
	case bmi < 18.5:
		return "Subponderal"
	case bmi < 25:
		return "Normal"
	case bmi < 30:
		return "Supraponderal"
	case bmi < 35:
		return "Obezitate grad I"
	case bmi < 40:
		return "Obezitate grad II"
	}
	return "Obezitate morbidă"
}

// AgeAt returns the age in whole years at the given date.
func AgeAt(birth, at time.Time) int {
	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// Medications trims every row and drops rows without a name.
func Medications(rows []letter.MedicationRow) []letter.MedicationRow {
	out := make([]letter.MedicationRow, 0, len(rows))
	for _, r := range rows {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			continue
		}
		r.Dose = strings.TrimSpace(r.Dose)
		r.Frequency = strings.TrimSpace(r.Frequency)
		r.Duration = strings.TrimSpace(r.Duration)
		r.Note = strings.TrimSpace(r.Note)
		out = append(out, r)
	}
	return out
}
