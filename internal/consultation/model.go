// Package consultation holds the raw consultation data as the clinic's
// read models deliver it, including both generations of the schema, and the
// repository interfaces the letter pipeline reads through.
package consultation

import (
	"time"

	"github.com/google/uuid"
)

// DiagnosisRow is a row of the normalized diagnosis table.
type DiagnosisRow struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Detail      string `json:"detail,omitempty"`
	IsPrincipal bool   `json:"is_principal"`
}

// MedicationRow is a row of the prescribed treatment table.
type MedicationRow struct {
	Name      string `json:"name"`
	Dose      string `json:"dose,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Note      string `json:"note,omitempty"`
}

// ComplianceRecord is the stored state of one attestation group.
// NotNeeded is the legacy explicit flag; Issued is the current one.
type ComplianceRecord struct {
	Issued    *bool  `json:"issued,omitempty"`
	NotIssued bool   `json:"not_issued,omitempty"`
	NotNeeded *bool  `json:"not_needed,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Record is a consultation joined with the patient and doctor it belongs
// to. Fields prefixed Legacy belong to the older schema generation.
type Record struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	Date           time.Time `json:"date"`
	Kind           string    `json:"kind,omitempty"`
	RegistryNumber string    `json:"registry_number,omitempty"`

	PatientName       string     `json:"patient_name"`
	PatientNationalID string     `json:"patient_national_id,omitempty"`
	PatientBirthDate  *time.Time `json:"patient_birth_date,omitempty"`
	PatientSex        string     `json:"patient_sex,omitempty"`
	PatientPhone      string     `json:"patient_phone,omitempty"`
	PatientAddress    string     `json:"patient_address,omitempty"`
	PatientEmail      string     `json:"patient_email,omitempty"`
	PatientAllergies  string     `json:"patient_allergies,omitempty"`

	DoctorName      string `json:"doctor_name"`
	DoctorSpecialty string `json:"doctor_specialty,omitempty"`
	DoctorStampCode string `json:"doctor_stamp_code,omitempty"`

	Complaint             string `json:"complaint,omitempty"`
	CurrentIllnessHistory string `json:"current_illness_history,omitempty"`

	FamilyHistory        string `json:"family_history,omitempty"`
	PersonalHistory      string `json:"personal_history,omitempty"`
	LegacyMedicalHistory string `json:"legacy_medical_history,omitempty"`
	Allergies            string `json:"allergies,omitempty"`
	ChronicMedication    string `json:"chronic_medication,omitempty"`
	RiskFactors          string `json:"risk_factors,omitempty"`
	PriorTreatment       string `json:"prior_treatment,omitempty"`
	LegacyDrugTreatment  string `json:"legacy_drug_treatment,omitempty"`

	GeneralState        string `json:"general_state,omitempty"`
	Skin                string `json:"skin,omitempty"`
	Mucosa              string `json:"mucosa,omitempty"`
	LymphNodes          string `json:"lymph_nodes,omitempty"`
	Edema               string `json:"edema,omitempty"`
	GeneralExam         string `json:"general_exam,omitempty"`
	LegacyObjectiveExam string `json:"legacy_objective_exam,omitempty"`
	LocalExam           string `json:"local_exam,omitempty"`
	OtherClinicalNotes  string `json:"other_clinical_notes,omitempty"`

	Weight          *float64 `json:"weight,omitempty"`
	Height          *float64 `json:"height,omitempty"`
	BMI             *float64 `json:"bmi,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	BloodPressure   string   `json:"blood_pressure,omitempty"`
	Pulse           *int     `json:"pulse,omitempty"`
	RespiratoryRate *int     `json:"respiratory_rate,omitempty"`
	SpO2            *int     `json:"spo2,omitempty"`
	Glucose         *float64 `json:"glucose,omitempty"`

	ECG                 string `json:"ecg,omitempty"`
	Echography          string `json:"echography,omitempty"`
	XRay                string `json:"xray,omitempty"`
	OtherInvestigations string `json:"other_investigations,omitempty"`

	Diagnoses            []DiagnosisRow `json:"diagnoses,omitempty"`
	LegacyDiagnosis      string         `json:"legacy_diagnosis,omitempty"`
	LegacyICD10          string         `json:"legacy_icd10,omitempty"`
	LegacySecondaryICD10 string         `json:"legacy_secondary_icd10,omitempty"`

	Medications               []MedicationRow `json:"medications,omitempty"`
	Recommendations           []string        `json:"recommendations,omitempty"`
	NonDrugTreatment          string          `json:"non_drug_treatment,omitempty"`
	DietAdvice                string          `json:"diet_advice,omitempty"`
	LifestyleAdvice           string          `json:"lifestyle_advice,omitempty"`
	RecommendedInvestigations string          `json:"recommended_investigations,omitempty"`
	SpecialtyReferrals        string          `json:"specialty_referrals,omitempty"`
	SurveillanceAdvice        string          `json:"surveillance_advice,omitempty"`
	NextAppointment           *time.Time      `json:"next_appointment,omitempty"`
	OtherInformation          string          `json:"other_information,omitempty"`

	Oncologic        bool   `json:"oncologic"`
	OncologicDetails string `json:"oncologic_details,omitempty"`

	Hospitalization ComplianceRecord `json:"hospitalization"`
	Prescription    ComplianceRecord `json:"prescription"`
	SickLeave       ComplianceRecord `json:"sick_leave"`
	HomeCare        ComplianceRecord `json:"home_care"`
	MedicalDevices  ComplianceRecord `json:"medical_devices"`

	SendToPatient     bool       `json:"send_to_patient"`
	SendByEmail       bool       `json:"send_by_email"`
	TransmissionEmail string     `json:"transmission_email,omitempty"`
	IssuedAt          *time.Time `json:"issued_at,omitempty"`
}

// LabOrder is a lab panel recommended during a consultation.
type LabOrder struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Category           string    `json:"category,omitempty"`
	Priority           string    `json:"priority,omitempty"`
	Urgent             bool      `json:"urgent"`
	ClinicalIndication string    `json:"clinical_indication,omitempty"`
}

// LabParameter is one measured parameter of a performed panel.
type LabParameter struct {
	Name          string   `json:"name"`
	Value         string   `json:"value"`
	Unit          string   `json:"unit,omitempty"`
	ReferenceText string   `json:"reference_text,omitempty"`
	RefMin        *float64 `json:"ref_min,omitempty"`
	RefMax        *float64 `json:"ref_max,omitempty"`
	Abnormal      *bool    `json:"abnormal,omitempty"`
}

// LabResultPanel is a performed lab panel. Panels without results are
// placeholders for samples still in processing.
type LabResultPanel struct {
	ID                 uuid.UUID      `json:"id"`
	Name               string         `json:"name"`
	Category           string         `json:"category,omitempty"`
	Priority           string         `json:"priority,omitempty"`
	Urgent             bool           `json:"urgent"`
	ClinicalIndication string         `json:"clinical_indication,omitempty"`
	PerformedAt        *time.Time     `json:"performed_at,omitempty"`
	Lab                string         `json:"lab,omitempty"`
	HasResults         bool           `json:"has_results"`
	Value              string         `json:"value,omitempty"`
	Unit               string         `json:"unit,omitempty"`
	ReferenceText      string         `json:"reference_text,omitempty"`
	RefMin             *float64       `json:"ref_min,omitempty"`
	RefMax             *float64       `json:"ref_max,omitempty"`
	OutOfRange         *bool          `json:"out_of_range,omitempty"`
	Parameters         []LabParameter `json:"parameters,omitempty"`
}

// InvestigationKind selects one of the three investigation read models.
type InvestigationKind string

const (
	Imaging     InvestigationKind = "imaging"
	Exploration InvestigationKind = "exploration"
	Endoscopy   InvestigationKind = "endoscopy"
)

// InvestigationKinds lists every kind in letter order.
var InvestigationKinds = []InvestigationKind{Imaging, Exploration, Endoscopy}

// InvestigationOrder is a recommended investigation.
type InvestigationOrder struct {
	ID                 uuid.UUID `json:"id"`
	Code               string    `json:"code,omitempty"`
	Name               string    `json:"name"`
	Category           string    `json:"category,omitempty"`
	Priority           string    `json:"priority,omitempty"`
	Urgent             bool      `json:"urgent"`
	ClinicalIndication string    `json:"clinical_indication,omitempty"`
	Note               string    `json:"note,omitempty"`
}

// InvestigationResult is a performed investigation.
type InvestigationResult struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"code,omitempty"`
	Name        string     `json:"name"`
	PerformedAt *time.Time `json:"performed_at,omitempty"`
	Facility    string     `json:"facility,omitempty"`
	Result      string     `json:"result,omitempty"`
	Conclusion  string     `json:"conclusion,omitempty"`
}
