// Package letter defines the canonical medical letter (Scrisoare Medicală,
// Anexa 43) assembled for a single consultation, together with the error
// taxonomy shared by the assembly and rendering stages.
//
// A CanonicalLetter is built once per request by the aggregator, read by the
// composer and renderer, then discarded. Nothing in it points back into the
// mutable consultation or patient records.
package letter

import (
	"time"

	"github.com/google/uuid"
)

// ClinicIdentity is the static clinic header printed on every page.
type ClinicIdentity struct {
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
	Address       string `json:"address,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	FiscalCode    string `json:"fiscal_code,omitempty"`
	TradeRegistry string `json:"trade_registry,omitempty"`
	CASContract   string `json:"cas_contract,omitempty"`
	CASName       string `json:"cas_name,omitempty"`
}

// Vitals holds the measurements taken during the consultation.
type Vitals struct {
	BloodPressure   string   `json:"blood_pressure,omitempty"`
	Pulse           *int     `json:"pulse,omitempty"`
	RespiratoryRate *int     `json:"respiratory_rate,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	Weight          *float64 `json:"weight,omitempty"`
	Height          *float64 `json:"height,omitempty"`
	BMI             *float64 `json:"bmi,omitempty"`
	BMICategory     string   `json:"bmi_category,omitempty"`
	SpO2            *int     `json:"spo2,omitempty"`
	Glucose         *float64 `json:"glucose,omitempty"`
}

// Empty reports whether no measurement was recorded.
func (v Vitals) Empty() bool {
	return v.BloodPressure == "" && v.Pulse == nil && v.RespiratoryRate == nil &&
		v.Temperature == nil && v.Weight == nil && v.Height == nil &&
		v.BMI == nil && v.SpO2 == nil && v.Glucose == nil
}

// PatientSnapshot is a value copy of the patient as of the consultation date.
type PatientSnapshot struct {
	Name       string     `json:"name"`
	NationalID string     `json:"national_id,omitempty"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Age        *int       `json:"age,omitempty"`
	Sex        string     `json:"sex,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Address    string     `json:"address,omitempty"`
	Email      string     `json:"email,omitempty"`
	Vitals     Vitals     `json:"vitals"`
}

// DoctorSnapshot identifies the signing physician.
type DoctorSnapshot struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
	StampCode string `json:"stamp_code,omitempty"`
}

// OncologyStatus drives the DA/NU oncologic banner.
type OncologyStatus struct {
	Oncologic bool   `json:"oncologic"`
	Details   string `json:"details,omitempty"`
}

// DiagnosisEntry is a single diagnosis. At most one entry of a letter has
// IsPrincipal set.
type DiagnosisEntry struct {
	Code        string `json:"code,omitempty"`
	Name        string `json:"name,omitempty"`
	Detail      string `json:"detail,omitempty"`
	IsPrincipal bool   `json:"is_principal"`
}

// Anamnesis groups the history fields. Narrative fields hold sanitized
// formatting markup; the rest are plain text.
type Anamnesis struct {
	FamilyHistory     string `json:"family_history,omitempty"`
	PersonalHistory   string `json:"personal_history,omitempty"`
	Allergies         string `json:"allergies,omitempty"`
	ChronicMedication string `json:"chronic_medication,omitempty"`
	RiskFactors       string `json:"risk_factors,omitempty"`
	CurrentIllness    string `json:"current_illness,omitempty"`

	// Recorded is false when every field above is empty or a documented
	// default.
	Recorded bool `json:"recorded"`
}

// Exam is the clinical examination. General, Local and Other hold sanitized
// formatting markup.
type Exam struct {
	GeneralState string `json:"general_state,omitempty"`
	Skin         string `json:"skin,omitempty"`
	Mucosa       string `json:"mucosa,omitempty"`
	LymphNodes   string `json:"lymph_nodes,omitempty"`
	Edema        string `json:"edema,omitempty"`
	General      string `json:"general,omitempty"`
	Local        string `json:"local,omitempty"`
	Other        string `json:"other,omitempty"`
}

// Empty reports whether no exam text was recorded.
func (e Exam) Empty() bool {
	return e.GeneralState == "" && e.Skin == "" && e.Mucosa == "" && e.LymphNodes == "" &&
		e.Edema == "" && e.General == "" && e.Local == "" && e.Other == ""
}

// MedicationRow is one line of the recommended treatment table.
type MedicationRow struct {
	Name      string `json:"name"`
	Dose      string `json:"dose,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Note      string `json:"note,omitempty"`
}

// LabResult is a single measured value, partitioned into the normal or the
// abnormal block of the letter.
type LabResult struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"reference_range,omitempty"`
	IsAbnormal     bool   `json:"is_abnormal"`
}

// RecommendedTest is a lab panel ordered during the consultation.
type RecommendedTest struct {
	Name               string `json:"name"`
	Category           string `json:"category,omitempty"`
	Priority           string `json:"priority,omitempty"`
	IsUrgent           bool   `json:"is_urgent"`
	ClinicalIndication string `json:"clinical_indication,omitempty"`
}

// PerformedTest is a lab panel with results. It need not match any
// RecommendedTest.
type PerformedTest struct {
	Name               string     `json:"name"`
	Category           string     `json:"category,omitempty"`
	Priority           string     `json:"priority,omitempty"`
	IsUrgent           bool       `json:"is_urgent"`
	ClinicalIndication string     `json:"clinical_indication,omitempty"`
	PerformedAt        *time.Time `json:"performed_at,omitempty"`
	Lab                string     `json:"lab,omitempty"`
	Result             string     `json:"result"`
	Unit               string     `json:"unit,omitempty"`
	ReferenceRange     string     `json:"reference_range,omitempty"`
	IsAbnormal         bool       `json:"is_abnormal"`
}

// Investigation is an imaging study, functional exploration or endoscopy,
// either recommended or performed.
type Investigation struct {
	Name               string     `json:"name"`
	Code               string     `json:"code,omitempty"`
	Category           string     `json:"category,omitempty"`
	Priority           string     `json:"priority,omitempty"`
	IsUrgent           bool       `json:"is_urgent"`
	ClinicalIndication string     `json:"clinical_indication,omitempty"`
	Note               string     `json:"note,omitempty"`
	PerformedAt        *time.Time `json:"performed_at,omitempty"`
	Facility           string     `json:"facility,omitempty"`
	Result             string     `json:"result,omitempty"`
}

// Summary is the single-line form used in bullet lists: "name - detail".
func (i Investigation) Summary() string {
	detail := i.Result
	if detail == "" {
		detail = i.Note
	}
	if detail == "" {
		detail = i.ClinicalIndication
	}
	if detail == "" {
		return i.Name
	}
	return i.Name + " - " + detail
}

// Paraclinical collects the free-text investigation results of the
// consultation and the performed investigation lists.
type Paraclinical struct {
	ECG          string          `json:"ecg,omitempty"`
	Echography   string          `json:"echography,omitempty"`
	XRay         string          `json:"xray,omitempty"`
	Other        string          `json:"other,omitempty"`
	Imaging      []Investigation `json:"imaging"`
	Explorations []Investigation `json:"explorations"`
	Endoscopies  []Investigation `json:"endoscopies"`
}

// Empty reports whether the paraclinical section has nothing to show.
func (p Paraclinical) Empty() bool {
	return p.ECG == "" && p.Echography == "" && p.XRay == "" && p.Other == "" &&
		len(p.Imaging) == 0 && len(p.Explorations) == 0 && len(p.Endoscopies) == 0
}

// Transmission records how the letter reaches the family doctor.
type Transmission struct {
	ByPatient bool   `json:"by_patient"`
	ByEmail   bool   `json:"by_email"`
	Email     string `json:"email,omitempty"`
}

// CanonicalLetter is the aggregate root of the pipeline.
type CanonicalLetter struct {
	ConsultationID   uuid.UUID      `json:"consultation_id"`
	ConsultationDate time.Time      `json:"consultation_date"`
	ConsultationKind string         `json:"consultation_kind,omitempty"`
	RegistryNumber   string         `json:"registry_number,omitempty"`
	IssuedAt         time.Time      `json:"issued_at"`
	Clinic           ClinicIdentity `json:"clinic"`

	Patient PatientSnapshot `json:"patient"`
	Doctor  DoctorSnapshot  `json:"doctor"`

	Complaint          string           `json:"complaint,omitempty"`
	Oncology           OncologyStatus   `json:"oncology"`
	PrincipalDiagnosis *DiagnosisEntry  `json:"principal_diagnosis,omitempty"`
	SecondaryDiagnoses []DiagnosisEntry `json:"secondary_diagnoses"`
	Anamnesis          Anamnesis        `json:"anamnesis"`
	Exam               Exam             `json:"exam"`

	NormalResults   []LabResult     `json:"normal_results"`
	AbnormalResults []LabResult     `json:"abnormal_results"`
	PerformedTests  []PerformedTest `json:"performed_tests"`
	Paraclinical    Paraclinical    `json:"paraclinical"`

	PriorTreatment   string          `json:"prior_treatment,omitempty"`
	OtherInformation string          `json:"other_information,omitempty"`
	Medications      []MedicationRow `json:"medications"`
	Recommendations  []string        `json:"recommendations"`

	RecommendedTests        []RecommendedTest `json:"recommended_tests"`
	RecommendedImaging      []Investigation   `json:"recommended_imaging"`
	RecommendedExplorations []Investigation   `json:"recommended_explorations"`
	RecommendedEndoscopies  []Investigation   `json:"recommended_endoscopies"`

	Compliance   ComplianceFlags `json:"compliance"`
	Transmission Transmission    `json:"transmission"`
}

// Diagnoses returns the principal diagnosis (if any) followed by the
// secondary ones.
func (l *CanonicalLetter) Diagnoses() []DiagnosisEntry {
	out := make([]DiagnosisEntry, 0, len(l.SecondaryDiagnoses)+1)
	if l.PrincipalDiagnosis != nil {
		out = append(out, *l.PrincipalDiagnosis)
	}
	return append(out, l.SecondaryDiagnoses...)
}

// LabResults returns every lab result, abnormal first.
func (l *CanonicalLetter) LabResults() []LabResult {
	out := make([]LabResult, 0, len(l.AbnormalResults)+len(l.NormalResults))
	out = append(out, l.AbnormalResults...)
	return append(out, l.NormalResults...)
}

// FileName is the download name of the rendered letter.
func (l *CanonicalLetter) FileName() string {
	name := []rune(l.Patient.Name)
	for i, r := range name {
		switch r {
		case ' ', '/', '\\', ':', '"', '\'':
			name[i] = '_'
		}
	}
	if len(name) == 0 {
		name = []rune("Pacient")
	}
	return "ScrisoareMedicala_" + string(name) + "_" + l.ConsultationDate.Format("20060102") + ".pdf"
}
