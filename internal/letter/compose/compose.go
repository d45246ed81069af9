// Package compose turns a CanonicalLetter into the ordered section list of
// the Anexa 43 form. The catalogue is fixed; data only decides which
// sections are present.
package compose

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ehr/medletter/internal/letter"
)

// Kind identifies a catalogue entry.
type Kind int

const (
	Intro Kind = iota + 1
	Patient
	Complaint
	Oncology
	Diagnosis
	Anamnesis
	Exam
	LabResultsSection
	PerformedTestsSection
	Paraclinical
	PriorTreatment
	OtherInformation
	Treatment
	Recommendations
	RecommendedTests
	Notes
	Hospitalization
	Prescription
	SickLeave
	HomeCare
	MedicalDevices
	SignatureSection
)

var kindNames = map[Kind]string{
	Intro:                 "intro",
	Patient:               "patient",
	Complaint:             "complaint",
	Oncology:              "oncology",
	Diagnosis:             "diagnosis",
	Anamnesis:             "anamnesis",
	Exam:                  "exam",
	LabResultsSection:     "lab_results",
	PerformedTestsSection: "performed_tests",
	Paraclinical:          "paraclinical",
	PriorTreatment:        "prior_treatment",
	OtherInformation:      "other_information",
	Treatment:             "treatment",
	Recommendations:       "recommendations",
	RecommendedTests:      "recommended_tests",
	Notes:                 "notes",
	Hospitalization:       "hospitalization",
	Prescription:          "prescription",
	SickLeave:             "sick_leave",
	HomeCare:              "home_care",
	MedicalDevices:        "medical_devices",
	SignatureSection:      "signature",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind written by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown section kind %q", text)
}

// Section is one composed block of the letter.
type Section struct {
	Kind  Kind    `json:"kind"`
	Title string  `json:"title,omitempty"`
	Body  Content `json:"-"`
}

// Header is repeated at the top of every page.
type Header struct {
	ClinicName  string
	ClinicLines []string
	Annex       string
	Order       string
	Title       string
	Contract    string
}

// Document is the composer's output: the page header and the visible
// sections in catalogue order.
type Document struct {
	FileName string
	Header   Header
	Sections []Section
}

// Has reports whether a section of kind k is present.
func (d Document) Has(k Kind) bool {
	_, ok := d.Section(k)
	return ok
}

// Section returns the first section of kind k.
func (d Document) Section(k Kind) (Section, bool) {
	for _, s := range d.Sections {
		if s.Kind == k {
			return s, true
		}
	}
	return Section{}, false
}

// Kinds lists the kinds of the present sections in order.
func (d Document) Kinds() []Kind {
	out := make([]Kind, 0, len(d.Sections))
	for _, s := range d.Sections {
		out = append(out, s.Kind)
	}
	return out
}

type entry struct {
	kind    Kind
	title   func(*letter.CanonicalLetter) string
	visible func(*letter.CanonicalLetter) bool
	body    func(*letter.CanonicalLetter) Content
}

func fixed(title string) func(*letter.CanonicalLetter) string {
	return func(*letter.CanonicalLetter) string { return title }
}

func always(*letter.CanonicalLetter) bool { return true }

// catalogue is the form in print order. The notes box, the five compliance
// groups and the signature close every letter.
var catalogue = []entry{
	{Intro, fixed(""), always, introBody},
	{Patient, fixed("Date Pacient"), always, patientBody},
	{Complaint, fixed("Motivele Prezentării"),
		func(l *letter.CanonicalLetter) bool { return l.Complaint != "" },
		func(l *letter.CanonicalLetter) Content { return Formatted{Markup: l.Complaint} }},
	{Oncology, fixed(""), always, oncologyBody},
	{Diagnosis, fixed("Diagnostic și Cod de Diagnostic"),
		func(l *letter.CanonicalLetter) bool {
			return l.PrincipalDiagnosis != nil || len(l.SecondaryDiagnoses) > 0
		},
		diagnosisBody},
	{Anamnesis, fixed("Anamneză"),
		func(l *letter.CanonicalLetter) bool { return l.Anamnesis.Recorded },
		anamnesisBody},
	{Exam, fixed("Examen Clinic"),
		func(l *letter.CanonicalLetter) bool { return !l.Patient.Vitals.Empty() || !l.Exam.Empty() },
		examBody},
	{LabResultsSection, fixed("Examene de Laborator"),
		func(l *letter.CanonicalLetter) bool { return len(l.NormalResults) > 0 || len(l.AbnormalResults) > 0 },
		func(l *letter.CanonicalLetter) Content {
			return LabResults{Normal: l.NormalResults, Abnormal: l.AbnormalResults}
		}},
	{PerformedTestsSection,
		func(l *letter.CanonicalLetter) string { return "Analize Efectuate (" + strconv.Itoa(len(l.PerformedTests)) + ")" },
		func(l *letter.CanonicalLetter) bool { return len(l.PerformedTests) > 0 },
		performedTestsBody},
	{Paraclinical, fixed("Examene Paraclinice"),
		func(l *letter.CanonicalLetter) bool { return !l.Paraclinical.Empty() },
		paraclinicalBody},
	{PriorTreatment, fixed("Tratament Efectuat (Anterior Consultației)"),
		func(l *letter.CanonicalLetter) bool { return l.PriorTreatment != "" },
		func(l *letter.CanonicalLetter) Content { return Formatted{Markup: l.PriorTreatment} }},
	{OtherInformation, fixed("Alte Informații"),
		func(l *letter.CanonicalLetter) bool { return l.OtherInformation != "" },
		func(l *letter.CanonicalLetter) Content { return Formatted{Markup: l.OtherInformation} }},
	{Treatment,
		func(l *letter.CanonicalLetter) string {
			return "Tratament Recomandat (" + strconv.Itoa(len(l.Medications)) + " medicamente)"
		},
		func(l *letter.CanonicalLetter) bool { return len(l.Medications) > 0 },
		treatmentBody},
	{Recommendations, fixed("Recomandări"),
		func(l *letter.CanonicalLetter) bool {
			return len(l.Recommendations) > 0 || len(l.RecommendedImaging) > 0 ||
				len(l.RecommendedExplorations) > 0 || len(l.RecommendedEndoscopies) > 0
		},
		recommendationsBody},
	{RecommendedTests,
		func(l *letter.CanonicalLetter) string {
			return "Analize Recomandate (" + strconv.Itoa(len(l.RecommendedTests)) + ")"
		},
		func(l *letter.CanonicalLetter) bool { return len(l.RecommendedTests) > 0 },
		recommendedTestsBody},
	{Notes, fixed("Notă Importantă"), always, notesBody},
	{Hospitalization, fixed("Indicație de Revenire pentru Internare"), always, complianceBody(letter.Hospitalization)},
	{Prescription, fixed("Prescripție Medicală"), always, complianceBody(letter.Prescription)},
	{SickLeave, fixed("Concediu Medical"), always, complianceBody(letter.SickLeave)},
	{HomeCare, fixed("Îngrijiri Medicale la Domiciliu"), always, complianceBody(letter.HomeCare)},
	{MedicalDevices, fixed("Dispozitive Medicale"), always, complianceBody(letter.MedicalDevices)},
	{SignatureSection, fixed(""), always, signatureBody},
}

// Compose evaluates the catalogue against l. It never fails and never
// mutates l.
func Compose(l *letter.CanonicalLetter) Document {
	doc := Document{
		FileName: l.FileName(),
		Header:   header(l.Clinic),
	}
	for _, e := range catalogue {
		if !e.visible(l) {
			continue
		}
		doc.Sections = append(doc.Sections, Section{Kind: e.kind, Title: e.title(l), Body: e.body(l)})
	}
	return doc
}

// =========== Formatting helpers ===========

const (
	dateLayout  = "02.01.2006"
	placeholder = "____________"
)

func date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func datePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return date(*t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

// decimal formats f with a decimal comma and no trailing zeros.
func decimal(f float64) string {
	return strings.Replace(strconv.FormatFloat(f, 'f', -1, 64), ".", ",", 1)
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
