package aggregate

import (
	"strconv"
	"strings"

	"github.com/ehr/medletter/internal/consultation"
	"github.com/ehr/medletter/internal/letter"
	"github.com/ehr/medletter/internal/letter/normalize"
	"github.com/ehr/medletter/internal/letter/richtext"
)

// plain and rich apply the two sanitization policies: inline fields lose all
// markup, narrative fields keep the safe formatting subset.
func plain(s string) string { return richtext.StripToPlainText(s) }
func rich(s string) string  { return richtext.SanitizeFormatting(s) }

// fromRecord maps the consultation record onto a letter. Lists filled by
// sub-fetches are left empty.
func (a *Aggregator) fromRecord(rec *consultation.Record) (*letter.CanonicalLetter, []normalize.Issue) {
	var issues []normalize.Issue

	l := &letter.CanonicalLetter{
		ConsultationID:   rec.ID,
		ConsultationDate: rec.Date,
		ConsultationKind: plain(rec.Kind),
		RegistryNumber:   plain(rec.RegistryNumber),
		Clinic:           a.clinic,
		Complaint:        rich(rec.Complaint),
		PriorTreatment:   rich(normalize.Text(rec.PriorTreatment, rec.LegacyDrugTreatment).Value()),
		OtherInformation: rich(rec.OtherInformation),
		Oncology: letter.OncologyStatus{
			Oncologic: rec.Oncologic,
			Details:   rich(rec.OncologicDetails),
		},
	}
	if rec.IssuedAt != nil {
		l.IssuedAt = *rec.IssuedAt
	} else {
		l.IssuedAt = a.now()
	}

	l.Patient = patientSnapshot(rec)
	l.Doctor = letter.DoctorSnapshot{
		Name:      plain(rec.DoctorName),
		Specialty: plain(rec.DoctorSpecialty),
		StampCode: plain(rec.DoctorStampCode),
	}

	rows := make([]letter.DiagnosisEntry, 0, len(rec.Diagnoses))
	for _, d := range rec.Diagnoses {
		rows = append(rows, letter.DiagnosisEntry{
			Code:        plain(d.Code),
			Name:        plain(d.Name),
			Detail:      plain(d.Detail),
			IsPrincipal: d.IsPrincipal,
		})
	}
	dx, dxIssues := normalize.Diagnoses(rows, plain(rec.LegacyDiagnosis), plain(rec.LegacyICD10), plain(rec.LegacySecondaryICD10))
	issues = append(issues, dxIssues...)
	l.PrincipalDiagnosis = dx.Principal
	l.SecondaryDiagnoses = dx.Secondary

	l.Anamnesis = anamnesis(rec)
	l.Exam = letter.Exam{
		GeneralState: plain(rec.GeneralState),
		Skin:         plain(rec.Skin),
		Mucosa:       plain(rec.Mucosa),
		LymphNodes:   plain(rec.LymphNodes),
		Edema:        plain(rec.Edema),
		General:      rich(normalize.Text(rec.GeneralExam, rec.LegacyObjectiveExam).Value()),
		Local:        rich(rec.LocalExam),
		Other:        rich(rec.OtherClinicalNotes),
	}
	l.Paraclinical = letter.Paraclinical{
		ECG:          rich(rec.ECG),
		Echography:   rich(rec.Echography),
		XRay:         rich(rec.XRay),
		Other:        rich(rec.OtherInvestigations),
		Imaging:      []letter.Investigation{},
		Explorations: []letter.Investigation{},
		Endoscopies:  []letter.Investigation{},
	}

	meds := make([]letter.MedicationRow, 0, len(rec.Medications))
	for _, m := range rec.Medications {
		meds = append(meds, letter.MedicationRow{
			Name:      plain(m.Name),
			Dose:      plain(m.Dose),
			Frequency: plain(m.Frequency),
			Duration:  plain(m.Duration),
			Note:      plain(m.Note),
		})
	}
	l.Medications = normalize.Medications(meds)
	l.Recommendations = recommendations(rec)

	l.Compliance = letter.NewComplianceFlags()
	for _, kind := range letter.ComplianceKinds {
		g, groupIssues := normalize.Compliance(kind, complianceInput(complianceRecord(rec, kind)))
		issues = append(issues, groupIssues...)
		l.Compliance.Set(g)
	}

	l.Transmission = letter.Transmission{
		ByPatient: rec.SendToPatient,
		ByEmail:   rec.SendByEmail,
	}
	if rec.SendByEmail {
		l.Transmission.Email = plain(normalize.Text(rec.TransmissionEmail, rec.PatientEmail).Value())
		if l.Transmission.Email == "" {
			issues = append(issues, normalize.Issue{Field: "transmission.email", Reason: "email transmission requested without an address"})
		}
	}

	l.NormalResults = []letter.LabResult{}
	l.AbnormalResults = []letter.LabResult{}
	l.PerformedTests = []letter.PerformedTest{}
	l.RecommendedTests = []letter.RecommendedTest{}
	l.RecommendedImaging = []letter.Investigation{}
	l.RecommendedExplorations = []letter.Investigation{}
	l.RecommendedEndoscopies = []letter.Investigation{}

	return l, issues
}

func patientSnapshot(rec *consultation.Record) letter.PatientSnapshot {
	p := letter.PatientSnapshot{
		Name:       plain(rec.PatientName),
		NationalID: plain(rec.PatientNationalID),
		Sex:        plain(rec.PatientSex),
		Phone:      plain(rec.PatientPhone),
		Address:    plain(rec.PatientAddress),
		Email:      plain(rec.PatientEmail),
	}
	if rec.PatientBirthDate != nil {
		dob := *rec.PatientBirthDate
		p.BirthDate = &dob
		if !rec.Date.IsZero() {
			age := normalize.AgeAt(dob, rec.Date)
			p.Age = &age
		}
	}

	v := letter.Vitals{
		BloodPressure:   plain(rec.BloodPressure),
		Pulse:           copyPtr(rec.Pulse),
		RespiratoryRate: copyPtr(rec.RespiratoryRate),
		Temperature:     copyPtr(rec.Temperature),
		Weight:          copyPtr(rec.Weight),
		Height:          copyPtr(rec.Height),
		SpO2:            copyPtr(rec.SpO2),
		Glucose:         copyPtr(rec.Glucose),
	}
	if bmi, ok := normalize.BMI(rec.BMI, rec.Weight, rec.Height).Get(); ok {
		v.BMI = &bmi
		v.BMICategory = normalize.BMICategory(bmi)
	}
	p.Vitals = v
	return p
}

func anamnesis(rec *consultation.Record) letter.Anamnesis {
	family := normalize.Text(rich(rec.FamilyHistory), "").Or(normalize.DefaultFamilyHistory)
	personal := normalize.Text(rich(rec.PersonalHistory), rich(rec.LegacyMedicalHistory)).Or(normalize.DefaultPersonalHistory)
	an := letter.Anamnesis{
		FamilyHistory:     family.Value(),
		PersonalHistory:   personal.Value(),
		Allergies:         plain(normalize.Text(rec.Allergies, rec.PatientAllergies).Value()),
		ChronicMedication: plain(rec.ChronicMedication),
		RiskFactors:       plain(rec.RiskFactors),
		CurrentIllness:    rich(rec.CurrentIllnessHistory),
	}
	an.Recorded = family.Origin() != normalize.Default ||
		personal.Origin() != normalize.Default ||
		an.Allergies != "" || an.ChronicMedication != "" ||
		an.RiskFactors != "" || an.CurrentIllness != ""
	return an
}

// recommendations prefers the itemized list. Older records spread the same
// content over several free-text fields, one item each.
func recommendations(rec *consultation.Record) []string {
	legacy := []string{
		rec.NonDrugTreatment,
		rec.DietAdvice,
		rec.LifestyleAdvice,
		rec.RecommendedInvestigations,
		rec.SpecialtyReferrals,
		rec.SurveillanceAdvice,
	}
	if rec.NextAppointment != nil {
		legacy = append(legacy, "Control la data de "+rec.NextAppointment.Format("02.01.2006"))
	}
	items := normalize.Slice(cleanItems(rec.Recommendations), cleanItems(legacy)).Value()
	if items == nil {
		return []string{}
	}
	return items
}

func cleanItems(in []string) []string {
	var out []string
	for _, s := range in {
		if s = plain(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func complianceRecord(rec *consultation.Record, kind letter.ComplianceKind) consultation.ComplianceRecord {
	switch kind {
	case letter.Hospitalization:
		return rec.Hospitalization
	case letter.Prescription:
		return rec.Prescription
	case letter.SickLeave:
		return rec.SickLeave
	case letter.HomeCare:
		return rec.HomeCare
	default:
		return rec.MedicalDevices
	}
}

func complianceInput(r consultation.ComplianceRecord) normalize.ComplianceInput {
	return normalize.ComplianceInput{
		Issued:    r.Issued != nil && *r.Issued,
		NotIssued: r.NotIssued,
		NotNeeded: r.NotNeeded,
		Reference: plain(r.Reference),
	}
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// =========== Sub-fetch merge ===========

// mergeInto copies every sub-fetch slot into l. Failed fetches left their
// slot nil, which maps to an empty list.
func (f *fetched) mergeInto(l *letter.CanonicalLetter) {
	for _, o := range f.recommendedLabs {
		name := plain(o.Name)
		if name == "" {
			continue
		}
		l.RecommendedTests = append(l.RecommendedTests, letter.RecommendedTest{
			Name:               name,
			Category:           plain(o.Category),
			Priority:           plain(o.Priority),
			IsUrgent:           o.Urgent,
			ClinicalIndication: plain(o.ClinicalIndication),
		})
	}

	var results []letter.LabResult
	for _, p := range f.performedLabs {
		if !panelHasResults(p) {
			continue
		}
		test, rows := mapPanel(p)
		l.PerformedTests = append(l.PerformedTests, test)
		results = append(results, rows...)
	}
	l.NormalResults, l.AbnormalResults = letter.Partition(results, func(r letter.LabResult) bool { return r.IsAbnormal })

	recommended := [3]*[]letter.Investigation{&l.RecommendedImaging, &l.RecommendedExplorations, &l.RecommendedEndoscopies}
	performed := [3]*[]letter.Investigation{&l.Paraclinical.Imaging, &l.Paraclinical.Explorations, &l.Paraclinical.Endoscopies}
	for i := range consultation.InvestigationKinds {
		for _, o := range f.recommended[i] {
			if inv := orderToInvestigation(o); inv.Name != "" {
				*recommended[i] = append(*recommended[i], inv)
			}
		}
		for _, r := range f.performed[i] {
			if inv := resultToInvestigation(r); inv.Name != "" {
				*performed[i] = append(*performed[i], inv)
			}
		}
	}
}

func panelHasResults(p consultation.LabResultPanel) bool {
	return p.HasResults || strings.TrimSpace(p.Value) != "" || len(p.Parameters) > 0
}

// mapPanel converts a performed panel to its summary row and its individual
// results. A panel without parameters is its own single result.
func mapPanel(p consultation.LabResultPanel) (letter.PerformedTest, []letter.LabResult) {
	name := plain(p.Name)
	value := plain(p.Value)
	ref := referenceRange(plain(p.ReferenceText), p.RefMin, p.RefMax)
	panelAbnormal := isAbnormal(p.OutOfRange, value, p.RefMin, p.RefMax)

	var rows []letter.LabResult
	for _, prm := range p.Parameters {
		pname := plain(prm.Name)
		pval := plain(prm.Value)
		if pname == "" || pval == "" {
			continue
		}
		row := letter.LabResult{
			Name:           pname,
			Value:          pval,
			Unit:           plain(prm.Unit),
			ReferenceRange: referenceRange(plain(prm.ReferenceText), prm.RefMin, prm.RefMax),
			IsAbnormal:     isAbnormal(prm.Abnormal, pval, prm.RefMin, prm.RefMax),
		}
		panelAbnormal = panelAbnormal || row.IsAbnormal
		rows = append(rows, row)
	}
	if len(p.Parameters) == 0 && name != "" && value != "" {
		rows = append(rows, letter.LabResult{
			Name:           name,
			Value:          value,
			Unit:           plain(p.Unit),
			ReferenceRange: ref,
			IsAbnormal:     panelAbnormal,
		})
	}

	test := letter.PerformedTest{
		Name:               name,
		Category:           plain(p.Category),
		Priority:           plain(p.Priority),
		IsUrgent:           p.Urgent,
		ClinicalIndication: plain(p.ClinicalIndication),
		PerformedAt:        copyPtr(p.PerformedAt),
		Lab:                plain(p.Lab),
		Result:             value,
		Unit:               plain(p.Unit),
		ReferenceRange:     ref,
		IsAbnormal:         panelAbnormal,
	}
	return test, rows
}

// isAbnormal trusts an explicit flag, otherwise compares a numeric value
// against the bounds. Values that do not parse are normal.
func isAbnormal(flag *bool, value string, lo, hi *float64) bool {
	if flag != nil {
		return *flag
	}
	v, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(value), ",", ".", 1), 64)
	if err != nil {
		return false
	}
	return (lo != nil && v < *lo) || (hi != nil && v > *hi)
}

func referenceRange(text string, lo, hi *float64) string {
	if text != "" {
		return text
	}
	switch {
	case lo != nil && hi != nil:
		return formatNum(*lo) + " - " + formatNum(*hi)
	case hi != nil:
		return "< " + formatNum(*hi)
	case lo != nil:
		return "> " + formatNum(*lo)
	}
	return ""
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func orderToInvestigation(o consultation.InvestigationOrder) letter.Investigation {
	return letter.Investigation{
		Name:               plain(o.Name),
		Code:               plain(o.Code),
		Category:           plain(o.Category),
		Priority:           plain(o.Priority),
		IsUrgent:           o.Urgent,
		ClinicalIndication: plain(o.ClinicalIndication),
		Note:               plain(o.Note),
	}
}

func resultToInvestigation(r consultation.InvestigationResult) letter.Investigation {
	result := plain(r.Conclusion)
	if result == "" {
		result = plain(r.Result)
	}
	return letter.Investigation{
		Name:        plain(r.Name),
		Code:        plain(r.Code),
		PerformedAt: copyPtr(r.PerformedAt),
		Facility:    plain(r.Facility),
		Result:      result,
	}
}
