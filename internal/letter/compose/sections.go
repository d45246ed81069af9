package compose

import (
	"html"
	"strconv"

	"github.com/ehr/medletter/internal/letter"
)

// Regulatory texts of the notes box and footnotes.
const (
	NoteDuration = "Se va specifica durata pentru care se poate prescrie de medicul din ambulatoriu, " +
		"inclusiv medicul de familie, fiecare dintre medicamentele recomandate."
	NoteWarningTitle = "ATENȚIE!"
	NoteWarning      = "Nerespectarea obligației medicului de specialitate din ambulatoriu sau din spital de a " +
		"iniția tratamentul prin prescrierea primei rețete pentru medicamente cu sau fără contribuție " +
		"personală, astfel cum este prevăzut în protocoalele terapeutice, precum și de a elibera " +
		"prescripția medicală / bilete de trimitere / concediu medical / recomandări pentru îngrijiri la " +
		"domiciliu / prescripții pentru dispozitive medicale în fiecare caz pentru care este necesar, se " +
		"sancționează potrivit contractului încheiat de furnizor cu casa de asigurări de sănătate!"
	NoteValidity = "Valabilitatea scrisorii medicale începe de la data eliberării acesteia și este în " +
		"concordanță cu protocolul terapeutic."
)

// Footnotes printed under the signature.
var Footnotes = []string{
	"Scrisoarea medicală se întocmește în două exemplare, din care un exemplar rămâne la medicul care a " +
		"efectuat consultația/serviciul în ambulatoriul de specialitate, iar un exemplar este transmis " +
		"medicului de familie/medicului de specialitate din ambulatoriul de specialitate.",
	"Scrisoarea medicală sau biletul de ieșire din spital sunt documente tipizate care se întocmesc la data " +
		"externării, într-un singur exemplar care este transmis medicului de familie/medicului de specialitate " +
		"din ambulatoriul de specialitate, direct, prin intermediul asiguratului ori prin poștă electronică.",
	"Scrisoarea medicală trimisă prin poștă electronică este semnată cu semnătura electronică extinsă/calificată.",
}

func header(c letter.ClinicIdentity) Header {
	h := Header{
		ClinicName: c.Name,
		Annex:      "ANEXA nr. 43",
		Order:      "Ordin MS nr. 1411/2016",
		Title:      "SCRISOARE MEDICALĂ",
		Contract:   "Contract/convenție nr. " + orDash(c.CASContract),
	}
	if c.CASName != "" {
		h.Contract += " | " + c.CASName
	}
	for _, line := range []string{
		c.Type,
		c.Address,
		joinNonEmpty(" | ", prefixed("Tel: ", c.Phone), prefixed("Email: ", c.Email)),
		joinNonEmpty(" | ", prefixed("CUI: ", c.FiscalCode), prefixed("Reg. Com.: ", c.TradeRegistry)),
	} {
		if line != "" {
			h.ClinicLines = append(h.ClinicLines, line)
		}
	}
	return h
}

func prefixed(prefix, v string) string {
	if v == "" {
		return ""
	}
	return prefix + v
}

func introBody(l *letter.CanonicalLetter) Content {
	return Banner{Spans: []Span{
		{Text: "Stimate coleg, ", Bold: true},
		{Text: "vă informăm că "},
		{Text: orDash(l.Patient.Name), Bold: true},
		{Text: ", născut(ă) la data de "},
		{Text: datePtr(l.Patient.BirthDate), Bold: true},
		{Text: ", CNP "},
		{Text: orDash(l.Patient.NationalID), Bold: true},
		{Text: ", a fost consultat(ă) în serviciul nostru la data de "},
		{Text: date(l.ConsultationDate), Bold: true},
		{Text: ". Nr. din Registrul de consultații/Foaie de observație: "},
		{Text: orDash(l.RegistryNumber), Bold: true},
		{Text: "."},
	}}
}

func patientBody(l *letter.CanonicalLetter) Content {
	age := "-"
	if l.Patient.Age != nil {
		age = strconv.Itoa(*l.Patient.Age) + " ani"
	}
	return FieldGrid{Columns: 3, Fields: []Field{
		{"Nume", orDash(l.Patient.Name)},
		{"CNP", orDash(l.Patient.NationalID)},
		{"Data nașterii", datePtr(l.Patient.BirthDate)},
		{"Vârstă", age},
		{"Sex", orDash(l.Patient.Sex)},
		{"Data consultației", date(l.ConsultationDate)},
	}}
}

func oncologyBody(l *letter.CanonicalLetter) Content {
	return OncologyBanner{
		Question:  "Pacient diagnosticat cu afecțiune oncologică:",
		Oncologic: l.Oncology.Oncologic,
		Details:   l.Oncology.Details,
	}
}

func diagnosisBody(l *letter.CanonicalLetter) Content {
	d := DiagnosisList{Principal: l.PrincipalDiagnosis}
	if len(l.SecondaryDiagnoses) > 0 {
		d.Secondary = l.SecondaryDiagnoses
	}
	return d
}

func anamnesisBody(l *letter.CanonicalLetter) Content {
	a := l.Anamnesis
	items := []Subsection{
		{Label: "Antecedente Heredocolaterale:", Markup: a.FamilyHistory, Inline: true},
		{Label: "Antecedente Patologice Personale:", Markup: a.PersonalHistory, Inline: true},
		{Label: "Alergii:", Markup: escape(orText(a.Allergies, "Nu sunt cunoscute.")), Inline: true},
		{Label: "Medicație Cronică Anterioară:", Markup: escape(orText(a.ChronicMedication, "Nu există.")), Inline: true},
		{Label: "Factori de Risc:", Markup: escape(orText(a.RiskFactors, "Nu au fost identificați.")), Inline: true},
	}
	if a.CurrentIllness != "" {
		items = append(items, Subsection{Label: "Istoricul Bolii Actuale:", Markup: a.CurrentIllness, Inline: true})
	}
	return Subsections{Items: items}
}

func examBody(l *letter.CanonicalLetter) Content {
	var items []Subsection
	if line := vitalsLine(l.Patient.Vitals, l.Exam); line != "" {
		items = append(items, Subsection{Label: "Examen Clinic General:", Markup: escape(line), Shaded: true})
	}
	if l.Exam.General != "" {
		items = append(items, Subsection{Label: "Examen general:", Markup: l.Exam.General, Inline: true})
	}
	if l.Exam.Local != "" {
		items = append(items, Subsection{Label: "Examen Clinic Local:", Markup: l.Exam.Local})
	}
	if l.Exam.Other != "" {
		items = append(items, Subsection{Markup: l.Exam.Other, Italic: true})
	}
	return Subsections{Items: items}
}

// vitalsLine is the compact "Stare generală: … | TA: … mmHg | …" summary.
func vitalsLine(v letter.Vitals, e letter.Exam) string {
	var parts []string
	add := func(s string) { parts = append(parts, s) }
	if e.GeneralState != "" {
		add("Stare generală: " + e.GeneralState)
	}
	if v.BloodPressure != "" {
		add("TA: " + v.BloodPressure + " mmHg")
	}
	if v.Pulse != nil {
		add("Puls: " + strconv.Itoa(*v.Pulse) + " bpm")
	}
	if v.RespiratoryRate != nil {
		add("FR: " + strconv.Itoa(*v.RespiratoryRate) + " resp/min")
	}
	if v.Temperature != nil {
		add("Temp: " + decimal(*v.Temperature) + "°C")
	}
	if v.Weight != nil {
		add("G: " + decimal(*v.Weight) + " kg")
	}
	if v.Height != nil {
		add("Î: " + decimal(*v.Height) + " cm")
	}
	if v.BMI != nil {
		bmi := "IMC: " + strconv.FormatFloat(*v.BMI, 'f', 1, 64) + " kg/m²"
		if v.BMICategory != "" {
			bmi += " (" + v.BMICategory + ")"
		}
		add(bmi)
	}
	if v.SpO2 != nil {
		add("SpO2: " + strconv.Itoa(*v.SpO2) + "%")
	}
	if v.Glucose != nil {
		add("Glicemie: " + decimal(*v.Glucose) + " mg/dL")
	}
	if e.Skin != "" {
		add("Tegumente: " + e.Skin)
	}
	if e.Mucosa != "" {
		add("Mucoase: " + e.Mucosa)
	}
	if e.LymphNodes != "" {
		add("Ganglioni limfatici: " + e.LymphNodes)
	}
	if e.Edema != "" {
		add("Edeme: " + e.Edema)
	}
	return joinNonEmpty(" | ", parts...)
}

func performedTestsBody(l *letter.CanonicalLetter) Content {
	normal, abnormal := letter.Partition(l.PerformedTests, func(t letter.PerformedTest) bool { return t.IsAbnormal })
	pt := PerformedTests{
		AbnormalHeader: []string{"Analiză", "Rezultat", "Referință", "Data"},
		PerRow:         3,
	}
	for _, t := range abnormal {
		pt.Abnormal = append(pt.Abnormal, []string{
			t.Name,
			joinNonEmpty(" ", t.Result, t.Unit),
			orDash(t.ReferenceRange),
			datePtr(t.PerformedAt),
		})
	}
	for _, t := range normal {
		pt.Normal = append(pt.Normal, Field{Label: t.Name, Value: joinNonEmpty(" ", t.Result, t.Unit)})
	}
	return pt
}

func paraclinicalBody(l *letter.CanonicalLetter) Content {
	p := l.Paraclinical
	var items []Subsection
	for _, group := range []struct {
		label string
		list  []letter.Investigation
	}{
		{"Investigații Imagistice:", p.Imaging},
		{"Explorări Funcționale:", p.Explorations},
		{"Endoscopii:", p.Endoscopies},
	} {
		if len(group.list) == 0 {
			continue
		}
		items = append(items, Subsection{Label: group.label, Bullets: performedBullets(group.list)})
	}
	on := date(l.ConsultationDate)
	for _, r := range []struct{ label, markup string }{
		{"EKG (" + on + "):", p.ECG},
		{"Ecocardiografie (" + on + "):", p.Echography},
		{"Radiografie (" + on + "):", p.XRay},
	} {
		if r.markup != "" {
			items = append(items, Subsection{Label: r.label, Markup: r.markup, Inline: true})
		}
	}
	if p.Other != "" {
		items = append(items, Subsection{Label: "Alte Investigații:", Markup: p.Other})
	}
	return Subsections{Items: items}
}

func performedBullets(list []letter.Investigation) []string {
	out := make([]string, 0, len(list))
	for _, inv := range list {
		s := inv.Summary()
		if inv.PerformedAt != nil {
			s += " (" + date(*inv.PerformedAt) + ")"
		}
		out = append(out, s)
	}
	return out
}

func treatmentBody(l *letter.CanonicalLetter) Content {
	t := Table{
		Header:  []string{"MEDICAMENT", "DOZĂ", "FRECVENȚĂ", "DURATĂ", "OBS."},
		Weights: []float64{3, 1.5, 1.5, 1.2, 2},
	}
	for _, m := range l.Medications {
		t.Rows = append(t.Rows, []string{m.Name, orDash(m.Dose), orDash(m.Frequency), orDash(m.Duration), orDash(m.Note)})
	}
	return t
}

func recommendationsBody(l *letter.CanonicalLetter) Content {
	var items []ListItem
	for _, r := range l.Recommendations {
		items = append(items, ListItem{Text: r})
	}
	for _, group := range []struct {
		label string
		list  []letter.Investigation
	}{
		{"Investigații imagistice recomandate:", l.RecommendedImaging},
		{"Explorări funcționale recomandate:", l.RecommendedExplorations},
		{"Endoscopii recomandate:", l.RecommendedEndoscopies},
	} {
		if len(group.list) == 0 {
			continue
		}
		item := ListItem{Text: group.label}
		for _, inv := range group.list {
			s := inv.Summary()
			if inv.IsUrgent {
				s += " (URGENT)"
			}
			item.Children = append(item.Children, s)
		}
		items = append(items, item)
	}
	return NumberedList{Items: items}
}

func recommendedTestsBody(l *letter.CanonicalLetter) Content {
	cells := make([]TestCell, 0, len(l.RecommendedTests))
	for _, t := range l.RecommendedTests {
		cells = append(cells, TestCell{Name: t.Name, Category: orDash(t.Category), Urgent: t.IsUrgent})
	}
	return TestGrid{
		Header:  []string{"Analiză", "Categorie"},
		Columns: letter.SplitColumns(cells, letter.MaxColumns),
	}
}

func notesBody(*letter.CanonicalLetter) Content {
	return NotesBox{
		Intro:        NoteDuration,
		WarningTitle: NoteWarningTitle,
		Warning:      NoteWarning,
		Validity:     NoteValidity,
	}
}

// optionLabels gives the printed label of each option of a group; ref is the
// group's reference (term or series).
var optionLabels = map[letter.ComplianceKind]map[letter.ComplianceState]func(ref string) string{
	letter.Hospitalization: {
		letter.Issued: func(ref string) string {
			return "Da, revine pentru internare în termen de " + orPlaceholder(ref)
		},
		letter.NotNeeded: func(string) string { return "Nu, nu este necesară revenirea pentru internare" },
	},
	letter.Prescription: {
		letter.Issued:    func(ref string) string { return "S-a eliberat prescripție medicală - " + orPlaceholder(ref) },
		letter.NotNeeded: func(string) string { return "Nu s-a eliberat prescripție medicală deoarece nu a fost necesar" },
		letter.NotIssued: func(string) string { return "Nu s-a eliberat prescripție medicală" },
	},
	letter.SickLeave: {
		letter.Issued: func(ref string) string {
			return "S-a eliberat concediu medical - seria și numărul: " + orPlaceholder(ref)
		},
		letter.NotNeeded: func(string) string { return "Nu s-a eliberat concediu medical deoarece nu a fost necesar" },
		letter.NotIssued: func(string) string { return "Nu s-a eliberat concediu medical" },
	},
	letter.HomeCare: {
		letter.Issued: func(string) string {
			return "S-a eliberat recomandare pentru îngrijiri medicale la domiciliu/paliative la domiciliu"
		},
		letter.NotNeeded: func(string) string {
			return "Nu s-a eliberat recomandare pentru îngrijiri medicale la domiciliu deoarece nu a fost necesar"
		},
	},
	letter.MedicalDevices: {
		letter.Issued: func(string) string {
			return "S-a eliberat prescripție medicală pentru dispozitive medicale în ambulatoriu"
		},
		letter.NotNeeded: func(string) string {
			return "Nu s-a eliberat prescripție medicală pentru dispozitive medicale deoarece nu a fost necesar"
		},
	},
}

func complianceBody(kind letter.ComplianceKind) func(*letter.CanonicalLetter) Content {
	return func(l *letter.CanonicalLetter) Content {
		var g letter.ComplianceGroup
		for _, candidate := range l.Compliance.Groups() {
			if candidate.Kind == kind {
				g = candidate
			}
		}
		labels := optionLabels[kind]
		var cb Checkboxes
		for _, state := range kind.Options() {
			cb.Options = append(cb.Options, Checkbox{
				Label:   labels[state](g.Reference),
				Checked: g.State == state,
			})
		}
		return cb
	}
}

func signatureBody(l *letter.CanonicalLetter) Content {
	email := "Prin poștă electronică: " + orPlaceholder(l.Transmission.Email)
	return Signature{
		RoleLabel:     "Medic Curant",
		Doctor:        orDash(l.Doctor.Name),
		Specialty:     l.Doctor.Specialty,
		StampLabel:    "Cod Parafă: " + orDash(l.Doctor.StampCode),
		StampBoxLabel: "Parafă & Semnătură",
		IssuedLabel:   "Data Emiterii",
		IssuedOn:      date(l.IssuedAt),
		TransmitLabel: "Calea de Transmitere",
		Transmission: []Checkbox{
			{Label: "Prin asigurat", Checked: l.Transmission.ByPatient},
			{Label: email, Checked: l.Transmission.ByEmail},
		},
		Footnotes:      Footnotes,
		FootnoteMarker: "*) ",
	}
}

func orText(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// escape turns plain text into markup.
func escape(s string) string {
	return html.EscapeString(s)
}
