package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medletter/internal/consultation"
	"github.com/ehr/medletter/internal/letter"
	"github.com/ehr/medletter/internal/letter/aggregate"
	"github.com/ehr/medletter/internal/letter/render"
	"github.com/ehr/medletter/internal/platform/archive"
)

func ptr[T any](v T) *T { return &v }

var (
	testNow    = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	testClinic = letter.ClinicIdentity{
		Name:        "Clinica Sănătatea",
		Type:        "Ambulatoriu de specialitate",
		Address:     "Str. Republicii 10, Cluj-Napoca",
		Phone:       "0264 000 000",
		CASContract: "123/2025",
		CASName:     "CAS Cluj",
	}
)

// fullBundle is a consultation with every section populated.
func fullBundle() consultation.Bundle {
	id := uuid.New()
	performed := time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC)
	return consultation.Bundle{
		Consultation: consultation.Record{
			ID:               id,
			Date:             time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			PatientName:      "Ionescu Maria",
			PatientBirthDate: ptr(time.Date(1970, 5, 20, 0, 0, 0, 0, time.UTC)),
			PatientSex:       "F",
			PatientEmail:     "maria@example.ro",
			DoctorName:       "Dr. Popescu Andrei",
			DoctorSpecialty:  "Cardiologie",
			DoctorStampCode:  "A12345",
			Complaint:        "<p>Durere toracică la efort</p>",
			FamilyHistory:    "<p>Tatăl cu HTA</p>",
			GeneralExam:      "<p>Stare generală bună</p>",
			BloodPressure:    "140/90",
			Weight:           ptr(80.0),
			Height:           ptr(180.0),
			ECG:              "<p>Ritm sinusal</p>",
			Diagnoses: []consultation.DiagnosisRow{
				{Code: "I10", Name: "Hipertensiune arterială esențială", IsPrincipal: true},
				{Code: "E11.9", Name: "Diabet zaharat tip 2"},
				{Code: "E78.5", Name: "Dislipidemie"},
			},
			Medications: []consultation.MedicationRow{
				{Name: "Perindopril", Dose: "5 mg", Frequency: "1/zi", Duration: "30 zile"},
			},
			Recommendations: []string{"Regim hiposodat", "Control peste 3 luni"},
			Prescription:    consultation.ComplianceRecord{Issued: ptr(true), Reference: "AB 123"},
			SickLeave:       consultation.ComplianceRecord{NotIssued: true},
			SendByEmail:     true,
		},
		RecommendedLabs: []consultation.LabOrder{
			{Name: "Hemoglobină glicată", Category: "Biochimie", Urgent: true},
			{Name: "Profil lipidic", Category: "Biochimie"},
			{Name: "Creatinină", Category: "Biochimie"},
			{Name: "TSH", Category: "Endocrinologie"},
		},
		PerformedLabs: []consultation.LabResultPanel{
			{Name: "Glicemie", HasResults: true, Value: "132", Unit: "mg/dL", RefMin: ptr(70.0), RefMax: ptr(110.0), PerformedAt: &performed},
			{Name: "Colesterol total", HasResults: true, Value: "250", Unit: "mg/dL", RefMax: ptr(200.0), PerformedAt: &performed},
			{Name: "Hemoglobină", HasResults: true, Value: "13.5", Unit: "g/dL", RefMin: ptr(12.0), RefMax: ptr(16.0), PerformedAt: &performed},
			{Name: "Uree", HasResults: true, Value: "30", Unit: "mg/dL", RefMin: ptr(15.0), RefMax: ptr(45.0), PerformedAt: &performed},
			{Name: "Sodiu", HasResults: true, Value: "140", Unit: "mmol/L", RefMin: ptr(135.0), RefMax: ptr(145.0), PerformedAt: &performed},
		},
		RecommendedInvestigations: map[consultation.InvestigationKind][]consultation.InvestigationOrder{
			consultation.Imaging: {{Name: "Ecografie abdominală"}},
		},
	}
}

func minimalBundle() consultation.Bundle {
	return consultation.Bundle{
		Consultation: consultation.Record{
			ID:          uuid.New(),
			Date:        time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			PatientName: "Pop Ion",
			DoctorName:  "Dr. Radu",
		},
	}
}

type testEnv struct {
	data  *consultation.MemoryStore
	store *archive.MemoryStore
	svc   *Service
}

func newTestEnv(bundles ...consultation.Bundle) *testEnv {
	data := consultation.NewMemoryStore()
	for _, b := range bundles {
		data.Put(b)
	}
	return newTestEnvWith(aggregate.Sources{
		Consultations:  data.Consultations(),
		Labs:           data.Labs(),
		Investigations: data.Investigations(),
	}, data)
}

func newTestEnvWith(src aggregate.Sources, data *consultation.MemoryStore) *testEnv {
	agg := aggregate.New(src, testClinic, zerolog.Nop(), aggregate.WithClock(func() time.Time { return testNow }))
	store := archive.NewMemoryStore()
	return &testEnv{
		data:  data,
		store: store,
		svc:   NewService(agg, render.New(render.DefaultStyle()), store, zerolog.Nop()),
	}
}

func TestService_PDF(t *testing.T) {
	b := fullBundle()
	env := newTestEnv(b)

	doc, err := env.svc.PDF(context.Background(), b.Consultation.ID)
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.HasPrefix(doc.Content, []byte("%PDF-")) {
		t.Error("expected PDF content")
	}
	if doc.FileName == "" {
		t.Error("expected a file name")
	}
}

func TestService_PDFNotFound(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.PDF(context.Background(), uuid.New())
	if !errors.Is(err, letter.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_DraftPDF(t *testing.T) {
	env := newTestEnv()
	rec := fullBundle().Consultation
	rec.ID = uuid.Nil

	doc, err := env.svc.DraftPDF(context.Background(), &rec)
	if err != nil {
		t.Fatalf("DraftPDF: %v", err)
	}
	if !bytes.HasPrefix(doc.Content, []byte("%PDF-")) {
		t.Error("expected PDF content")
	}
}

func TestService_PagePreview(t *testing.T) {
	b := fullBundle()
	env := newTestEnv(b)

	out, err := env.svc.PagePreview(context.Background(), b.Consultation.ID, 1, 210)
	if err != nil {
		t.Fatalf("PagePreview: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("\x89PNG")) {
		t.Error("expected PNG content")
	}

	n, err := env.svc.PageCount(context.Background(), b.Consultation.ID)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if _, err := env.svc.PagePreview(context.Background(), b.Consultation.ID, n+1, 210); !errors.Is(err, render.ErrPageRange) {
		t.Errorf("expected ErrPageRange past the last page, got %v", err)
	}
}

func TestService_Save(t *testing.T) {
	b := fullBundle()
	env := newTestEnv(b)
	ctx := context.Background()

	meta, err := env.svc.Save(ctx, b.Consultation.ID)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !archive.ValidKey(meta.Key) || !strings.HasPrefix(meta.Key, "letters/"+b.Consultation.ID.String()+"/") {
		t.Errorf("key = %q", meta.Key)
	}

	data, got, err := env.svc.Archived(ctx, meta.Key)
	if err != nil {
		t.Fatalf("Archived: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) || got.Hash != meta.Hash {
		t.Error("archived content does not match")
	}

	items, err := env.svc.ArchivedFor(ctx, b.Consultation.ID)
	if err != nil || len(items) != 1 {
		t.Errorf("ArchivedFor = %v, %v", items, err)
	}
}

func TestService_SaveTwiceKeepsHistory(t *testing.T) {
	b := fullBundle()
	b.Consultation.IssuedAt = &testNow
	env := newTestEnv(b)
	ctx := context.Background()

	first, err := env.svc.Save(ctx, b.Consultation.ID)
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}
	second, err := env.svc.Save(ctx, b.Consultation.ID)
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if first.Key == second.Key {
		t.Fatalf("second save replaced %q", first.Key)
	}

	items, err := env.svc.ArchivedFor(ctx, b.Consultation.ID)
	if err != nil {
		t.Fatalf("ArchivedFor: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 archived versions, got %d", len(items))
	}
	if _, _, err := env.svc.Archived(ctx, first.Key); err != nil {
		t.Errorf("first version lost: %v", err)
	}
}

func TestService_SaveWithoutStore(t *testing.T) {
	b := fullBundle()
	env := newTestEnv(b)
	env.svc.store = nil
	if _, err := env.svc.Save(context.Background(), b.Consultation.ID); !errors.Is(err, ErrArchiveDisabled) {
		t.Errorf("expected ErrArchiveDisabled, got %v", err)
	}
}

func TestService_CancelledRender(t *testing.T) {
	b := fullBundle()
	env := newTestEnv(b)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.svc.PDF(ctx, b.Consultation.ID); !errors.Is(err, letter.ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

type recordedOp struct {
	operation, outcome string
}

type mockRecorder struct {
	ops []recordedOp
}

func (m *mockRecorder) ObserveLetter(operation, outcome string, _ time.Duration) {
	m.ops = append(m.ops, recordedOp{operation, outcome})
}

func TestService_Instrument(t *testing.T) {
	b := fullBundle()
	env := newTestEnv(b)
	rec := &mockRecorder{}
	env.svc.Instrument(rec)
	ctx := context.Background()

	if _, err := env.svc.PDF(ctx, b.Consultation.ID); err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if _, err := env.svc.PDF(ctx, uuid.New()); err == nil {
		t.Fatal("expected not found")
	}
	if _, err := env.svc.PagePreview(ctx, b.Consultation.ID, 99, 420); err == nil {
		t.Fatal("expected a page range error")
	}
	if _, err := env.svc.Save(ctx, b.Consultation.ID); err != nil {
		t.Fatalf("Save: %v", err)
	}

	want := []recordedOp{
		{"pdf", "ok"},
		{"pdf", "error"},
		{"preview", "error"},
		{"archive", "ok"},
	}
	if len(rec.ops) != len(want) {
		t.Fatalf("recorded %v, want %v", rec.ops, want)
	}
	for i := range want {
		if rec.ops[i] != want[i] {
			t.Errorf("op %d = %v, want %v", i, rec.ops[i], want[i])
		}
	}
}
