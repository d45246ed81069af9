package integration

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medletter/internal/consultation"
	"github.com/ehr/medletter/internal/letter"
	"github.com/ehr/medletter/internal/letter/aggregate"
	"github.com/ehr/medletter/internal/letter/pipeline"
	"github.com/ehr/medletter/internal/letter/render"
	"github.com/ehr/medletter/internal/platform/db"
)

func sources() aggregate.Sources {
	return aggregate.Sources{
		Consultations:  consultation.NewConsultationRepoPG(globalDB.Pool),
		Labs:           consultation.NewLabRepoPG(globalDB.Pool),
		Investigations: consultation.NewInvestigationRepoPG(globalDB.Pool),
	}
}

// seedConsultation inserts a complete consultation with diagnoses, treatment,
// one lab panel and one imaging order, and returns its id.
func seedConsultation(t *testing.T, ctx context.Context) uuid.UUID {
	t.Helper()
	patientID, doctorID, consultationID, panelID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	mustExec(t, ctx, `INSERT INTO patients (id, full_name, national_id, birth_date, sex)
		VALUES ($1, 'Popescu Maria', '2800101123456', '1980-01-01', 'F')`, patientID)
	mustExec(t, ctx, `INSERT INTO doctors (id, full_name, specialty, stamp_code)
		VALUES ($1, 'Dr. Ionescu Andrei', 'Cardiologie', 'B12345')`, doctorID)
	mustExec(t, ctx, `INSERT INTO consultations (id, patient_id, doctor_id, consultation_date, kind,
			complaint, weight, height, blood_pressure, recommendations, prescription_issued, prescription_series)
		VALUES ($1, $2, $3, $4, 'initial', '<p>Cefalee <b>occipitală</b></p>', 70, 175, '150/90',
			ARRAY['Regim hiposodat', ' ', 'Control peste 3 luni'], TRUE, 'CJ 0042')`,
		consultationID, patientID, doctorID, time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC))

	mustExec(t, ctx, `INSERT INTO consultation_diagnoses (consultation_id, position, code, name, is_principal)
		VALUES ($1, 1, 'E11', 'Diabet zaharat tip 2', FALSE),
		       ($1, 2, 'I10', 'Hipertensiune arterială esențială', TRUE)`, consultationID)
	mustExec(t, ctx, `INSERT INTO consultation_medications (consultation_id, position, name, dose, frequency, duration)
		VALUES ($1, 1, 'Perindopril', '5 mg', '1-0-0', '30 zile')`, consultationID)

	mustExec(t, ctx, `INSERT INTO lab_panels (id, consultation_id, name, has_results, performed_at)
		VALUES ($1, $2, 'Hemoleucogramă', TRUE, $3)`, panelID, consultationID, time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC))
	mustExec(t, ctx, `INSERT INTO lab_parameters (panel_id, position, name, value, unit, ref_min, ref_max, abnormal)
		VALUES ($1, 1, 'Hemoglobină', '13.5', 'g/dL', 12, 16, NULL),
		       ($1, 2, 'Leucocite', '14.2', '10^3/µL', 4, 10, NULL)`, panelID)

	mustExec(t, ctx, `INSERT INTO investigation_orders (id, consultation_id, kind, code, name, urgent)
		VALUES ($1, $2, 'imaging', 'RX01', 'Radiografie toracică', TRUE)`, uuid.New(), consultationID)

	return consultationID
}

func TestMigrations_Status(t *testing.T) {
	ctx := context.Background()
	migrate(t, ctx)

	statuses, err := db.NewMigrator(globalDB.Pool, globalDB.MigrationsDir).Status(ctx, db.DefaultSchema)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(statuses) == 0 {
		t.Fatal("expected at least one migration")
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Errorf("migration %03d_%s not applied", s.Version, s.Name)
		}
	}

	// A second run finds nothing to do.
	n, err := db.NewMigrator(globalDB.Pool, globalDB.MigrationsDir).Up(ctx, db.DefaultSchema)
	if err != nil {
		t.Fatalf("second up: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 migrations on the second run, got %d", n)
	}
}

func TestLetter_FromReadModel(t *testing.T) {
	ctx := context.Background()
	migrate(t, ctx)
	id := seedConsultation(t, ctx)

	agg := aggregate.New(sources(), letter.ClinicIdentity{Name: "Clinica Test"}, zerolog.Nop())
	l, err := agg.Aggregate(ctx, id)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if l.PrincipalDiagnosis == nil || l.PrincipalDiagnosis.Code != "I10" {
		t.Fatalf("expected I10 as principal diagnosis, got %+v", l.PrincipalDiagnosis)
	}
	if len(l.SecondaryDiagnoses) != 1 || l.SecondaryDiagnoses[0].Code != "E11" {
		t.Errorf("expected E11 as the only secondary diagnosis, got %+v", l.SecondaryDiagnoses)
	}
	if len(l.Medications) != 1 || l.Medications[0].Name != "Perindopril" {
		t.Errorf("unexpected medications: %+v", l.Medications)
	}
	if len(l.AbnormalResults) != 1 || l.AbnormalResults[0].Name != "Leucocite" {
		t.Errorf("expected Leucocite as the only abnormal result, got %+v", l.AbnormalResults)
	}
	if len(l.NormalResults) != 1 || l.NormalResults[0].Name != "Hemoglobină" {
		t.Errorf("expected Hemoglobină as the only normal result, got %+v", l.NormalResults)
	}
	if len(l.RecommendedImaging) != 1 || !l.RecommendedImaging[0].IsUrgent {
		t.Errorf("expected one urgent imaging order, got %+v", l.RecommendedImaging)
	}
	if len(l.Recommendations) != 2 {
		t.Errorf("expected blank recommendations dropped, got %q", l.Recommendations)
	}
	if l.Patient.Name != "Popescu Maria" {
		t.Errorf("patient name = %q", l.Patient.Name)
	}
}

func TestLetter_PDF(t *testing.T) {
	ctx := context.Background()
	migrate(t, ctx)
	id := seedConsultation(t, ctx)

	agg := aggregate.New(sources(), letter.ClinicIdentity{Name: "Clinica Test"}, zerolog.Nop())
	svc := pipeline.NewService(agg, render.New(render.DefaultStyle()), nil, zerolog.Nop())

	doc, err := svc.PDF(ctx, id)
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.HasPrefix(doc.Content, []byte("%PDF-")) {
		t.Error("content is not a PDF")
	}
	if doc.FileName == "" {
		t.Error("expected a file name")
	}
}

func TestLetter_NotFound(t *testing.T) {
	ctx := context.Background()
	migrate(t, ctx)

	agg := aggregate.New(sources(), letter.ClinicIdentity{}, zerolog.Nop())
	_, err := agg.Aggregate(ctx, uuid.New())
	if !errors.Is(err, letter.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLetter_CancelledContext(t *testing.T) {
	ctx := context.Background()
	migrate(t, ctx)
	id := seedConsultation(t, ctx)

	cctx, cancel := context.WithCancel(ctx)
	cancel()

	agg := aggregate.New(sources(), letter.ClinicIdentity{}, zerolog.Nop())
	_, err := agg.Aggregate(cctx, id)
	if !errors.Is(err, letter.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestOpenReadModel_Reopen(t *testing.T) {
	ctx := context.Background()

	pool, err := openReadModel(ctx, globalDB.ConnStr, globalDB.MigrationsDir)
	if err != nil {
		t.Fatalf("openReadModel: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"patients", "doctors", "consultations", "lab_panels", "lab_parameters", "investigation_orders"} {
		var n int
		if err := pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}
