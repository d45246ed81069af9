package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// =========== Consultation Repository ===========

type consultationRepoPG struct{ db queryable }

// NewConsultationRepoPG reads consultations joined with their patient and
// doctor. db is usually a *pgxpool.Pool.
func NewConsultationRepoPG(db queryable) ConsultationRepository {
	return &consultationRepoPG{db: db}
}

const consultationCols = `c.id, c.patient_id, c.doctor_id, c.consultation_date, c.kind, c.registry_number,
	p.full_name, p.national_id, p.birth_date, p.sex, p.phone, p.address, p.email, p.allergies,
	d.full_name, d.specialty, d.stamp_code,
	c.complaint, c.current_illness_history,
	c.family_history, c.personal_history, c.legacy_medical_history, c.allergies,
	c.chronic_medication, c.risk_factors, c.prior_treatment, c.legacy_drug_treatment,
	c.general_state, c.skin, c.mucosa, c.lymph_nodes, c.edema,
	c.general_exam, c.legacy_objective_exam, c.local_exam, c.other_clinical_notes,
	c.weight, c.height, c.bmi, c.temperature, c.blood_pressure, c.pulse, c.respiratory_rate, c.spo2, c.glucose,
	c.ecg, c.echography, c.xray, c.other_investigations,
	c.legacy_diagnosis, c.legacy_icd10, c.legacy_secondary_icd10,
	c.recommendations, c.non_drug_treatment, c.diet_advice, c.lifestyle_advice,
	c.recommended_investigations, c.specialty_referrals, c.surveillance_advice,
	c.next_appointment, c.other_information,
	c.oncologic, c.oncologic_details,
	c.hospitalization_issued, c.hospitalization_not_needed, c.hospitalization_term,
	c.prescription_issued, c.prescription_not_issued, c.prescription_not_needed, c.prescription_series,
	c.sick_leave_issued, c.sick_leave_not_issued, c.sick_leave_not_needed, c.sick_leave_series,
	c.home_care_issued, c.home_care_not_needed,
	c.devices_issued, c.devices_not_needed,
	c.send_to_patient, c.send_by_email, c.transmission_email, c.issued_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.PatientID, &r.DoctorID, &r.Date, &r.Kind, &r.RegistryNumber,
		&r.PatientName, &r.PatientNationalID, &r.PatientBirthDate, &r.PatientSex, &r.PatientPhone,
		&r.PatientAddress, &r.PatientEmail, &r.PatientAllergies,
		&r.DoctorName, &r.DoctorSpecialty, &r.DoctorStampCode,
		&r.Complaint, &r.CurrentIllnessHistory,
		&r.FamilyHistory, &r.PersonalHistory, &r.LegacyMedicalHistory, &r.Allergies,
		&r.ChronicMedication, &r.RiskFactors, &r.PriorTreatment, &r.LegacyDrugTreatment,
		&r.GeneralState, &r.Skin, &r.Mucosa, &r.LymphNodes, &r.Edema,
		&r.GeneralExam, &r.LegacyObjectiveExam, &r.LocalExam, &r.OtherClinicalNotes,
		&r.Weight, &r.Height, &r.BMI, &r.Temperature, &r.BloodPressure, &r.Pulse, &r.RespiratoryRate, &r.SpO2, &r.Glucose,
		&r.ECG, &r.Echography, &r.XRay, &r.OtherInvestigations,
		&r.LegacyDiagnosis, &r.LegacyICD10, &r.LegacySecondaryICD10,
		&r.Recommendations, &r.NonDrugTreatment, &r.DietAdvice, &r.LifestyleAdvice,
		&r.RecommendedInvestigations, &r.SpecialtyReferrals, &r.SurveillanceAdvice,
		&r.NextAppointment, &r.OtherInformation,
		&r.Oncologic, &r.OncologicDetails,
		&r.Hospitalization.Issued, &r.Hospitalization.NotNeeded, &r.Hospitalization.Reference,
		&r.Prescription.Issued, &r.Prescription.NotIssued, &r.Prescription.NotNeeded, &r.Prescription.Reference,
		&r.SickLeave.Issued, &r.SickLeave.NotIssued, &r.SickLeave.NotNeeded, &r.SickLeave.Reference,
		&r.HomeCare.Issued, &r.HomeCare.NotNeeded,
		&r.MedicalDevices.Issued, &r.MedicalDevices.NotNeeded,
		&r.SendToPatient, &r.SendByEmail, &r.TransmissionEmail, &r.IssuedAt)
	return &r, err
}

func (r *consultationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, `SELECT `+consultationCols+`
		FROM consultations c
		JOIN patients p ON p.id = c.patient_id
		JOIN doctors d ON d.id = c.doctor_id
		WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get consultation %s: %w", id, err)
	}

	if rec.Diagnoses, err = r.listDiagnoses(ctx, id); err != nil {
		return nil, err
	}
	if rec.Medications, err = r.listMedications(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *consultationRepoPG) listDiagnoses(ctx context.Context, id uuid.UUID) ([]DiagnosisRow, error) {
	rows, err := r.db.Query(ctx, `SELECT code, name, detail, is_principal
		FROM consultation_diagnoses WHERE consultation_id = $1 ORDER BY is_principal DESC, position`, id)
	if err != nil {
		return nil, fmt.Errorf("list diagnoses: %w", err)
	}
	defer rows.Close()
	var items []DiagnosisRow
	for rows.Next() {
		var d DiagnosisRow
		if err := rows.Scan(&d.Code, &d.Name, &d.Detail, &d.IsPrincipal); err != nil {
			return nil, fmt.Errorf("scan diagnosis: %w", err)
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *consultationRepoPG) listMedications(ctx context.Context, id uuid.UUID) ([]MedicationRow, error) {
	rows, err := r.db.Query(ctx, `SELECT name, dose, frequency, duration, note
		FROM consultation_medications WHERE consultation_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	defer rows.Close()
	var items []MedicationRow
	for rows.Next() {
		var m MedicationRow
		if err := rows.Scan(&m.Name, &m.Dose, &m.Frequency, &m.Duration, &m.Note); err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// =========== Lab Repository ===========

type labRepoPG struct{ db queryable }

func NewLabRepoPG(db queryable) LabRepository {
	return &labRepoPG{db: db}
}

func (r *labRepoPG) ListRecommended(ctx context.Context, consultationID uuid.UUID) ([]LabOrder, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, category, priority, urgent, clinical_indication
		FROM lab_orders WHERE consultation_id = $1 ORDER BY category, name`, consultationID)
	if err != nil {
		return nil, fmt.Errorf("list recommended labs: %w", err)
	}
	defer rows.Close()
	var items []LabOrder
	for rows.Next() {
		var o LabOrder
		if err := rows.Scan(&o.ID, &o.Name, &o.Category, &o.Priority, &o.Urgent, &o.ClinicalIndication); err != nil {
			return nil, fmt.Errorf("scan lab order: %w", err)
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const panelCols = `id, name, category, priority, urgent, clinical_indication, performed_at, lab,
	has_results, value, unit, reference_text, ref_min, ref_max, out_of_range`

func (r *labRepoPG) ListPerformed(ctx context.Context, consultationID uuid.UUID) ([]LabResultPanel, error) {
	rows, err := r.db.Query(ctx, `SELECT `+panelCols+`
		FROM lab_panels WHERE consultation_id = $1 ORDER BY performed_at, name`, consultationID)
	if err != nil {
		return nil, fmt.Errorf("list performed labs: %w", err)
	}
	var (
		panels []LabResultPanel
		ids    []uuid.UUID
	)
	for rows.Next() {
		var p LabResultPanel
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Priority, &p.Urgent, &p.ClinicalIndication,
			&p.PerformedAt, &p.Lab, &p.HasResults, &p.Value, &p.Unit, &p.ReferenceText,
			&p.RefMin, &p.RefMax, &p.OutOfRange); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan lab panel: %w", err)
		}
		panels = append(panels, p)
		ids = append(ids, p.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lab panels: %w", err)
	}
	if len(ids) == 0 {
		return panels, nil
	}

	params, err := r.db.Query(ctx, `SELECT panel_id, name, value, unit, reference_text, ref_min, ref_max, abnormal
		FROM lab_parameters WHERE panel_id = ANY($1) ORDER BY panel_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("list lab parameters: %w", err)
	}
	defer params.Close()
	byPanel := make(map[uuid.UUID][]LabParameter)
	for params.Next() {
		var (
			panelID uuid.UUID
			p       LabParameter
		)
		if err := params.Scan(&panelID, &p.Name, &p.Value, &p.Unit, &p.ReferenceText, &p.RefMin, &p.RefMax, &p.Abnormal); err != nil {
			return nil, fmt.Errorf("scan lab parameter: %w", err)
		}
		byPanel[panelID] = append(byPanel[panelID], p)
	}
	if err := params.Err(); err != nil {
		return nil, fmt.Errorf("iterate lab parameters: %w", err)
	}
	for i := range panels {
		panels[i].Parameters = byPanel[panels[i].ID]
	}
	return panels, nil
}

// =========== Investigation Repository ===========

type investigationRepoPG struct{ db queryable }

func NewInvestigationRepoPG(db queryable) InvestigationRepository {
	return &investigationRepoPG{db: db}
}

func (r *investigationRepoPG) ListRecommended(ctx context.Context, kind InvestigationKind, consultationID uuid.UUID) ([]InvestigationOrder, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, category, priority, urgent, clinical_indication, note
		FROM investigation_orders WHERE consultation_id = $1 AND kind = $2 ORDER BY name`, consultationID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list recommended %s: %w", kind, err)
	}
	defer rows.Close()
	var items []InvestigationOrder
	for rows.Next() {
		var o InvestigationOrder
		if err := rows.Scan(&o.ID, &o.Code, &o.Name, &o.Category, &o.Priority, &o.Urgent, &o.ClinicalIndication, &o.Note); err != nil {
			return nil, fmt.Errorf("scan %s order: %w", kind, err)
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *investigationRepoPG) ListPerformed(ctx context.Context, kind InvestigationKind, consultationID uuid.UUID) ([]InvestigationResult, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, performed_at, facility, result, conclusion
		FROM investigation_results WHERE consultation_id = $1 AND kind = $2 ORDER BY performed_at, name`, consultationID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list performed %s: %w", kind, err)
	}
	defer rows.Close()
	var items []InvestigationResult
	for rows.Next() {
		var res InvestigationResult
		if err := rows.Scan(&res.ID, &res.Code, &res.Name, &res.PerformedAt, &res.Facility, &res.Result, &res.Conclusion); err != nil {
			return nil, fmt.Errorf("scan %s result: %w", kind, err)
		}
		items = append(items, res)
	}
	return items, rows.Err()
}
