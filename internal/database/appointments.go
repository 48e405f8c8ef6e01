package database

import (
	"context"
	"fmt"
	"time"

	"clinicbook/internal/models"
)

func (d *DB) RecordAppointment(ctx context.Context, record *models.AppointmentRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `INSERT INTO appointments (
                request_id, user_id, clinic_id, clinic_name,
                doctor_id, doctor_name, specialty, date, slot,
                patient_name, patient_email, patient_contact, notes, fee,
                created_at
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := d.ExecContext(ctx, query,
		record.RequestID,
		record.UserID,
		record.ClinicID,
		record.ClinicName,
		record.DoctorID,
		record.DoctorName,
		record.Specialty,
		record.Date,
		record.Slot,
		record.PatientName,
		record.PatientEmail,
		record.PatientContact,
		record.Notes,
		record.Fee,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record appointment: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

// ListAppointments returns a user's booking history, newest first.
func (d *DB) ListAppointments(ctx context.Context, userID int64) ([]models.AppointmentRecord, error) {
	query := `SELECT id, request_id, user_id, clinic_id, clinic_name,
                     doctor_id, doctor_name, specialty, date, slot,
                     patient_name, patient_email, patient_contact, notes, fee,
                     created_at
              FROM appointments
              WHERE user_id = ?
              ORDER BY created_at DESC, id DESC`
	rows, err := d.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var records []models.AppointmentRecord
	for rows.Next() {
		var r models.AppointmentRecord
		if err := rows.Scan(
			&r.ID, &r.RequestID, &r.UserID, &r.ClinicID, &r.ClinicName,
			&r.DoctorID, &r.DoctorName, &r.Specialty, &r.Date, &r.Slot,
			&r.PatientName, &r.PatientEmail, &r.PatientContact, &r.Notes, &r.Fee,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
