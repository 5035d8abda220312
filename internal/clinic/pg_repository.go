package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appointmentColumns = `id, patient_id, physician_id, created_by_user_id, service_type,
	scheduled_start_at, duration_minutes, status, notes,
	checked_in_at, started_at, completed_at, cancelled_at, cancel_reason, no_show_at,
	created_at, updated_at`

// PgRepository is the Postgres implementation of the Repository port.
type PgRepository struct {
	pool  *pgxpool.Pool
	clock ClinicTime
}

func NewPgRepository(pool *pgxpool.Pool, clock ClinicTime) *PgRepository {
	return &PgRepository{pool: pool, clock: clock}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var s AppointmentSnapshot
	var notes, cancelReason *string

	err := row.Scan(
		&s.ID,
		&s.PatientID,
		&s.PhysicianID,
		&s.CreatedByUserID,
		&s.ServiceType,
		&s.ScheduledStart,
		&s.DurationMinutes,
		&s.Status,
		&notes,
		&s.CheckedInAt,
		&s.StartedAt,
		&s.CompletedAt,
		&s.CancelledAt,
		&cancelReason,
		&s.NoShowAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if notes != nil {
		s.Notes = *notes
	}
	if cancelReason != nil {
		s.CancelReason = *cancelReason
	}

	apt, err := Reconstitute(s)
	if err != nil {
		return nil, fmt.Errorf("reconstitute appointment %s: %w", s.ID, err)
	}
	return apt, nil
}

func scanAppointments(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()

	var result []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetByPhysician(ctx context.Context, physicianID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE physician_id = $1
		ORDER BY scheduled_start_at ASC
	`, physicianID)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) GetByPhysicianAndDate(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE physician_id = $1
		  AND scheduled_start_at >= $2
		  AND scheduled_start_at <= $3
		ORDER BY scheduled_start_at ASC
	`, physicianID, r.clock.DayStart(date), r.clock.DayEnd(date))
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE 1=1`
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(clause, len(args))
	}

	if filter.PatientID != uuid.Nil {
		add(" AND patient_id = $%d", filter.PatientID)
	}
	if filter.PhysicianID != uuid.Nil {
		add(" AND physician_id = $%d", filter.PhysicianID)
	}
	if filter.Status != "" {
		add(" AND status = $%d", filter.Status)
	}
	if !filter.ScheduledFrom.IsZero() {
		add(" AND scheduled_start_at >= $%d", filter.ScheduledFrom)
	}
	if !filter.ScheduledTo.IsZero() {
		add(" AND scheduled_start_at <= $%d", filter.ScheduledTo)
	}
	query += " ORDER BY scheduled_start_at ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

// Save upserts the appointment. With ExpectedUpdatedAt set, the write is a
// single conditional UPDATE keyed on the stored updated_at: the compare
// and the swap happen in one statement, so a concurrent writer can never
// slip between them. A losing writer gets ErrStaleAppointment.
func (r *PgRepository) Save(ctx context.Context, apt *Appointment, opts SaveOptions) error {
	s := apt.Snapshot()

	if opts.ExpectedUpdatedAt != nil {
		tag, err := r.pool.Exec(ctx, `
			UPDATE appointments
			SET status = $1,
			    notes = $2,
			    scheduled_start_at = $3,
			    duration_minutes = $4,
			    checked_in_at = $5,
			    started_at = $6,
			    completed_at = $7,
			    cancelled_at = $8,
			    cancel_reason = $9,
			    no_show_at = $10,
			    updated_at = $11
			WHERE id = $12
			  AND updated_at = $13
		`,
			s.Status, nullableString(s.Notes), s.ScheduledStart, s.DurationMinutes,
			s.CheckedInAt, s.StartedAt, s.CompletedAt, s.CancelledAt,
			nullableString(s.CancelReason), s.NoShowAt, s.UpdatedAt,
			s.ID, *opts.ExpectedUpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("save appointment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := r.pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, s.ID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("save appointment: %w", err)
			}
			if exists {
				return ErrStaleAppointment
			}
			return ErrAppointmentNotFound
		}
		return nil
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			id, patient_id, physician_id, created_by_user_id, service_type,
			scheduled_start_at, duration_minutes, status, notes,
			checked_in_at, started_at, completed_at, cancelled_at, cancel_reason, no_show_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			notes = EXCLUDED.notes,
			scheduled_start_at = EXCLUDED.scheduled_start_at,
			duration_minutes = EXCLUDED.duration_minutes,
			checked_in_at = EXCLUDED.checked_in_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			cancelled_at = EXCLUDED.cancelled_at,
			cancel_reason = EXCLUDED.cancel_reason,
			no_show_at = EXCLUDED.no_show_at,
			updated_at = EXCLUDED.updated_at
	`,
		s.ID, s.PatientID, s.PhysicianID, s.CreatedByUserID, s.ServiceType,
		s.ScheduledStart, s.DurationMinutes, s.Status, nullableString(s.Notes),
		s.CheckedInAt, s.StartedAt, s.CompletedAt, s.CancelledAt,
		nullableString(s.CancelReason), s.NoShowAt,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) FindOverdueScheduled(ctx context.Context, threshold time.Time) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		  AND scheduled_start_at < $2
		ORDER BY scheduled_start_at ASC
	`, StatusScheduled, threshold)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
