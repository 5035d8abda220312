package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgPhysicianDirectory reads physician schedule profiles from the
// physicians table. It is deliberately read-only: user management is a
// different system, the scheduler only needs the schedule capability.
type PgPhysicianDirectory struct {
	pool *pgxpool.Pool
}

func NewPgPhysicianDirectory(pool *pgxpool.Pool) *PgPhysicianDirectory {
	return &PgPhysicianDirectory{pool: pool}
}

func scanPhysician(row pgx.Row) (*PhysicianProfile, error) {
	var p PhysicianProfile
	var days []int32

	err := row.Scan(
		&p.ID,
		&p.DisplayName,
		&days,
		&p.Schedule.HoursStart,
		&p.Schedule.HoursEnd,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPhysicianNotFound
		}
		return nil, err
	}

	p.Schedule.WorkingDays = make([]time.Weekday, 0, len(days))
	for _, d := range days {
		p.Schedule.WorkingDays = append(p.Schedule.WorkingDays, time.Weekday(d))
	}
	return &p, nil
}

func (d *PgPhysicianDirectory) GetPhysician(ctx context.Context, id uuid.UUID) (*PhysicianProfile, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, display_name, working_days, hours_start, hours_end
		FROM physicians
		WHERE id = $1
	`, id)
	return scanPhysician(row)
}

func (d *PgPhysicianDirectory) ListPhysicians(ctx context.Context) ([]PhysicianProfile, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, display_name, working_days, hours_start, hours_end
		FROM physicians
		ORDER BY display_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PhysicianProfile
	for rows.Next() {
		p, err := scanPhysician(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
