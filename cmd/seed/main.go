package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinova/clinic-scheduling/internal/clinic"
	"github.com/clinova/clinic-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	physicianIDs, err := seedPhysicians(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed physicians: %v", err)
	}
	patientIDs, err := seedPatients(context.Background(), pool, 500)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, physicianIDs, patientIDs, 400); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedPhysicians(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d physicians", count)

	// A few realistic shift patterns: weekdays, plus some weekend coverage.
	patterns := []struct {
		days       []int32
		start, end string
	}{
		{[]int32{1, 2, 3, 4, 5}, "09:00", "17:00"},
		{[]int32{1, 2, 3, 4, 5}, "08:00", "16:00"},
		{[]int32{1, 3, 5}, "10:00", "18:00"},
		{[]int32{2, 4, 6}, "09:00", "13:00"},
		{[]int32{0, 6}, "10:00", "16:00"},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		p := patterns[gofakeit.Number(0, len(patterns)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO physicians (id, display_name, working_days, hours_start, hours_end, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, id, name, p.days, p.start, p.end)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, email)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

var seedServices = []clinic.ServiceType{
	clinic.ServiceNewPatientVisit,
	clinic.ServiceFollowUpVisit,
	clinic.ServiceAnnualPhysical,
	clinic.ServiceSickVisit,
	clinic.ServiceVaccination,
	clinic.ServiceLabDraw,
	clinic.ServiceTelehealthVisit,
}

// seedAppointments writes future SCHEDULED bookings through the aggregate
// and repository, so every seeded row satisfies the domain invariants.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, physicians, patients []uuid.UUID, count int) error {
	log.Printf("seeding %d appointments", count)

	clock := clinic.ClinicTime{}
	repo := clinic.NewPgRepository(pool, clock)
	frontDesk := uuid.New()

	created := 0
	for attempts := 0; created < count && attempts < count*3; attempts++ {
		physician := physicians[gofakeit.Number(0, len(physicians)-1)]
		patient := patients[gofakeit.Number(0, len(patients)-1)]
		service := seedServices[gofakeit.Number(0, len(seedServices)-1)]

		daysAhead := gofakeit.Number(1, 14)
		hour := gofakeit.Number(9, 16)
		minute := gofakeit.Number(0, 5) * 10
		start := time.Now().UTC().AddDate(0, 0, daysAhead).Truncate(24 * time.Hour).
			Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)

		apt, err := clinic.NewScheduled(clinic.ScheduleParams{
			PatientID:       patient,
			PhysicianID:     physician,
			CreatedByUserID: frontDesk,
			ServiceType:     service,
			StartAt:         start,
			DurationMinutes: service.DefaultDurationMinutes(),
		})
		if err != nil {
			return err
		}

		if err := repo.Save(ctx, apt, clinic.SaveOptions{}); err != nil {
			return err
		}
		created++
	}

	log.Printf("created %d appointments", created)
	return nil
}
