package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinagenda/appointment-service/internal/db"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "seed").Logger()

func main() {
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedAreas(context.Background(), pool); err != nil {
		logger.Fatal().Err(err).Msg("seed areas")
	}
	if err := seedClinicians(context.Background(), pool, 20); err != nil {
		logger.Fatal().Err(err).Msg("seed clinicians")
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func seedAreas(ctx context.Context, pool *pgxpool.Pool) error {
	areas := []string{
		"Clinical Psychology",
		"Child and Adolescent",
		"Couples Therapy",
		"Psychiatry",
		"Neuropsychology",
	}

	logger.Info().Int("count", len(areas)).Msg("seeding areas")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, name := range areas {
		_, err := tx.Exec(ctx, `
			INSERT INTO areas (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, uuid.New(), name)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedClinicians(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding clinicians")

	specialties := []string{
		"Psychology",
		"Psychiatry",
		"Child Psychology",
		"Neuropsychology",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO clinicians (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("clinicians seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			// Most patients arrive with an open clinical record; the rest
			// exercise the missing-prerequisite path.
			if gofakeit.Number(0, 9) < 8 {
				_, err := tx.Exec(ctx, `
					INSERT INTO clinical_records (id, patient_id, opened_at, active)
					VALUES ($1, $2, now(), true)
				`, uuid.New(), id)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("seeded", end).Int("total", count).Msg("patients progress")
	}

	logger.Info().Msg("patients seeded")
	return nil
}
