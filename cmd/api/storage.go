package main

import (
	"context"
	"fmt"
	"time"

	"campusres/internal/config"
	"campusres/internal/database"
	"campusres/internal/database/postgres"
	"campusres/internal/domain"
	"campusres/internal/models"
	"campusres/internal/repository"
	"campusres/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// storage is one backend seen through the repository interfaces.
type storage struct {
	reservations domain.ReservationStore
	catalog      domain.CatalogRepository
	users        domain.UserRepository
	reports      domain.ReportRepository

	seedReservations func(ctx context.Context, rs []models.Reservation) error
	close            func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		store := repository.NewMemoryReservationStore()
		return &storage{
			reservations: store,
			catalog:      repository.NewMemoryCatalog(),
			users:        repository.NewMemoryUserRepository(),
			reports:      repository.NewMemoryReportRepository(),
			seedReservations: func(_ context.Context, rs []models.Reservation) error {
				return store.Seed(rs)
			},
			close: func() {},
		}, nil

	case config.DriverSQLite:
		db, err := database.NewDB(cfg.Storage.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		backup := database.NewBackupService(db, cfg.Storage.SQLite.Path, cfg.Backup, logger)
		go backup.Start(ctx)
		return &storage{
			reservations: db,
			catalog:      db,
			users:        db,
			reports:      db,
			seedReservations: func(ctx context.Context, rs []models.Reservation) error {
				for _, r := range rs {
					if err := db.SeedReservation(ctx, r); err != nil {
						return err
					}
				}
				return nil
			},
			close: func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		store, err := postgres.Connect(ctx, cfg.Storage.Postgres.DSN(), logger)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, store.Pool(), cfg.Storage.Postgres.MigrationTable); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &storage{
			reservations: store,
			catalog:      store,
			users:        store,
			reports:      store,
			seedReservations: func(ctx context.Context, rs []models.Reservation) error {
				for _, r := range rs {
					if err := store.SeedReservation(ctx, r); err != nil {
						return err
					}
				}
				return nil
			},
			close: store.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// seed loads the catalog file into an empty store. A store that already has
// users is left untouched.
func seed(ctx context.Context, st *storage, catalog *config.Catalog, logger *zerolog.Logger) error {
	existing, err := st.users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(existing) > 0 {
		logger.Info().Int("users", len(existing)).Msg("store already seeded")
		return nil
	}

	for i := range catalog.Categories {
		if err := st.catalog.SaveCategory(ctx, &catalog.Categories[i]); err != nil {
			return fmt.Errorf("seed category %d: %w", catalog.Categories[i].ID, err)
		}
	}
	for i := range catalog.Equipment {
		e := &catalog.Equipment[i]
		if e.Status == "" {
			e.Status = models.EquipmentAvailable
		}
		if err := st.catalog.SaveEquipment(ctx, e); err != nil {
			return fmt.Errorf("seed equipment %d: %w", e.ID, err)
		}
	}
	for i := range catalog.SpaceTypes {
		if err := st.catalog.SaveSpaceType(ctx, &catalog.SpaceTypes[i]); err != nil {
			return fmt.Errorf("seed space type %d: %w", catalog.SpaceTypes[i].ID, err)
		}
	}
	for i := range catalog.Spaces {
		if err := st.catalog.SaveSpace(ctx, &catalog.Spaces[i]); err != nil {
			return fmt.Errorf("seed space %d: %w", catalog.Spaces[i].ID, err)
		}
	}

	for _, su := range catalog.Users {
		hash, err := service.HashPassword(su.Password, bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", su.Email, err)
		}
		u := &models.User{
			ID:             su.ID,
			FullName:       su.FullName,
			Email:          su.Email,
			PasswordHash:   hash,
			Role:           su.Role,
			TelegramChatID: su.TelegramChatID,
		}
		if err := st.users.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", su.Email, err)
		}
	}

	now := time.Now()
	if err := st.seedReservations(ctx, catalog.ReservationsAt(now)); err != nil {
		return fmt.Errorf("seed reservations: %w", err)
	}

	for _, sr := range catalog.Reports {
		status := sr.Status
		if status == "" {
			status = models.ReportOpen
		}
		rep := &models.Report{
			ID:          sr.ID,
			Title:       sr.Title,
			Description: sr.Description,
			RequesterID: sr.RequesterID,
			Status:      status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := st.reports.CreateReport(ctx, rep); err != nil {
			return fmt.Errorf("seed report %d: %w", sr.ID, err)
		}
	}

	logger.Info().
		Int("equipment", len(catalog.Equipment)).
		Int("spaces", len(catalog.Spaces)).
		Int("users", len(catalog.Users)).
		Int("reservations", len(catalog.Reservations)).
		Msg("catalog seeded")
	return nil
}
