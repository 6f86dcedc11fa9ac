package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	appModels "github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/config"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/auth"
)

// Semesters are the six semesters of a degree, in order
var Semesters = []appModels.Semester{
	{Number: 1, Name: "First"},
	{Number: 2, Name: "Second"},
	{Number: 3, Name: "Third"},
	{Number: 4, Name: "Fourth"},
	{Number: 5, Name: "Fifth"},
	{Number: 6, Name: "Sixth"},
}

// SemesterStore upserts semesters
type SemesterStore interface {
	Upsert(ctx context.Context, semester *appModels.Semester) error
}

// FeeStore upserts fee rows
type FeeStore interface {
	Upsert(ctx context.Context, fee *appModels.FeeStructure) error
}

// UserStore creates accounts
type UserStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *appModels.User) (int64, error)
}

// Stores are the repositories seeding writes to
type Stores struct {
	Semesters SemesterStore
	Fees      FeeStore
	Users     UserStore
}

// CreateDefaultData creates semesters, default fees and the admin account when
// they are missing. Every step runs even if an earlier one failed.
func CreateDefaultData(ctx context.Context, stores Stores, cfg *config.Config, lgr zerolog.Logger) error {
	lgr.Info().Msg("Checking/Creating default data (semesters, fees, admin)...")
	var finalErr error

	for _, s := range Semesters {
		semester := s
		if err := stores.Semesters.Upsert(ctx, &semester); err != nil {
			lgr.Error().Err(err).Int("semester", s.Number).Msg("Error creating semester")
			finalErr = errors.Join(finalErr, err)
		}
	}

	for _, f := range cfg.Seed.Fees {
		fee := &appModels.FeeStructure{PaymentType: f.PaymentType, Course: f.Course, Amount: f.Amount}
		if err := stores.Fees.Upsert(ctx, fee); err != nil {
			lgr.Error().Err(err).Str("paymentType", f.PaymentType).Str("course", f.Course).Msg("Error creating fee")
			finalErr = errors.Join(finalErr, err)
		}
	}

	if err := createAdmin(ctx, stores.Users, cfg, lgr); err != nil {
		finalErr = errors.Join(finalErr, err)
	}

	if finalErr == nil {
		lgr.Info().Int("semesters", len(Semesters)).Int("fees", len(cfg.Seed.Fees)).Msg("Default data ready")
	}
	return finalErr
}

func createAdmin(ctx context.Context, users UserStore, cfg *config.Config, lgr zerolog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.Seed.AdminEmail))
	if email == "" || cfg.Seed.AdminPassword == "" {
		lgr.Warn().Msg("Admin seed credentials not set, skipping admin account")
		return nil
	}

	exists, err := users.EmailExists(ctx, email)
	if err != nil {
		lgr.Error().Err(err).Msg("Error checking admin account")
		return err
	}
	if exists {
		return nil
	}

	hash, err := auth.HashPassword(cfg.Seed.AdminPassword)
	if err != nil {
		return err
	}
	id, err := users.Create(ctx, &appModels.User{
		Email:    email,
		Password: hash,
		FullName: cfg.Seed.AdminName,
		RoleType: appModels.RoleAdmin,
		IsActive: true,
	})
	if err != nil {
		lgr.Error().Err(err).Msg("Error creating admin account")
		return err
	}
	lgr.Info().Int64("userID", id).Str("email", email).Msg("Admin account created")
	return nil
}
