package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/models/dto"
	appRepos "github.com/00Thor/CCPUR-sub000/internal/app/repositories"
	appServices "github.com/00Thor/CCPUR-sub000/internal/app/services"
	"github.com/00Thor/CCPUR-sub000/internal/bootstrap"
	"github.com/00Thor/CCPUR-sub000/internal/config"
	"github.com/00Thor/CCPUR-sub000/internal/db"
)

var configPath string

// session is the config, logger and database shared by the commands
type session struct {
	cfg      *config.Config
	logger   zerolog.Logger
	database *db.PostgresDB
}

func openSession() (*session, error) {
	if configPath != "" {
		if err := os.Setenv(bootstrap.ConfigPathEnv, configPath); err != nil {
			return nil, err
		}
	}
	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger("portalctl")
	if err != nil {
		return nil, err
	}
	database, err := bootstrap.OpenDatabase(cfg, lgr)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: lgr, database: database}, nil
}

func (s *session) Close() {
	s.database.Close()
}

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()
			if dir != "" {
				s.cfg.Server.MigrationsDir = dir
			}
			return bootstrap.Migrate(cmd.Context(), s.cfg, s.database, s.logger)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (overrides server.migrations_dir)")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create semesters, default fees and the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()
			return bootstrap.Seed(cmd.Context(), s.cfg, s.database, s.logger)
		},
	}
}

func newCreateUserCmd() *cobra.Command {
	var req dto.CreateUserRequest
	var role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an active account without email verification",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			req.Role = models.RoleType(strings.ToLower(role))
			repos := appRepos.NewRepositories(s.database.Pool)
			// CreateUser touches only the user repository
			svc := appServices.NewAuthService(repos.UserRepository, repos.PasswordResetTokenRepository, s.database,
				nil, nil, nil, appServices.AuthConfig{}, s.logger)
			user, err := svc.CreateUser(cmd.Context(), &req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (id %d)\n", user.RoleType, user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&req.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Password, "password", "", "Initial password")
	cmd.Flags().StringVar(&role, "role", string(models.RoleStaff), "student, staff or admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Maintenance jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run <job>",
		Short: "Run a maintenance job once (reset_token_cleanup, blob_deletion_retry, payment_expiry)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			rdb, err := bootstrap.NewRedisClient(cmd.Context(), s.cfg, s.logger)
			if err != nil {
				return err
			}
			defer rdb.Close()

			deps, err := bootstrap.BuildDependencies(cmd.Context(), s.cfg, s.database, rdb, s.logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			n, err := deps.Scheduler.RunNow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d affected\n", args[0], n)
			return nil
		},
	})
	return cmd
}
