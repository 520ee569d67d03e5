package authctl

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"otp-auth-backend/internal/config"
	"otp-auth-backend/internal/domain"
	"otp-auth-backend/internal/repository"
	"otp-auth-backend/internal/security"
	"otp-auth-backend/internal/tools/common"
)

// NewRootCommand builds the authctl command tree. Every subcommand opens its
// own database handle from the environment, the same way the server does.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Operational tasks for the auth backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCreateUserCommand())
	root.AddCommand(newDeactivateUserCommand())
	root.AddCommand(newRevokeSessionsCommand())
	root.AddCommand(newCleanupSessionsCommand())
	return root
}

func newCreateUserCommand() *cobra.Command {
	var (
		email     string
		password  string
		firstName string
		lastName  string
		admin     bool
	)
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an active user account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			hash, err := security.HashPassword(password)
			if err != nil {
				return err
			}
			user := &domain.User{
				Email:        domain.NormalizeEmail(email),
				PasswordHash: hash,
				FirstName:    firstName,
				LastName:     lastName,
				IsActive:     true,
				IsAdmin:      admin,
			}
			if err := repository.NewUserRepository(db).Create(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", user.ID, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin flag")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newDeactivateUserCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "deactivate-user",
		Short: "Soft-delete a user and revoke every live session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			users := repository.NewUserRepository(db)
			user, err := users.FindByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}
			if err := users.Deactivate(cmd.Context(), user.ID); err != nil {
				return err
			}
			revoked, err := repository.NewSessionRepository(db).RevokeByUserID(cmd.Context(), user.ID, "user_deactivated")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deactivated user %d, revoked %d sessions\n", user.ID, revoked)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRevokeSessionsCommand() *cobra.Command {
	var (
		email  string
		reason string
	)
	cmd := &cobra.Command{
		Use:   "revoke-sessions",
		Short: "Revoke every live refresh token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			user, err := repository.NewUserRepository(db).FindByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}
			revoked, err := repository.NewSessionRepository(db).RevokeByUserID(cmd.Context(), user.ID, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d sessions for user %d\n", revoked, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&reason, "reason", "admin_revoke", "revocation reason recorded on each session")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newCleanupSessionsCommand() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup-sessions",
		Short: "Delete session rows whose tokens expired long ago",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			cutoff := time.Now().Add(-olderThan)
			deleted, err := repository.NewSessionRepository(db).CleanupExpired(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired sessions\n", deleted)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "keep sessions that expired within this window")
	return cmd
}

func openDatabase(ctx context.Context) (*gorm.DB, error) {
	if err := common.LoadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	default:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
