package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sweepsapp/cache"
	"sweepsapp/config"
	"sweepsapp/database"
	"sweepsapp/models"
	"sweepsapp/services"
	"sweepsapp/sms"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

func connect(ctx context.Context) (*config.Config, *database.Database, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	config.NewLogger(cfg.Server.LogLevel)
	if err := database.ConnectPostgres(cfg); err != nil {
		return nil, nil, err
	}
	db, err := database.NewDatabase()
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, db.Ping(ctx)
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "sweepsctl",
		Short:         "Operator tooling for the sweeps casino backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			database.Close()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "path to config.yml")

	rootCmd.AddCommand(migrateCmd(), createAdminCmd(), seedCmd(), verifyLedgerCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			logrus.Info("✅ Schema applied")
			return nil
		},
	}
}

// readPassword takes ADMIN_PASSWORD when set, otherwise the first line of stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	if p := os.Getenv("ADMIN_PASSWORD"); p != "" {
		return p, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func createAdminCmd() *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a back-office user (password from ADMIN_PASSWORD or stdin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			cfg, db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			auth := services.NewAuthService(db, db, db, services.NewNotifyService(db, sms.LogSender{}), cfg.Auth)
			u, err := auth.CreateAdmin(cmd.Context(), email, password, role)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"id": u.ID, "email": u.Email, "role": u.Role}).Info("✅ Admin created")
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "admin email (required)")
	cmd.Flags().StringVarP(&role, "role", "r", models.RoleAdmin, "admin or support")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load default packages, games and jackpot pools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			notify := services.NewNotifyService(db, sms.LogSender{})
			c := cache.NewMemory()
			s := seeder{
				store:    services.NewStoreService(db, db, notify, cfg.Store),
				games:    services.NewGameService(db, db, c, notify),
				jackpots: services.NewJackpotService(db, c),
			}
			return s.run(cmd.Context())
		},
	}
}

func verifyLedgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-ledger",
		Short: "Check every transaction balances and every wallet matches its entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			_, db, err := connect(ctx)
			if err != nil {
				return err
			}
			check, err := db.CheckLedger(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(check); err != nil {
				return err
			}
			if !check.OK() {
				return errors.New("ledger check failed")
			}
			logrus.Info("✅ Ledger balanced")
			return nil
		},
	}
}
