// Package main is the questboard server and its operator CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/phrazzld/questboard-api/internal/config"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/platform/postgres"
)

var (
	cli        = kingpin.New("questboard", "Quest board API server")
	configPath = cli.Flag("config", "Path to a config file (defaults to ./config.yaml when present)").
			Short('c').Envar("QUEST_CONFIG").String()

	serveCmd = cli.Command("serve", "Run the HTTP API and the calibration sweep").Default()

	migrateCmd       = cli.Command("migrate", "Manage the database schema")
	migrateUpCmd     = migrateCmd.Command("up", "Apply all pending migrations")
	migrateDownCmd   = migrateCmd.Command("down", "Roll back the latest migration")
	migrateStatusCmd = migrateCmd.Command("status", "Show migration status")

	inviteCmd = cli.Command("invite", "Issue a signup invite without an administrator")

	promoteCmd   = cli.Command("promote", "Grant administrator rights to a user")
	promoteLogin = promoteCmd.Arg("login", "Login of the user to promote").Required().String()
)

func main() {
	command := kingpin.MustParse(cli.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, command); err != nil {
		fmt.Fprintf(os.Stderr, "questboard: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration, opens the database and dispatches command.
func run(ctx context.Context, command string) error {
	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.Bool("scorer_enabled", cfg.Scorer.URL != ""),
		slog.Bool("cache_enabled", cfg.Cache.RedisAddr != ""))

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", slog.String("error", err.Error()))
		}
	}()

	switch command {
	case migrateUpCmd.FullCommand():
		return postgres.Migrate(ctx, db, "up", log)
	case migrateDownCmd.FullCommand():
		return postgres.Migrate(ctx, db, "down", log)
	case migrateStatusCmd.FullCommand():
		return postgres.Migrate(ctx, db, "status", log)
	}

	app, err := newApplication(ctx, cfg, log, db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	switch command {
	case inviteCmd.FullCommand():
		invite, err := app.services.invites.Bootstrap(ctx)
		if err != nil {
			return err
		}
		fmt.Println(invite.Token)
		return nil
	case promoteCmd.FullCommand():
		user, err := app.services.users.Promote(ctx, *promoteLogin)
		if err != nil {
			return err
		}
		fmt.Printf("%s (id %d) is now an administrator\n", user.Login, user.ID)
		return nil
	default:
		return app.Run(ctx)
	}
}
