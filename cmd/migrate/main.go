package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"reportbot/migrations"
)

func main() {
	_ = godotenv.Load()

	var dbPath string
	rootCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the report bot database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", envOrDefault("DATABASE_PATH", "./data/bot.db"), "path to sqlite database")

	commands := []struct {
		use   string
		short string
		run   func(db *sql.DB, dir string) error
	}{
		{"up", "Migrate to the latest version", func(db *sql.DB, dir string) error { return goose.Up(db, dir) }},
		{"up-one", "Migrate one version up", func(db *sql.DB, dir string) error { return goose.UpByOne(db, dir) }},
		{"down", "Roll back one version", func(db *sql.DB, dir string) error { return goose.Down(db, dir) }},
		{"status", "Show migration status", func(db *sql.DB, dir string) error { return goose.Status(db, dir) }},
		{"version", "Show current version", func(db *sql.DB, dir string) error { return goose.Version(db, dir) }},
		{"reset", "Roll back all migrations", func(db *sql.DB, dir string) error { return goose.Reset(db, dir) }},
	}
	for _, c := range commands {
		run := c.run
		rootCmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(dbPath, cmd.Name(), run)
			},
		})
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed).Sprint("error:"), err)
		os.Exit(1)
	}
}

func migrate(dbPath, name string, run func(db *sql.DB, dir string) error) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Setup(); err != nil {
		return err
	}
	if err := run(db, "."); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Printf("%s %s (%s)\n", color.New(color.FgGreen).Sprint("OK"), name, dbPath)
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
