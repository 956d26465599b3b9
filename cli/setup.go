package cli

import (
	"database/sql"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/folio/portfolio/config"
	"github.com/folio/portfolio/utils"
)

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Provision the database and schema",
		Long:  "Create the database if it is missing, migrate the comments table and report every table with its row count.",
		Args:  cobra.NoArgs,
		RunE:  runSetup,
	}
}

func runSetup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := utils.NewConsoleLogger(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	out := cmd.OutOrStdout()
	name := config.DatabaseName(cfg)

	server, err := sql.Open("mysql", config.ServerDSN(cfg))
	if err != nil {
		return fmt.Errorf("connect mysql server: %w", err)
	}
	defer server.Close()
	if err := server.PingContext(cmd.Context()); err != nil {
		return fmt.Errorf("connect mysql server: %w", err)
	}
	fmt.Fprintln(out, "Connected to MySQL server")

	if err := config.CreateDatabase(cmd.Context(), server, name); err != nil {
		return err
	}
	fmt.Fprintf(out, "Database %q ready\n", name)

	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	fmt.Fprintln(out, "Schema migrated")

	tables, err := config.TableReport(db)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tROWS")
	for _, t := range tables {
		fmt.Fprintf(tw, "%s\t%d\n", t.Name, t.Rows)
	}
	return tw.Flush()
}
