package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/franz/gym-league/internal/store"
	"github.com/franz/gym-league/internal/util"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and repair the database schema",
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "List differences between the live and declared schema",
	Long: `Compare the live database with the declared schema without changing it.

Exits non-zero when any difference is found.`,
	Args: cobra.NoArgs,
	RunE: runSchemaValidate,
}

var schemaInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show tables, row counts and their state",
	Args:  cobra.NoArgs,
	RunE:  runSchemaInfo,
}

var schemaFixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Rebuild the whole database file with the declared schema",
	Args:  cobra.NoArgs,
	RunE:  runSchemaFix,
}

var schemaRebuildCmd = &cobra.Command{
	Use:   "rebuild [table]",
	Short: "Rebuild one table, or every table in foreign-key order",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchemaRebuild,
}

var schemaNukeCmd = &cobra.Command{
	Use:   "nuke",
	Short: "Back up the database, then recreate it empty",
	Args:  cobra.NoArgs,
	RunE:  runSchemaNuke,
}

var schemaDumpCmd = &cobra.Command{
	Use:   "dump <table>",
	Short: "Print the rows of a table as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaDump,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaValidateCmd, schemaInfoCmd, schemaFixCmd, schemaRebuildCmd, schemaNukeCmd, schemaDumpCmd)

	schemaInfoCmd.Flags().Bool("json", false, "print the summary as JSON")
	schemaNukeCmd.Flags().Bool("yes", false, "confirm that all league data should be discarded")
	schemaDumpCmd.Flags().Int("limit", 50, "maximum rows to print (0 = all)")
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	badColor  = color.New(color.FgRed, color.Bold)
)

func stateColor(state store.TableState) *color.Color {
	switch state {
	case store.StateCompatible:
		return okColor
	case store.StateMissing, store.StateAdditiveGap:
		return warnColor
	}
	return badColor
}

func runSchemaValidate(cmd *cobra.Command, args []string) error {
	s, closeStore, err := openStore(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer closeStore()

	issues, err := s.ValidateSchema(cmd.Context())
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		util.SuccessLog("Schema matches (%d tables)", len(s.Schema().TableNames()))
		return nil
	}

	out := cmd.OutOrStdout()
	for _, issue := range issues {
		c := warnColor
		if issue.Rebuild {
			c = badColor
		}
		fmt.Fprintf(out, "%s %s\n", c.Sprintf("[%s]", issue.Kind), issue)
	}
	return fmt.Errorf("%d schema issues found", len(issues))
}

func runSchemaInfo(cmd *cobra.Command, args []string) error {
	s, closeStore, err := openStore(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer closeStore()

	info, err := s.SchemaInfo(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintf(out, "Database: %s\n\n", info.Path)
	fmt.Fprintf(out, "%-20s %-20s %8s %12s\n", "TABLE", "STATE", "COLUMNS", "ROWS")
	for _, t := range info.Tables {
		state := string(t.State)
		c := stateColor(t.State)
		if !t.Declared {
			state, c = "unused", warnColor
		}
		fmt.Fprintf(out, "%-20s %s %8d %12s\n", t.Name, c.Sprintf("%-20s", state), t.Columns, humanize.Comma(t.Rows))
	}
	if len(info.NeedsRebuild) > 0 {
		fmt.Fprintf(out, "\nNeeds rebuild: %s\n", strings.Join(info.NeedsRebuild, ", "))
	}
	if len(info.Unused) > 0 {
		fmt.Fprintf(out, "Unused: %s\n", strings.Join(info.Unused, ", "))
	}
	return nil
}

func runSchemaFix(cmd *cobra.Command, args []string) error {
	s, closeStore, err := openStore(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer closeStore()

	return fixDatabase(cmd.Context(), s)
}

func runSchemaRebuild(cmd *cobra.Command, args []string) error {
	s, closeStore, err := openStore(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer closeStore()

	if len(args) == 1 {
		if err := s.ForceRebuildTable(cmd.Context(), args[0]); err != nil {
			return err
		}
		util.SuccessLog("Rebuilt %s", args[0])
		return nil
	}

	order, err := s.ForceRebuildAll(cmd.Context())
	if err != nil {
		return err
	}
	util.SuccessLog("Rebuilt %d tables: %s", len(order), strings.Join(order, ", "))
	return nil
}

func runSchemaNuke(cmd *cobra.Command, args []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return fmt.Errorf("refusing to discard all data without --yes")
	}
	if !util.FileExists(util.GetDBPath()) {
		return fmt.Errorf("no database at %s", util.GetDBPath())
	}

	s, closeStore, err := openStore(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer closeStore()

	backup, err := s.NukeAndRecreate(cmd.Context())
	if err != nil {
		return err
	}
	if fi, err := os.Stat(backup); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", backup, humanize.Bytes(uint64(fi.Size())))
	}
	return nil
}

func runSchemaDump(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	s, closeStore, err := openStore(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer closeStore()

	rows, err := s.Rows(cmd.Context(), args[0], limit)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []store.Row{}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
