package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camrelay/internal/config"
	"github.com/smazurov/camrelay/internal/records"
	"github.com/spf13/cobra"
)

// CreateRecordsCmd creates the records command and its subcommands.
func CreateRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect the recognition record log",
	}
	cmd.PersistentFlags().String("csv", "", "Record log to read (defaults to records.csv_path)")
	cmd.PersistentFlags().String("label-map", "", "Label map to read (defaults to records.label_map_path)")

	cmd.AddCommand(createRecordsStatsCmd(), createRecordsListCmd(), createRecordsLabelCmd())
	return cmd
}

func createRecordsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print attendance statistics as JSON",
		Args:  cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, opts *config.Options) {
			csvPath, labelPath := recordPaths(cmd, opts)
			recs, err := records.Load(csvPath)
			if err != nil {
				exitWith("Failed to read records", err)
			}
			labels, err := loadLabels(labelPath)
			if err != nil {
				exitWith("Failed to read label map", err)
			}
			if err := writeJSON(cmd.OutOrStdout(), records.ComputeStats(recs, labels)); err != nil {
				exitWith("Failed to write stats", err)
			}
		}),
	}
}

func createRecordsListCmd() *cobra.Command {
	var filter records.Filter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of records, newest first, as JSON",
		Args:  cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, opts *config.Options) {
			csvPath, _ := recordPaths(cmd, opts)
			recs, err := records.Load(csvPath)
			if err != nil {
				exitWith("Failed to read records", err)
			}
			if err := writeJSON(cmd.OutOrStdout(), records.Query(recs, filter)); err != nil {
				exitWith("Failed to write records", err)
			}
		}),
	}
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only records with this status (MATCH, UNKNOWN, ...)")
	cmd.Flags().StringVar(&filter.Q, "q", "", "Case-insensitive substring of the matched name")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&filter.PageSize, "page-size", records.DefaultPageSize, "Records per page")
	return cmd
}

func createRecordsLabelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "label <id> <name>",
		Short: "Set the display name of an identity in the label map",
		Long: `Writes the label map atomically. A running server picks the change up ` +
			`without a restart.`,
		Args: cobra.ExactArgs(2),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *config.Options) {
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				exitWith("Identity must be an integer", err)
			}
			_, labelPath := recordPaths(cmd, opts)
			labels, err := loadLabels(labelPath)
			if err != nil {
				exitWith("Failed to read label map", err)
			}
			labels[args[0]] = args[1]
			if err := records.SaveLabelMap(labelPath, labels); err != nil {
				exitWith("Failed to write label map", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], args[1])
		}),
	}
}

func recordPaths(cmd *cobra.Command, opts *config.Options) (string, string) {
	return flagOr(cmd, "csv", opts.RecordsCSVPath), flagOr(cmd, "label-map", opts.RecordsLabelMapPath)
}

// flagOr returns the value of a flag inherited from the records command, or
// fallback when it was left empty.
func flagOr(cmd *cobra.Command, name, fallback string) string {
	if f := cmd.Flag(name); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	return fallback
}

// loadLabels treats a missing label map as empty.
func loadLabels(path string) (map[string]string, error) {
	labels, err := records.LoadLabelMap(path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	return labels, err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exitWith(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
