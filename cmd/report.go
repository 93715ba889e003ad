package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/reflectscan-tool/internal/cache"
	"github.com/reflectscan-tool/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reportCmd = &cobra.Command{
	Use:   "report [scan-id]",
	Short: "Render a stored scan in any report format",
	Long: `Re-render the results of an earlier scan. Without a scan id the
stored scans are listed. --delete removes a stored scan instead.

Formats: terminal, html, json, yaml, csv, markdown

Examples:
  reflectscan report
  reflectscan report 0b6f2f4e-4a55-4c1b-9a57-0d2f8f1c9e10
  reflectscan report 0b6f2f4e-4a55-4c1b-9a57-0d2f8f1c9e10 --format html --out report.html
  reflectscan report 0b6f2f4e-4a55-4c1b-9a57-0d2f8f1c9e10 --delete`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("format", "terminal", "report format (terminal,html,json,yaml,csv,markdown)")
	reportCmd.Flags().StringP("out", "o", "", "write the report to this file instead of stdout")
	reportCmd.Flags().Bool("delete", false, "delete the stored scan")

	viper.BindPFlag("report.format", reportCmd.Flags().Lookup("format"))
	viper.BindPFlag("report.out", reportCmd.Flags().Lookup("out"))
	viper.BindPFlag("report.delete", reportCmd.Flags().Lookup("delete"))
}

func runReport(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(viper.GetString("report.format"))
	if err != nil {
		return err
	}

	store, err := cache.NewManager(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open scan store: %w", err)
	}

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		ids, err := store.ListScans(ctx)
		if err != nil {
			return fmt.Errorf("failed to list scans: %w", err)
		}
		if len(ids) == 0 {
			fmt.Fprintln(out, "No stored scans.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	if viper.GetBool("report.delete") {
		err := store.DeleteScan(ctx, args[0])
		if errors.Is(err, cache.ErrCacheMiss) {
			return fmt.Errorf("scan %s not found (expired or never stored)", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "[+] Deleted scan %s\n", args[0])
		return nil
	}

	results, err := store.LoadScan(ctx, args[0])
	if errors.Is(err, cache.ErrCacheMiss) {
		return fmt.Errorf("scan %s not found (expired or never stored)", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to load scan %s: %w", args[0], err)
	}

	gen := report.NewGenerator(log)
	if path := viper.GetString("report.out"); path != "" {
		if err := gen.WriteFile(path, results, format); err != nil {
			return err
		}
		fmt.Fprintf(out, "[+] %s report saved to %s\n", format, path)
		return nil
	}

	if err := gen.Write(out, results, format); err != nil {
		return err
	}
	if format == report.FormatTerminal {
		fmt.Fprintln(out)
		return report.RenderSummary(out, results)
	}
	return nil
}
