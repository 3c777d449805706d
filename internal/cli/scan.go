package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/raysh454/qssage/internal/app"
	"github.com/raysh454/qssage/internal/assessor"
)

func newScanCommand(opts *options) *cobra.Command {
	var (
		location string
		asJSON   bool
		verbose  bool
	)
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan one URL in-process and print the verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if opts.logLevel == "" {
				cfg.Log.Level = "warn"
			}
			a, err := app.NewApplication(cfg, newLogger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.Scan.SideEffectTimeout+time.Second)
				defer cancel()
				_ = a.Shutdown(ctx)
			}()

			var observe app.StateObserver
			if verbose {
				errOut := cmd.ErrOrStderr()
				observe = func(id string, s app.State) { fmt.Fprintf(errOut, "[%s] %s\n", id[:8], s) }
			}
			res, err := a.Orchestrator.Scan(cmd.Context(), app.ScanRequest{URL: args[0], Location: location}, observe)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&location, "location", "", "where the QR code was found, stored on automatic reports")
	f.BoolVar(&asJSON, "json", false, "print the full result as JSON")
	f.BoolVarP(&verbose, "verbose", "v", false, "print state transitions to stderr")
	return cmd
}

func riskColor(r assessor.Risk) *color.Color {
	switch r {
	case assessor.RiskSafe:
		return color.New(color.FgGreen, color.Bold)
	case assessor.RiskSuspicious:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func printResult(w io.Writer, res *app.ScanResult) {
	gray := color.New(color.FgHiBlack)

	_, _ = riskColor(res.Risk).Fprintf(w, "%s", res.Risk)
	fmt.Fprintf(w, "  %s\n", res.URL)
	fmt.Fprintf(w, "  reason: %s\n", res.Reason)

	if len(res.Chain) > 1 {
		fmt.Fprintf(w, "  chain:  %s\n", strings.Join(res.Chain, " -> "))
	}
	if a := res.Assessment; a != nil {
		fmt.Fprintf(w, "  score:  %d\n", a.Score)
		for _, f := range a.Findings {
			_, _ = gray.Fprintf(w, "    %+4d  %-22s %s\n", f.Contribution, f.Code, f.Message)
		}
	}
	if res.NavigationError != "" {
		_, _ = gray.Fprintf(w, "  navigation: %s\n", res.NavigationError)
	}
	if res.ReportQueued {
		fmt.Fprintln(w, "  report filed")
	}
	_, _ = gray.Fprintf(w, "  scan %s in %dms\n", res.ScanID, res.ElapsedMS)
}
