// Package cli is the qssage command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raysh454/qssage/internal/app"
	"github.com/raysh454/qssage/internal/logging"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	backend    string
	logLevel   string
	dbPath     string
}

// NewRootCommand builds the command tree writing normal output to out and
// logs and diagnostics to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "qssage",
		Short:         "QR-code URL phishing-risk scanner",
		Long:          "qssage opens URLs decoded from QR codes in an instrumented browser and classifies them as SAFE, SUSPICIOUS or DANGEROUS.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (defaults plus environment when empty)")
	pf.StringVar(&opts.backend, "backend", "", "browser backend override (chromedp|nethttp)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level override (debug|info|warn|error)")
	pf.StringVar(&opts.dbPath, "db", "", "report database path override (\":memory:\" for a throwaway store)")

	root.AddCommand(
		newServeCommand(opts),
		newScanCommand(opts),
		newConfigCommand(opts),
	)
	return root
}

// Execute runs the root command against os.Args and exits non-zero on error.
func Execute() {
	root := NewRootCommand(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, then applies flag overrides.
func (o *options) loadConfig() (*app.Config, error) {
	cfg, err := app.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.backend != "" {
		cfg.WebClient.Backend = o.backend
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.dbPath != "" {
		cfg.Store.Path = o.dbPath
	}
	return cfg, nil
}

func newLogger(cfg *app.Config, w io.Writer) logging.Logger {
	return logging.NewLogger("qssage", w, logging.ParseLevel(cfg.Log.Level))
}
