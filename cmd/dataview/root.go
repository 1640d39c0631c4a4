package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataview/internal/config"
	"github.com/JonMunkholm/dataview/internal/gateway"
	"github.com/JonMunkholm/dataview/internal/logging"
	"github.com/JonMunkholm/dataview/internal/tui"
)

// app is the state shared by every command once flags are parsed.
type app struct {
	cfg     *config.ClientConfig
	client  *gateway.Client
	logger  *slog.Logger
	logFile *os.File

	apiURL   string
	pageSize int
	verbose  bool
	asJSON   bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "dataview",
		Short: "Browse uploaded datasets and adjust their column types",
		Long: `dataview uploads a CSV or Excel file to the dataview server, shows the
inferred column types and pages through the rows. Column types can be
changed in place; the server converts the stored values.

Run without a subcommand to open the interactive viewer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runViewer()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api-url", "", "backend base URL (overrides DATAVIEW_API_URL)")
	flags.IntVar(&a.pageSize, "page-size", 0, "rows per page (overrides DATAVIEW_PAGE_SIZE)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr, or to DATAVIEW_LOG_FILE when set")
	flags.BoolVar(&a.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		newUploadCmd(a),
		newPageCmd(a),
		newSetTypeCmd(a),
	)
	return root
}

// setup loads configuration, applies flag overrides and builds the client.
func (a *app) setup(cmd *cobra.Command) error {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	if a.pageSize > 0 {
		cfg.PageSize = a.pageSize
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	// The viewer owns the terminal, so it only ever logs to a file.
	var w io.Writer = io.Discard
	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.logFile = f
		w = f
	case a.verbose && cmd.Parent() != nil:
		w = cmd.ErrOrStderr()
	}
	a.logger = logging.SetupWriter(w, cfg.LogLevel, "text")

	a.client, err = gateway.New(cfg.APIURL,
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithLogger(a.logger),
	)
	return err
}

func (a *app) close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

func (a *app) runViewer() error {
	a.logger.Info("starting viewer", "api_url", a.cfg.APIURL, "page_size", a.cfg.PageSize)

	m := tui.New(a.client, tui.Options{
		PageSize: a.cfg.PageSize,
		Logger:   a.logger,
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	return nil
}
