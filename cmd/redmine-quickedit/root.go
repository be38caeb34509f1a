package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jbeckham/redmine-quickedit/internal/config"
	"github.com/jbeckham/redmine-quickedit/internal/fields"
	"github.com/jbeckham/redmine-quickedit/internal/page"
	"github.com/jbeckham/redmine-quickedit/internal/redmine"
	"github.com/jbeckham/redmine-quickedit/internal/relay"
	"github.com/jbeckham/redmine-quickedit/internal/tui"
)

var (
	configDir string
	logLevel  string
	pageFile  string
)

var rootCmd = &cobra.Command{
	Use:   "redmine-quickedit [issue]",
	Short: "Edit Redmine issue fields in place",
	Long: `Shows a Redmine issue page in the terminal and edits its attributes in place.

Double-click a field label, or tab to it and press enter, to edit it.
Enter saves, esc cancels.

The issue is an id, "#id" or an issue URL.

Examples:
  redmine-quickedit 123
  redmine-quickedit https://redmine.example.com/issues/123
  redmine-quickedit --page saved-issue.html 123`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runTUI,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())
	rootCmd.Flags().StringVar(&pageFile, "page", "", "edit a saved issue page instead of rendering the issue")
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVar(&configDir, "config-dir", "", "configuration directory (default "+config.DirName+" next to the executable)")
	fs.StringVar(&logLevel, "log-level", "", "debug, info, warn or error; overrides log.level")
}

func runTUI(cmd *cobra.Command, args []string) error {
	dir, err := resolveConfigDir()
	if err != nil {
		return err
	}
	if !config.DirExists(dir) {
		return initAndExplain(cmd.OutOrStdout(), dir)
	}
	if len(args) == 0 && pageFile == "" {
		return errors.New("an issue id or URL is required")
	}

	var issueID int
	if len(args) == 1 {
		if issueID, err = parseIssueRef(args[0]); err != nil {
			return err
		}
	}

	e, err := loadEnv(dir)
	if err != nil {
		return err
	}
	defer e.close()

	opts := tui.Options{
		IssueID:  issueID,
		Registry: fields.Default(),
		Editor:   e.cfg.EditorOptions(),
		Render:   e.cfg.RenderOptions(),
		Logger:   e.logger,
	}
	if issueID != 0 {
		opts.IssueURL, _ = e.client.IssueURL(cmd.Context(), issueID)
	}
	if pageFile != "" {
		opts.Load = fileLoader(pageFile, issueID)
		changes, stop, err := watchPage(pageFile, e.logger)
		if err != nil {
			e.logger.Warn("page will not reload on change", "err", err)
		} else {
			defer stop()
			opts.Changes = changes
		}
	}

	e.logger.Info("starting", "issue", issueID, "page", pageFile)
	p := tea.NewProgram(tui.NewApp(e.relay, opts), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}

// initAndExplain creates dir and prints what to fill in before the first run.
func initAndExplain(w io.Writer, dir string) error {
	if err := config.Init(dir); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	fmt.Fprintf(w, "Created %s/\n\n", dir)
	fmt.Fprintln(w, "To get started:")
	fmt.Fprintf(w, "  1. Edit %s with your Redmine URL\n", config.ConfigPath(dir))
	fmt.Fprintf(w, "  2. Edit %s with your API access key\n", config.SecretsPath(dir))
	fmt.Fprintln(w, "     (shown under \"My account\" once the REST web service is enabled)")
	fmt.Fprintln(w, "  3. Run redmine-quickedit again")
	return nil
}

func resolveConfigDir() (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	return config.DefaultConfigDir()
}

// env is what every tracker command needs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	client *redmine.Client
	relay  *relay.Relay
	close  func() error
}

func loadEnv(dir string) (*env, error) {
	cfg, err := config.Load(config.ConfigPath(dir), config.SecretsPath(dir))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, closeLog, err := openLogger(dir, cfg.Log)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	// Credentials are re-read for every request so key changes apply without
	// a restart.
	client := redmine.NewClient(config.NewFileSource(dir), redmine.WithLogger(logger))
	return &env{
		cfg:    cfg,
		logger: logger,
		client: client,
		relay:  relay.New(client, logger),
		close:  closeLog,
	}, nil
}

// openLogger builds the debug logger. A relative log file lives in dir; no
// file discards everything.
func openLogger(dir string, lc config.LogConfig) (*slog.Logger, func() error, error) {
	name := lc.Level
	if logLevel != "" {
		name = logLevel
	}
	level, err := config.ParseLevel(name)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	if lc.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() error { return nil }, nil
	}
	path := lc.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, opts)), f.Close, nil
}

var issuePathRe = regexp.MustCompile(`/issues/(\d+)`)

// parseIssueRef reads "123", "#123" or an issue URL.
func parseIssueRef(ref string) (int, error) {
	s := strings.TrimSpace(ref)
	if m := issuePathRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	id, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid issue %q: want an id, #id or issue URL", ref)
	}
	return id, nil
}

// fileLoader reads a saved issue page on every load. The page is treated as
// /issues/<issueID>; without an id editing stays disabled.
func fileLoader(path string, issueID int) func(context.Context) (*page.Document, error) {
	var urlPath string
	if issueID != 0 {
		urlPath = fmt.Sprintf("/issues/%d", issueID)
	}
	return func(context.Context) (*page.Document, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening page: %w", err)
		}
		defer f.Close()
		return page.Parse(f, urlPath)
	}
}
