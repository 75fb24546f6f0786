package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/oklog/ulid/v2"
	"github.com/schollz/progressbar/v3"

	"github.com/haukened/tf-spf-audit/internal/audit/common/clock"
	"github.com/haukened/tf-spf-audit/internal/audit/common/log"
	"github.com/haukened/tf-spf-audit/internal/audit/common/textmatch"
	"github.com/haukened/tf-spf-audit/internal/audit/config"
	"github.com/haukened/tf-spf-audit/internal/audit/domain"
	"github.com/haukened/tf-spf-audit/internal/audit/gateways/github"
	"github.com/haukened/tf-spf-audit/internal/audit/gateways/liveprobe"
	"github.com/haukened/tf-spf-audit/internal/audit/gateways/report"
	"github.com/haukened/tf-spf-audit/internal/audit/repos/cfrecord"
	"github.com/haukened/tf-spf-audit/internal/audit/repos/history"
	"github.com/haukened/tf-spf-audit/internal/audit/services/auditor"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "spf-audit"

	// Exit codes
	exitClean      = 0
	exitFailure    = 1
	exitViolations = 2
)

// Application holds all the components of one audit run.
type Application struct {
	config  *config.AppConfig
	runID   string
	clock   clock.Clock
	logger  log.Logger
	stderr  io.Writer
	auditor *auditor.Auditor
	writer  *report.Writer

	// Optional components; nil when disabled.
	history   *history.Store
	prober    *liveprobe.Prober
	commenter *github.Commenter

	bar *progressbar.ProgressBar
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one audit and returns the process exit code.
func run(args []string) int {
	// Load configuration from defaults, optional file and environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitFailure
	}

	// The first positional argument overrides the scan root
	if len(args) > 0 && args[0] != "" {
		cfg.Scan.Root = args[0]
	}

	// Configure global logging
	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		return exitFailure
	}

	runID := ulid.Make().String()
	log.Info(map[string]any{
		"version": version,
		"run_id":  runID,
		"env":     cfg.Env,
		"root":    cfg.Scan.Root,
		"workers": cfg.Scan.Workers,
		"format":  cfg.Report.Format,
		"github":  cfg.GitHub.Enabled,
		"history": cfg.History.DB != "",
		"probe":   cfg.Probe.Enabled,
	}, "Starting "+appName)

	app, err := buildApplication(cfg, runID, os.Stdout, os.Stderr)
	if err != nil {
		log.Error(map[string]any{"error": err}, "Failed to build application")
		return exitFailure
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Failed to release resources")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := app.Run(ctx)
	return exitCode(rep, err)
}

// exitCode maps a run outcome to the process exit status.
func exitCode(rep *domain.Report, err error) int {
	switch {
	case err != nil:
		log.Error(map[string]any{"error": err}, "Audit failed")
		return exitFailure
	case rep != nil && len(rep.Violations) > 0:
		return exitViolations
	default:
		return exitClean
	}
}

// buildApplication constructs all components and wires them together.
// Report output goes to stdout; the progress bar goes to stderr.
func buildApplication(cfg *config.AppConfig, runID string, stdout, stderr io.Writer) (*Application, error) {
	clk := clock.UTC{}
	logger := log.GetLogger()

	app := &Application{
		config: cfg,
		runID:  runID,
		clock:  clk,
		logger: logger,
		stderr: stderr,
	}

	matcher, err := textmatch.NewMatcher(textmatch.DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern cache: %w", err)
	}
	parser, err := cfrecord.NewParser(cfrecord.Options{Matcher: matcher, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create record parser: %w", err)
	}

	var onFile func(string)
	if cfg.Scan.Progress {
		onFile = func(string) {
			if app.bar != nil {
				_ = app.bar.Add(1)
			}
		}
	}
	app.auditor, err = auditor.New(auditor.Options{
		Parser:    parser,
		Extension: cfg.Scan.Extension,
		Workers:   cfg.Scan.Workers,
		OnFile:    onFile,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create auditor: %w", err)
	}

	app.writer, err = report.NewWriter(stdout, cfg.Report.Format, cfg.Report.Color)
	if err != nil {
		return nil, fmt.Errorf("failed to create report writer: %w", err)
	}

	if cfg.Probe.Enabled {
		app.prober = liveprobe.New(liveprobe.Options{
			Nameservers: cfg.Probe.Nameservers,
			Timeout:     cfg.Probe.Timeout,
			Logger:      logger,
		})
	}

	if cfg.GitHub.Enabled {
		app.commenter, err = github.NewCommenter(github.Options{
			Token:     cfg.GitHub.Token,
			UserAgent: cfg.GitHub.UserAgent,
			BaseURL:   cfg.GitHub.BaseURL,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create github client: %w", err)
		}
	}

	if cfg.History.DB != "" {
		app.history, err = history.Open(cfg.History.DB, history.Options{Clock: clk, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
	}

	return app, nil
}

// Run scans the configured root, prints the report and, when enabled,
// comments on the configured issue. The returned report is nil only on error.
func (a *Application) Run(ctx context.Context) (*domain.Report, error) {
	root := a.config.Scan.Root

	files, err := a.auditor.ListFiles(root)
	if err != nil {
		return nil, err
	}
	if a.config.Scan.Progress {
		a.bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(a.stderr),
			progressbar.OptionSetDescription("scanning"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = a.bar.Finish() }()
	}

	res, err := a.auditor.ScanFiles(ctx, root, files)
	if err != nil {
		return nil, err
	}

	rep := &domain.Report{
		RunID:        a.runID,
		Root:         root,
		GeneratedAt:  a.clock.Now(),
		Files:        res.Files,
		MailCapable:  res.MailCapable.Len(),
		SPFProtected: res.SPFProtected.Len(),
		Violations:   domain.NewViolations(res.Violations),
		RecordTypes:  res.TypeCounts(),
	}

	if a.prober != nil && len(rep.Violations) > 0 {
		a.prober.Annotate(ctx, rep.Violations)
	}

	if err := a.markPreviouslyReported(rep); err != nil {
		return nil, err
	}

	if err := a.writer.Write(*rep); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	if err := a.comment(ctx, rep, res.MailCapable.Difference(res.SPFProtected)); err != nil {
		return nil, err
	}

	a.logger.Info(map[string]any{
		"run_id":     a.runID,
		"violations": len(rep.Violations),
	}, "Audit complete")
	return rep, nil
}

// markPreviouslyReported flags violations already present in history for
// the configured issue and names the run that first reported them.
func (a *Application) markPreviouslyReported(rep *domain.Report) error {
	if a.history == nil || !a.config.GitHub.Enabled {
		return nil
	}
	unseen, err := a.history.Unseen(a.scope(), rep.Hostnames())
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(unseen) == len(rep.Violations) {
		return nil
	}
	entries, err := a.history.Entries(a.scope())
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	fresh := domain.NewHostnameSet(unseen...)
	for i := range rep.Violations {
		v := &rep.Violations[i]
		if fresh.Has(v.Hostname) {
			continue
		}
		v.PreviouslyReported = true
		v.ReportedRun = entries[v.Hostname].RunID
	}
	return nil
}

// comment posts new violations to the configured issue and records them in
// history. Nothing is posted when there is nothing new to report.
func (a *Application) comment(ctx context.Context, rep *domain.Report, missing domain.HostnameSet) error {
	if a.commenter == nil {
		return nil
	}
	gh := a.config.GitHub

	if a.history != nil {
		pruned, err := a.history.Prune(a.scope(), missing)
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		if pruned > 0 {
			a.logger.Debug(map[string]any{"scope": a.scope(), "pruned": pruned}, "Pruned fixed hostnames from history")
		}
	}

	fresh := *rep
	fresh.Violations = nil
	for _, v := range rep.Violations {
		if !v.PreviouslyReported {
			fresh.Violations = append(fresh.Violations, v)
		}
	}
	if len(fresh.Violations) == 0 {
		a.logger.Info(map[string]any{"owner": gh.Owner, "repo": gh.Repo, "issue": gh.Issue}, "No new violations, skipping issue comment")
		return nil
	}

	if err := a.commenter.AddIssueComment(ctx, gh.Owner, gh.Repo, gh.Issue, github.FormatComment(fresh)); err != nil {
		return err
	}

	if a.history != nil {
		if err := a.history.MarkReported(a.scope(), a.runID, fresh.Hostnames()); err != nil {
			return fmt.Errorf("failed to record history: %w", err)
		}
	}
	return nil
}

func (a *Application) scope() string {
	return history.Scope(a.config.GitHub.Owner, a.config.GitHub.Repo, a.config.GitHub.Issue)
}

// Close releases the history database, if open.
func (a *Application) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}
