package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"

	"envman/internal/config"
	"envman/internal/engine"
	"envman/internal/gateway"
	"envman/internal/logger"
	"envman/internal/model"
	"envman/internal/tui"
	"envman/internal/web"
)

func checkUpdate(currentVer string, explicit bool) {
	githubTag := &latest.GithubTag{
		Owner:      model.RepoOwner,
		Repository: model.RepoName,
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		if explicit {
			fmt.Fprintf(os.Stderr, "Could not check for updates: %v\n", err)
		}
		return
	}

	if res.Outdated {
		fmt.Printf("\n✨ A new version is available: %s (you have %s)\n", res.Current, currentVer)
		fmt.Printf("👉 Download it from https://github.com/%s/%s/releases\n", model.RepoOwner, model.RepoName)
	} else if explicit {
		fmt.Printf("✅ You are using the latest version: %s\n", currentVer)
	}
}

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit.
func run() int {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: envman [options]\n\n")
		fmt.Fprintf(os.Stderr, "envman manages a store of User and System environment variables.\n")
		fmt.Fprintf(os.Stderr, "List-valued variables such as PATH are shown one element per row.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  envman                          # Start TUI mode\n")
		fmt.Fprintf(os.Stderr, "  envman --report -v              # Print every variable with ids\n")
		fmt.Fprintf(os.Stderr, "  envman --validate               # List invalid variables\n")
		fmt.Fprintf(os.Stderr, "  envman --add JAVA_HOME=/opt/jdk # Add a user variable\n")
		fmt.Fprintf(os.Stderr, "  envman --export-target s3://bucket/env --export\n")
	}

	jsonFlag := pflag.BoolP("json", "j", false, "Output the projection as JSON")
	reportFlag := pflag.BoolP("report", "r", false, "Print a text report of all variables")
	outputFlag := pflag.StringP("output", "o", "", "Save the report to the specified file (combined with --report)")
	verboseFlag := pflag.BoolP("verbose", "v", false, "Include ids, notes and timestamps in the report")
	webFlag := pflag.BoolP("web", "w", false, "Start Web Mode on the configured listen address")
	validateFlag := pflag.Bool("validate", false, "Validate every variable and list the invalid ones")
	deleteInvalidFlag := pflag.Bool("delete-invalid", false, "Validate, then delete every invalid variable")
	exportFlag := pflag.Bool("export", false, "Export all variables to the export target")
	importFlag := pflag.String("import", "", "Import variables from a file or s3:// URL")
	addFlag := pflag.String("add", "", "Add a variable given as NAME=VALUE")
	scopeFlag := pflag.String("scope", "user", "Scope for --add: user or system")
	noteFlag := pflag.String("note", "", "Note for --add")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	updateFlag := pflag.BoolP("update", "u", false, "Check for the latest version")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")

	pflag.String("config", "", "Config file (default $XDG_CONFIG_HOME/envman/config.yaml)")
	pflag.String("db", "", "SQLite database file")
	pflag.String("log-level", "info", "Log level: debug, info, warn, error")
	pflag.String("log-format", "text", "Log format: text or json")
	pflag.String("log-file", "", "Log file used in TUI mode")
	pflag.String("listen", "127.0.0.1:8080", "Listen address for --web")
	pflag.String("export-target", ".", "Export directory or s3://bucket/prefix")
	pflag.Bool("seed", true, "Seed an empty store from the process environment")
	pflag.Bool("check-updates", true, "Check for a newer release with --version")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return 0
	}

	cfg, err := config.Load(pflag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if *versionFlag {
		fmt.Printf("envman version %s\n", model.Version)
		if cfg.CheckUpdates {
			checkUpdate(model.Version, false)
		}
		return 0
	}

	if *updateFlag {
		checkUpdate(model.Version, true)
		return 0
	}

	tuiMode := !(*jsonFlag || *reportFlag || *webFlag || *validateFlag || *deleteInvalidFlag ||
		*exportFlag || *importFlag != "" || *addFlag != "")

	var logOut io.Writer = os.Stderr
	if tuiMode {
		f, err := logger.OpenFile(cfg.LogFile)
		if err != nil {
			return fail(err)
		}
		defer f.Close()
		logOut = f
	}
	log := logger.Setup(cfg, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, *importFlag, log)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	if cfg.SeedFromEnv {
		if _, err := store.Seed(ctx, os.Environ(), gateway.SystemEnvironmentFile); err != nil {
			log.Warn("seeding failed", "error", err)
		}
	}

	ctrl := engine.NewController(store,
		engine.WithLogger(log),
		engine.WithSectionOrder(cfg.Scopes()),
	)

	if tuiMode {
		if err := runTuiMode(ctx, ctrl, log); err != nil {
			fmt.Printf("Alas, there's been an error: %v", err)
			return 1
		}
		return 0
	}

	if err := ctrl.Refresh(ctx); err != nil {
		return fail(err)
	}

	switch {
	case *addFlag != "":
		err = runAdd(ctx, ctrl, *addFlag, *scopeFlag, *noteFlag)
	case *importFlag != "":
		err = runImport(ctx, ctrl, *importFlag)
	case *exportFlag:
		err = runExport(ctx, ctrl)
	case *validateFlag:
		err = runValidate(ctx, ctrl)
	case *deleteInvalidFlag:
		err = runDeleteInvalid(ctx, ctrl)
	case *webFlag:
		fmt.Printf("Starting envman web server at http://%s\n", cfg.ListenAddr)
		err = web.NewServer(ctrl, log).ListenAndServe(ctx, cfg.ListenAddr)
	case *reportFlag:
		err = runReportMode(ctrl, *outputFlag, *verboseFlag)
	case *jsonFlag:
		err = runJsonMode(ctrl)
	}
	if err != nil {
		return fail(err)
	}
	return 0
}

// openStore opens the database and attaches an S3 blob store when the
// export target or the import source is an s3:// URL.
func openStore(ctx context.Context, cfg *config.Config, importSource string, log *slog.Logger) (*gateway.Store, error) {
	opts := []gateway.Option{
		gateway.WithLogger(log),
		gateway.WithValidateConcurrency(cfg.ValidateConcurrency),
		gateway.WithExportTarget(cfg.Export.Target),
	}

	s3cfg, ok := gateway.S3ConfigFromTarget(importSource, cfg.Export.S3.Region, cfg.Export.S3.Endpoint, cfg.Export.S3.PathStyle)
	if !ok {
		s3cfg, ok = gateway.S3ConfigFromTarget(cfg.Export.Target, cfg.Export.S3.Region, cfg.Export.S3.Endpoint, cfg.Export.S3.PathStyle)
	}
	if ok {
		blob, err := gateway.NewS3Blob(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, gateway.WithBlobStore(blob))
	}
	return gateway.Open(cfg.DBPath, opts...)
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func runTuiMode(ctx context.Context, ctrl *engine.Controller, log *slog.Logger) error {
	m := tui.InitialModel(ctx, ctrl, log)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func runReportMode(ctrl *engine.Controller, outputFile string, verbose bool) error {
	report := engine.GenerateReport(ctrl.Projection(), verbose)
	if outputFile == "" {
		fmt.Println(report)
		return nil
	}
	if err := os.WriteFile(outputFile, []byte(report), 0o644); err != nil {
		return fmt.Errorf("write report to %s: %w", outputFile, err)
	}
	fmt.Printf("Report saved to %s\n", outputFile)
	return nil
}

func runJsonMode(ctrl *engine.Controller) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(engine.Views(ctrl.Projection()))
}

func runAdd(ctx context.Context, ctrl *engine.Controller, assignment, scopeName, note string) error {
	name, value, ok := strings.Cut(assignment, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("--add expects NAME=VALUE, got %q", assignment)
	}
	scope, ok := model.ParseScope(scopeName)
	if !ok {
		return fmt.Errorf("unknown scope %q", scopeName)
	}
	var notePtr *string
	if note != "" {
		notePtr = &note
	}
	r, err := ctrl.Add(ctx, strings.TrimSpace(name), value, scope, notePtr)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s (%s) id=%s\n", r.Name, r.Scope, r.ID)
	return nil
}

func runImport(ctx context.Context, ctrl *engine.Controller, source string) error {
	records, err := ctrl.Import(ctx, source)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d variables from %s\n", len(records), source)
	return nil
}

func runExport(ctx context.Context, ctrl *engine.Controller) error {
	loc, err := ctrl.Export(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d variables to %s\n", len(ctrl.Records()), loc)
	return nil
}

func runValidate(ctx context.Context, ctrl *engine.Controller) error {
	if err := ctrl.ValidateAll(ctx); err != nil && !errors.Is(err, engine.ErrValidationPartial) {
		return err
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	invalid := ctrl.InvalidRecords()
	if len(invalid) == 0 {
		fmt.Printf("%s All %d variables are valid\n", model.IconValid, len(ctrl.Records()))
		return nil
	}
	for _, r := range invalid {
		fmt.Printf("%s [%s] %s=%s  (id %s)\n", model.IconInvalid, r.Scope, r.Name, r.Value, r.ID)
	}
	fmt.Printf("\n%d of %d variables are invalid\n", len(invalid), len(ctrl.Records()))
	return nil
}

func runDeleteInvalid(ctx context.Context, ctrl *engine.Controller) error {
	if err := ctrl.ValidateAll(ctx); err != nil && !errors.Is(err, engine.ErrValidationPartial) {
		return err
	}
	ids := ctrl.InvalidIDs()
	if len(ids) == 0 {
		fmt.Println("No invalid variables")
		return nil
	}
	res := ctrl.BatchDelete(ctx, ids)
	for _, id := range res.Failed {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", model.IconInvalid, id, res.Errors[id])
	}
	fmt.Printf("Deleted %d of %d invalid variables\n", len(res.Succeeded), len(ids))
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d deletions failed", len(res.Failed))
	}
	return nil
}
