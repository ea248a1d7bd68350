package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"paperwright/pkg/author"
	"paperwright/pkg/config"
	"paperwright/pkg/eventlog"
	"paperwright/pkg/logx"
	"paperwright/pkg/metrics"
	"paperwright/pkg/paper"
	"paperwright/pkg/persistence"
	"paperwright/pkg/version"
	"paperwright/pkg/writer"
)

//nolint:gochecknoglobals // CLI-scoped logger
var logger = logx.NewLogger("cli")

// options bundles the parsed command line.
type options struct {
	prompt       string
	files        string
	output       string
	workDir      string
	model        string
	effort       string
	source       string
	metricsAddr  string
	maxTurns     int
	limit        int
	window       time.Duration
	trackUsage   bool
	deleteInputs bool
	jsonOut      bool
	verbose      bool
	history      bool
	usage        bool
}

func main() {
	var (
		opts        options
		showVersion bool
	)
	flag.StringVar(&opts.prompt, "prompt", "", "Document request (positional arguments are joined when empty)")
	flag.StringVar(&opts.files, "files", "", "Comma-separated input files to ingest alongside the request")
	flag.StringVar(&opts.output, "output", "", "Custom output directory (default: <workdir>/writing_outputs)")
	flag.StringVar(&opts.workDir, "workdir", ".", "Working directory for the run")
	flag.StringVar(&opts.model, "model", "", "Model name (overrides config and -effort)")
	flag.StringVar(&opts.effort, "effort", "", "Effort level: low, medium or high")
	flag.StringVar(&opts.source, "source", "", "Authoring source: api or cli (default: config)")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")
	flag.IntVar(&opts.maxTurns, "max-turns", 0, "Conversation turn cap (default: config)")
	flag.IntVar(&opts.limit, "limit", 20, "Number of rows shown by -history")
	flag.DurationVar(&opts.window, "window", 0, "Trailing window for -usage (0 = all time)")
	flag.BoolVar(&opts.trackUsage, "track-usage", false, "Attach token usage to the result")
	flag.BoolVar(&opts.deleteInputs, "delete-inputs", false, "Remove input files after they are copied in")
	flag.BoolVar(&opts.jsonOut, "json", false, "Emit updates as JSON lines (automatic when stdout is not a terminal)")
	flag.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging and stream model narration")
	flag.BoolVar(&opts.history, "history", false, "List recent runs and exit")
	flag.BoolVar(&opts.usage, "usage", false, "Print aggregated token usage and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("paperwright %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
		os.Exit(0)
	}

	if opts.verbose {
		logx.SetDebugConfig(true, false, "")
	}

	// Run main logic and get exit code so defers execute before os.Exit.
	os.Exit(run(&opts))
}

func run(opts *options) int {
	workDir, err := filepath.Abs(opts.workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid working directory: %v\n", err)
		return 1
	}
	opts.workDir = workDir

	if err := config.LoadConfig(workDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
		return 1
	}

	config.LoadDotenv(workDir)

	if err := unlockSecrets(workDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unlock secrets: %v\n", err)
		return 1
	}

	switch {
	case opts.history:
		if err := openHistory(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open run history: %v\n", err)
			return 1
		}
		return runHistory(opts.limit)
	case opts.usage:
		return runUsage(&cfg, opts.window)
	default:
		return runGenerate(&cfg, opts)
	}
}

// unlockSecrets decrypts the project secrets file when one exists, taking
// the password from the environment or an interactive prompt.
func unlockSecrets(workDir string) error {
	if !config.SecretsFileExists(workDir) {
		return nil
	}

	password := os.Getenv(config.EnvSecretsPassword)
	if password == "" {
		if !term.IsTerminal(syscall.Stdin) {
			return fmt.Errorf("encrypted secrets present but no password: set %s or run interactively", config.EnvSecretsPassword)
		}
		fmt.Fprint(os.Stderr, "Enter project password to unlock credentials: ")
		raw, err := term.ReadPassword(syscall.Stdin)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}

	secrets, err := config.DecryptSecretsFile(workDir, password)
	if err != nil {
		return err
	}
	config.SetDecryptedSecrets(secrets)
	logger.Info("🔐 Unlocked %d credential(s) from secrets file", len(secrets))
	return nil
}

// openHistory initializes the run database under the project config dir.
func openHistory() error {
	configDir, err := config.GetProjectConfigDir()
	if err != nil {
		return err
	}
	return persistence.Initialize(filepath.Join(configDir, config.DatabaseFilename))
}

func runGenerate(cfg *config.Config, opts *options) int {
	prompt := strings.TrimSpace(opts.prompt)
	if prompt == "" {
		prompt = strings.TrimSpace(strings.Join(flag.Args(), " "))
	}
	if prompt == "" {
		fmt.Fprintln(os.Stderr, "Nothing to write: pass a request with -prompt or as positional arguments.")
		flag.Usage()
		return 2
	}

	jsonMode := opts.jsonOut || !term.IsTerminal(int(os.Stdout.Fd()))

	source, err := buildSource(cfg, opts.source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	svc := writer.NewService(cfg, source)
	cleanup := attachSinks(svc, cfg, opts.metricsAddr)
	defer cleanup()

	output := opts.output
	if output == "" && cfg.Writer != nil {
		output = cfg.Writer.OutputDir
	}
	deleteInputs := opts.deleteInputs
	if cfg.Writer != nil && cfg.Writer.DeleteInputs {
		deleteInputs = true
	}

	exportSchematicEnv(cfg.Schematic)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updates, err := svc.Generate(ctx, writer.Request{
		Prompt:       prompt,
		WorkDir:      opts.workDir,
		OutputDir:    output,
		Model:        opts.model,
		Effort:       opts.effort,
		InputFiles:   splitList(opts.files),
		DeleteInputs: deleteInputs,
		TrackUsage:   opts.trackUsage,
		MaxTurns:     opts.maxTurns,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start generation: %v\n", err)
		return 1
	}

	if !jsonMode {
		fmt.Println("⏳ Starting document generation...")
	}

	result := render(updates, jsonMode, opts.verbose)
	if result == nil {
		fmt.Fprintln(os.Stderr, "⚠️  Generation cancelled")
		return 1
	}
	if !jsonMode {
		printResult(result)
	}
	if result.Status == paper.StatusFailed {
		return 1
	}
	return 0
}

// buildSource picks the authoring backend: direct API calls by default, the
// claude CLI when configured or requested.
func buildSource(cfg *config.Config, override string) (author.Source, error) {
	mode := override
	if mode == "" && cfg.Writer != nil {
		mode = cfg.Writer.SourceMode
	}

	switch mode {
	case "", config.SourceModeAPI:
		key, err := config.AnthropicAPIKey("")
		if err != nil {
			return nil, fmt.Errorf("API mode needs a key (set %s or use -source cli): %w", config.EnvAnthropicAPIKey, err)
		}
		return author.NewAPISource(key)
	case config.SourceModeCLI:
		return author.NewCLISource(), nil
	default:
		return nil, fmt.Errorf("unknown source mode '%s': must be %s or %s", mode, config.SourceModeAPI, config.SourceModeCLI)
	}
}

// exportSchematicEnv passes the project's schematic model choices down to
// the schematic tool, which the writer agent invokes as a shell command.
// Values already present in the environment win.
func exportSchematicEnv(sc *config.SchematicConfig) {
	if sc == nil {
		return
	}
	for _, kv := range [][2]string{
		{config.EnvSchematicModel, sc.GenerationModel},
		{config.EnvSchematicReviewModel, sc.ReviewModel},
	} {
		if kv[1] != "" && os.Getenv(kv[0]) == "" {
			_ = os.Setenv(kv[0], kv[1])
		}
	}
}

// attachSinks wires the optional run sinks onto the service: the JSONL
// event log, the SQLite history, and the Prometheus recorder with its
// listener. Sink failures degrade to warnings; generation proceeds without
// them. The returned cleanup closes whatever was attached.
func attachSinks(svc *writer.Service, cfg *config.Config, metricsAddr string) func() {
	var cleanups []func()

	if configDir, err := config.GetProjectConfigDir(); err == nil {
		keep := config.DefaultLogRotationCount
		if cfg.Logs != nil && cfg.Logs.RotationCount > 0 {
			keep = cfg.Logs.RotationCount
		}
		if logWriter, lerr := eventlog.NewWriter(filepath.Join(configDir, "logs"), keep); lerr != nil {
			logger.Warn("Run event log disabled: %v", lerr)
		} else {
			svc.EventLog = logWriter
			cleanups = append(cleanups, func() { _ = logWriter.Close() })
		}

		if herr := openHistory(); herr != nil {
			logger.Warn("Run history disabled: %v", herr)
		} else {
			svc.History = persistence.Ops()
			cleanups = append(cleanups, func() { _ = persistence.Close() })
		}
	}

	metricsEnabled := metricsAddr != "" || (cfg.Metrics != nil && cfg.Metrics.Enabled)
	if metricsEnabled {
		namespace := config.DefaultMetricsNamespace
		if cfg.Metrics != nil && cfg.Metrics.Namespace != "" {
			namespace = cfg.Metrics.Namespace
		}
		svc.Metrics = metrics.Default(namespace)

		addr := metricsAddr
		if addr == "" && cfg.Metrics != nil {
			addr = cfg.Metrics.ListenAddr
		}
		if addr != "" {
			server := metrics.Serve(addr, prometheus.DefaultGatherer)
			cleanups = append(cleanups, func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			})
		}
	}

	return func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}

// render consumes the update stream until it closes and returns the
// terminal result, or nil when the run was cancelled before one arrived.
func render(updates <-chan writer.Update, jsonMode, verbose bool) *paper.Result {
	encoder := json.NewEncoder(os.Stdout)

	var result *paper.Result
	for update := range updates {
		if jsonMode {
			if err := encoder.Encode(update); err != nil {
				logger.Warn("Failed to encode update: %v", err)
			}
			if update.Type == writer.UpdateResult {
				result = update.Result
			}
			continue
		}

		switch update.Type {
		case writer.UpdateProgress:
			fmt.Printf("• [%s] %s\n", update.Progress.Stage, update.Progress.Message)
		case writer.UpdateText:
			if verbose {
				fmt.Print(update.Text)
			}
		case writer.UpdateResult:
			result = update.Result
		}
	}
	return result
}

func printResult(res *paper.Result) {
	switch res.Status {
	case paper.StatusSuccess:
		fmt.Printf("\n✅ Paper generated: %s\n", res.Directory)
	case paper.StatusPartial:
		fmt.Printf("\n⚠️  Paper generated without a compiled PDF: %s\n", res.Directory)
	default:
		fmt.Println("\n❌ Generation failed")
	}

	if res.Metadata.Title != "" {
		fmt.Printf("   Title:    %s\n", res.Metadata.Title)
	}
	if res.Metadata.WordCount > 0 {
		fmt.Printf("   Words:    %d   Figures: %d   Citations: %d\n",
			res.Metadata.WordCount, res.FiguresCount, res.Citations.Count)
	}
	if res.TokenUsage != nil {
		estimate := ""
		if res.TokenUsage.Estimated {
			estimate = " (estimated)"
		}
		fmt.Printf("   Tokens:   %d in / %d out%s\n",
			res.TokenUsage.InputTokens, res.TokenUsage.OutputTokens, estimate)
	}
	for _, e := range res.Errors {
		fmt.Printf("   ✗ %s\n", e)
	}
}

func runHistory(limit int) int {
	runs, err := persistence.Ops().ListRuns(limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return 0
	}

	fmt.Printf("%-16s  %-7s  %-20s  %10s  %s\n", "STARTED", "STATUS", "MODEL", "COST", "PAPER")
	for _, r := range runs {
		title := r.Title
		if title == "" {
			title = r.PaperName
		}
		if title == "" {
			title = truncate(r.Prompt, 48)
		}
		fmt.Printf("%-16s  %-7s  %-20s  %10s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			truncate(r.Model, 20),
			fmt.Sprintf("$%.4f", r.CostUSD),
			title)
	}
	return 0
}

// runUsage reports aggregated token usage: from Prometheus when a server is
// configured, otherwise from the local run history.
func runUsage(cfg *config.Config, window time.Duration) int {
	label := "all time"
	if window > 0 {
		label = "last " + window.String()
	}

	if cfg.Metrics != nil && cfg.Metrics.PrometheusURL != "" {
		return runUsageFromPrometheus(cfg, window, label)
	}

	if err := openHistory(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run history: %v\n", err)
		return 1
	}
	var since time.Time
	if window > 0 {
		since = time.Now().Add(-window)
	}
	summary, err := persistence.Ops().Summarize(since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Usage query failed: %v\n", err)
		return 1
	}

	fmt.Printf("Usage from run history (%s):\n", label)
	fmt.Printf("  Runs:   %d (%d success / %d partial / %d failed)\n",
		summary.Runs, summary.Succeeded, summary.Partial, summary.Failed)
	fmt.Printf("  Tokens: %d in / %d out\n", summary.InputTokens, summary.OutputTokens)
	fmt.Printf("  Cost:   $%.4f\n", summary.CostUSD)
	return 0
}

func runUsageFromPrometheus(cfg *config.Config, window time.Duration, label string) int {
	namespace := cfg.Metrics.Namespace
	if namespace == "" {
		namespace = config.DefaultMetricsNamespace
	}
	query, err := metrics.NewQueryService(cfg.Metrics.PrometheusURL, namespace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to reach Prometheus: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	report, err := query.GetUsage(ctx, window)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Usage query failed: %v\n", err)
		return 1
	}

	fmt.Printf("Usage from Prometheus (%s):\n", label)
	fmt.Printf("  Runs:   %d\n", report.Runs)
	fmt.Printf("  Tokens: %d in / %d out\n", report.InputTokens, report.OutputTokens)
	fmt.Printf("  Cost:   $%.4f\n", report.TotalCost)

	if byModel, merr := query.GetUsageByModel(ctx, window); merr == nil && len(byModel) > 0 {
		models := make([]string, 0, len(byModel))
		for model := range byModel {
			models = append(models, model)
		}
		sort.Strings(models)

		fmt.Println("  By model:")
		for _, model := range models {
			r := byModel[model]
			fmt.Printf("    %-26s %d in / %d out, $%.4f\n",
				model, r.InputTokens, r.OutputTokens, r.TotalCost)
		}
	}
	return 0
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes-3]) + "..."
}
