// Package writer orchestrates document-generation runs. A run prepares the
// working directory, drives an authoring source, narrates progress over an
// update channel, routes caller-supplied input files into the produced
// output directory, and always ends with one aggregate result unless
// cancelled.
package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"paperwright/pkg/author"
	"paperwright/pkg/config"
	"paperwright/pkg/eventlog"
	"paperwright/pkg/ingest"
	"paperwright/pkg/logx"
	"paperwright/pkg/metrics"
	"paperwright/pkg/paper"
	"paperwright/pkg/persistence"
	"paperwright/pkg/progress"
	"paperwright/pkg/skills"
	"paperwright/pkg/utils"
)

// Request describes one document-generation run.
type Request struct {
	// Prompt is the document request, e.g. "Create a NeurIPS paper on
	// sparse attention". Required.
	Prompt string

	// WorkDir is the directory the producer session runs in. Defaults to
	// the process working directory.
	WorkDir string

	// OutputDir overrides the parent directory papers land under.
	// Defaults to <WorkDir>/writing_outputs.
	OutputDir string

	// Model names an explicit model and wins over Effort.
	Model string

	// Effort selects a model tier (low, medium, high) when Model is empty.
	Effort string

	// InputFiles lists files to route into the output directory. When
	// empty, the flat contents of <WorkDir>/data are used instead.
	InputFiles []string

	// DeleteInputs removes original input files after a successful copy.
	DeleteInputs bool

	// TrackUsage attaches token totals to the final result.
	TrackUsage bool

	// MaxTurns caps the producer session length. Zero means the source's
	// default.
	MaxTurns int

	// RunID identifies the run in logs and history. Generated when empty.
	RunID string
}

// Service runs document generations against one authoring source. The
// optional sinks record finished runs; nil sinks are skipped.
type Service struct {
	cfg    *config.Config
	source author.Source
	logger *logx.Logger

	// EventLog receives every progress event and the terminal result.
	EventLog *eventlog.Writer

	// History persists one record per finished run.
	History *persistence.Operations

	// Metrics observes stages, tool calls, usage and run outcomes.
	Metrics *metrics.Recorder
}

// NewService creates a generation service over the given source.
func NewService(cfg *config.Config, source author.Source) *Service {
	return &Service{
		cfg:    cfg,
		source: source,
		logger: logx.NewLogger("writer"),
	}
}

// Generate starts a run and returns its update channel. The channel is
// unbuffered, so the consumer paces the run; it closes after the terminal
// result, or without one when ctx is cancelled. Startup problems are
// returned directly and produce no channel.
func (s *Service) Generate(ctx context.Context, req Request) (<-chan Update, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if s.source == nil {
		return nil, fmt.Errorf("no authoring source configured")
	}

	if req.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		req.WorkDir = wd
	}
	abs, err := filepath.Abs(req.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	req.WorkDir = abs

	model, err := config.ResolveModel(s.cfg, req.Model, req.Effort)
	if err != nil {
		return nil, err
	}

	if req.RunID == "" {
		req.RunID = persistence.GenerateRunID()
	}

	updates := make(chan Update)
	r := &run{
		svc:     s,
		req:     req,
		model:   model,
		tracker: progress.NewTracker(),
		updates: updates,
		started: time.Now(),
	}
	go r.drive(ctx)
	return updates, nil
}

// run holds the mutable state of one generation.
type run struct {
	svc     *Service
	req     Request
	model   string
	tracker *progress.Tracker
	updates chan<- Update

	started time.Time
	usage   paper.TokenUsage
	cost    float64
}

// drive executes the run and guarantees the channel closes, with the
// terminal result as its last element for every non-cancelled run.
func (r *run) drive(ctx context.Context) {
	defer close(r.updates)

	res := r.guarded(ctx)

	if ctx.Err() != nil {
		r.svc.logger.Warn("Run %s cancelled: %v", r.req.RunID, ctx.Err())
		return
	}

	if r.req.TrackUsage {
		attached := r.usage
		res.TokenUsage = &attached
	}

	r.send(ctx, resultUpdate(&res))
	r.record(res)
}

// guarded converts panics anywhere in the pipeline into a failed result so
// the caller never sees an unhandled fault.
func (r *run) guarded(ctx context.Context) (res paper.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.svc.logger.Error("Recovered from panic in run %s: %v", r.req.RunID, rec)
			res = paper.FailedResult(fmt.Sprintf("Error during document generation: panic: %v", rec))
		}
	}()
	return r.execute(ctx)
}

// execute is the generation pipeline: setup, producer session, output
// resolution, input routing, scan, aggregation.
func (r *run) execute(ctx context.Context) paper.Result {
	req := r.req
	svc := r.svc

	config.LoadDotenv(req.WorkDir)
	skills.Install(req.WorkDir)

	outputParent, err := ensureOutputParent(req.WorkDir, req.OutputDir)
	if err != nil {
		return paper.FailedResult(fmt.Sprintf("Error during document generation: %v", err))
	}

	r.orchestrate(ctx, progress.StageInitialization, "Initializing document generation", nil)

	system := skills.Instructions(req.WorkDir) + systemAddendum(req.WorkDir, outputParent)

	inputs := ingest.Discover(req.WorkDir, req.InputFiles)
	prompt := req.Prompt
	if len(inputs) > 0 {
		r.orchestrate(ctx, progress.StageInitialization,
			fmt.Sprintf("Found %d data file(s) to process", len(inputs)), nil)
		if msg := ingest.ContextMessage(ingest.Plan(inputs)); msg != "" {
			prompt += "\n" + msg
		}
	}

	r.orchestrate(ctx, progress.StageInitialization, "Starting document generation",
		map[string]any{"query_length": len(req.Prompt)})

	svc.logger.Info("📝 Starting run %s: model=%s source=%s workdir=%s",
		req.RunID, r.model, svc.source.Name(), req.WorkDir)

	events, err := svc.source.Run(ctx, author.Request{
		WorkDir:      req.WorkDir,
		Model:        r.model,
		SystemPrompt: system,
		Prompt:       prompt,
		MaxTurns:     req.MaxTurns,
		AutoContinue: config.AutoContinueEnabled(svc.cfg),
	})
	if err != nil {
		return paper.FailedResult(fmt.Sprintf("Error during document generation: %v", err))
	}

	sessionUsage, sessionErr := r.consume(ctx, events)
	r.settleUsage(sessionUsage, prompt)

	if ctx.Err() != nil {
		return paper.Result{}
	}
	if sessionErr != nil {
		return paper.FailedResult(fmt.Sprintf("Error during document generation: %v", sessionErr))
	}

	r.orchestrate(ctx, progress.StageComplete, "Scanning output directory", nil)

	outputDir, ok := paper.ResolveOutputDir(outputParent, r.started)
	if !ok {
		return paper.FailedResult("Output directory not found after generation")
	}

	if len(inputs) > 0 {
		report, perr := ingest.Process(inputs, outputDir, req.DeleteInputs)
		if perr != nil {
			svc.logger.Warn("Could not route input files: %v", perr)
		} else if !report.Empty() {
			msg := fmt.Sprintf("Processed %d file(s)", report.Processed)
			if n := len(report.Manuscripts); n > 0 {
				msg += fmt.Sprintf(" (%d manuscript(s) copied to drafts/)", n)
			}
			r.orchestrate(ctx, progress.StageComplete, msg, nil)
		}
	}

	inv, err := paper.Scan(outputDir)
	if err != nil {
		return paper.FailedResult(fmt.Sprintf("Error during document generation: %v", err))
	}

	res := paper.BuildResult(outputDir, inv)
	r.orchestrate(ctx, progress.StageComplete, "Document generation complete", nil)
	return res
}

// consume drains the producer's event stream, streaming narration and
// feeding the progress tracker, and returns the session's terminal usage
// and error.
func (r *run) consume(ctx context.Context, events <-chan author.Event) (author.Usage, error) {
	var usage author.Usage
	var err error

	for evt := range events {
		switch evt.Kind {
		case author.EventText:
			if evt.Text == "" {
				continue
			}
			r.send(ctx, textUpdate(evt.Text))
			if pe := r.tracker.ObserveText(evt.Text); pe != nil {
				r.emit(ctx, pe)
			}
		case author.EventToolUse:
			if r.svc.Metrics != nil {
				r.svc.Metrics.ObserveToolCall(evt.ToolName, true)
			}
			if pe := r.tracker.ObserveTool(evt.ToolName, evt.ToolArgs); pe != nil {
				r.emit(ctx, pe)
			}
		case author.EventResult:
			usage = evt.Usage
			err = evt.Err
		}
	}
	return usage, err
}

// settleUsage folds the session's reported usage into the run totals,
// substituting a tokenizer estimate when tracking is on and the producer
// reported nothing.
func (r *run) settleUsage(sessionUsage author.Usage, prompt string) {
	if sessionUsage.HasTokens() {
		r.usage.Add(paper.TokenUsage{
			InputTokens:         sessionUsage.InputTokens,
			OutputTokens:        sessionUsage.OutputTokens,
			CacheCreationTokens: sessionUsage.CacheCreationTokens,
			CacheReadTokens:     sessionUsage.CacheReadTokens,
		})
		r.cost = sessionUsage.CostUSD
		return
	}

	if !r.req.TrackUsage {
		return
	}

	in, out := utils.EstimateUsage(r.model, prompt, r.tracker.Text())
	r.usage = paper.TokenUsage{InputTokens: in, OutputTokens: out, Estimated: true}
	r.cost = author.CostForTokens(r.model, in, out)
	r.svc.logger.Warn("⚠️  Source reported no token usage; substituting tokenizer estimate")
}

// orchestrate reports a pipeline-owned progress step. These narrate the
// run's own phases and do not touch the tracker's dedup state.
func (r *run) orchestrate(ctx context.Context, stage progress.Stage, message string, details map[string]any) {
	r.emit(ctx, &progress.Event{Stage: stage, Message: message, Details: details})
}

// emit delivers a progress event and mirrors it into the side channels.
func (r *run) emit(ctx context.Context, evt *progress.Event) {
	r.send(ctx, progressUpdate(evt))
	r.svc.logger.Debug("[%s] %s", evt.Stage, evt.Message)

	if r.svc.EventLog != nil {
		if err := r.svc.EventLog.WriteEvent(eventlog.Progress(r.req.RunID, string(evt.Stage), evt.Message, evt.Details)); err != nil {
			r.svc.logger.Debug("Could not append progress to event log: %v", err)
		}
	}
	if r.svc.Metrics != nil {
		r.svc.Metrics.ObserveStage(string(evt.Stage))
	}
}

// send delivers one update, abandoning the write when the run is cancelled.
func (r *run) send(ctx context.Context, u Update) bool {
	select {
	case r.updates <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

// record registers the finished run with the configured sinks.
func (r *run) record(res paper.Result) {
	duration := time.Since(r.started)
	status := string(res.Status)

	if r.svc.EventLog != nil {
		if err := r.svc.EventLog.WriteEvent(eventlog.Result(r.req.RunID, status, res.Directory)); err != nil {
			r.svc.logger.Debug("Could not append result to event log: %v", err)
		}
	}

	if r.svc.Metrics != nil {
		r.svc.Metrics.ObserveRun(status, duration)
		r.svc.Metrics.ObserveUsage(r.model,
			r.usage.InputTokens, r.usage.OutputTokens,
			r.usage.CacheCreationTokens, r.usage.CacheReadTokens, r.cost)
	}

	if r.svc.History != nil {
		rec := &persistence.Run{
			ID:                  r.req.RunID,
			Prompt:              r.req.Prompt,
			Model:               r.model,
			SourceMode:          r.svc.source.Name(),
			Status:              status,
			PaperDir:            res.Directory,
			PaperName:           res.Name,
			Title:               res.Metadata.Title,
			WordCount:           res.Metadata.WordCount,
			Figures:             res.FiguresCount,
			Citations:           res.Citations.Count,
			CompilationOK:       res.CompilationSuccess,
			Errors:              strings.Join(res.Errors, "\n"),
			InputTokens:         r.usage.InputTokens,
			OutputTokens:        r.usage.OutputTokens,
			CacheCreationTokens: r.usage.CacheCreationTokens,
			CacheReadTokens:     r.usage.CacheReadTokens,
			CostUSD:             r.cost,
			StartedAt:           r.started.UTC(),
			FinishedAt:          time.Now().UTC(),
		}
		if err := r.svc.History.InsertRun(rec); err != nil {
			r.svc.logger.Warn("Could not persist run record: %v", err)
		}
	}

	r.svc.logger.Info("✅ Run %s finished: status=%s duration=%s tokens=%d",
		r.req.RunID, status, duration.Round(time.Millisecond), r.usage.Total())
}

// ensureOutputParent resolves and creates the directory generated papers
// land under.
func ensureOutputParent(workDir, custom string) (string, error) {
	parent := custom
	switch {
	case parent == "":
		parent = filepath.Join(workDir, config.DefaultOutputDirName)
	case !filepath.IsAbs(parent):
		abs, err := filepath.Abs(parent)
		if err != nil {
			return "", fmt.Errorf("failed to resolve output directory: %w", err)
		}
		parent = abs
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return parent, nil
}

// systemAddendum pins the producer session to the run's directories. The
// producer creates its own timestamped directory under the output parent;
// the resolver later identifies it by recency.
func systemAddendum(workDir, outputParent string) string {
	return fmt.Sprintf(`

IMPORTANT - WORKING DIRECTORY:
- Your working directory is: %[1]s
- ALWAYS create output under: %[2]s/
- NEVER write to /tmp/ or any other temporary directory
- All paper outputs MUST go to: %[2]s/<timestamp>_<description>/

IMPORTANT - CONVERSATION CONTINUITY:
- This is a NEW paper request - create a new paper directory
- Create a unique timestamped directory in the output folder
- Do NOT assume there's an existing paper unless explicitly told in the prompt context
`, workDir, outputParent)
}
