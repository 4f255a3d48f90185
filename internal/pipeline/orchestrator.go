// Package pipeline runs the three planning stages in order and bounds the
// whole run by a single deadline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tripcrew/trip-planner/internal/llm"
	"github.com/tripcrew/trip-planner/internal/model"
	"github.com/tripcrew/trip-planner/internal/tools"
	"github.com/tripcrew/trip-planner/pkg/logger"
	"github.com/tripcrew/trip-planner/pkg/metrics"
)

const finalAnswerPrompt = "You have used all tool calls available for this step. Write your final answer now using the information you already have."

// ToolProvider hands out the tools a stage may call. Each call returns fresh
// budgets.
type ToolProvider interface {
	ForStage(capabilities []string) []tools.Tool
}

// Config holds the run settings. It is passed explicitly to New.
type Config struct {
	Timeout       time.Duration
	Model         string
	Temperature   float64
	MaxTokens     int
	MaxToolRounds int
	// RequestTimeout bounds a single backend call. Zero leaves only the run
	// deadline.
	RequestTimeout time.Duration
	// Capabilities lists the tools each stage may call, keyed by stage id.
	Capabilities map[string][]string
	// Stages overrides the built-in catalog when set.
	Stages []Stage
}

// DefaultConfig returns the standard settings: web lookups for the first two
// stages, arithmetic only for the itinerary builder.
func DefaultConfig() Config {
	return Config{
		Timeout:       180 * time.Second,
		Temperature:   0.3,
		MaxTokens:     1500,
		MaxToolRounds: 8,
		Capabilities: map[string][]string{
			StageSelectCities:         {tools.NameSearch, tools.NameBrowse, tools.NameCalculator},
			StageGatherLocalKnowledge: {tools.NameSearch, tools.NameBrowse, tools.NameCalculator},
			StageBuildItinerary:       {tools.NameCalculator},
		},
	}
}

// StageResult is the outcome of one stage within a run.
type StageResult struct {
	Stage     string
	Output    string
	ToolCalls int
	Duration  time.Duration
}

// Orchestrator executes the stage catalog for trip requests.
type Orchestrator struct {
	client llm.Client
	tools  ToolProvider
	stages []Stage
	cfg    Config
	logger *logger.Logger
	tracer trace.Tracer
}

// New creates an orchestrator. tp may be nil, in which case stages run
// without tools.
func New(client llm.Client, tp ToolProvider, cfg Config, log *logger.Logger) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxToolRounds < 0 {
		cfg.MaxToolRounds = 0
	}
	stages := cfg.Stages
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	if log == nil {
		log = logger.Global()
	}

	return &Orchestrator{
		client: client,
		tools:  tp,
		stages: stages,
		cfg:    cfg,
		logger: log,
		tracer: otel.Tracer("github.com/tripcrew/trip-planner/internal/pipeline"),
	}
}

type runResult struct {
	results []StageResult
	err     error
}

// Run executes every stage in order and returns the final stage's text.
//
// The stages run on a worker goroutine while Run waits for either the result
// or the deadline, so a backend that never returns cannot hold the caller past
// the timeout. When Run gives up, the worker's context is cancelled and any
// late result is dropped.
func (o *Orchestrator) Run(ctx context.Context, req model.TripRequest) (string, error) {
	results, err := o.RunStages(ctx, req)
	if err != nil {
		return "", err
	}
	return results[len(results)-1].Output, nil
}

// RunStages is Run but returns every stage's result.
func (o *Orchestrator) RunStages(ctx context.Context, req model.TripRequest) ([]StageResult, error) {
	runID := uuid.Must(uuid.NewV7()).String()
	log := o.logger.WithRun(runID)
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("cities", len(req.Cities)),
	))
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	var current stageTracker
	done := make(chan runResult, 1)
	go func() {
		results, err := o.runStages(runCtx, req, log, &current)
		done <- runResult{results: results, err: err}
	}()

	log.Info("pipeline started",
		zap.String("origin", req.Origin),
		zap.Strings("cities", req.Cities),
		zap.Duration("timeout", o.cfg.Timeout),
	)

	var res runResult
	select {
	case res = <-done:
	case <-runCtx.Done():
		res = runResult{err: runCtx.Err()}
	}

	err := res.err
	if err != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = &TimeoutError{Limit: o.cfg.Timeout, Stage: current.get()}
	} else if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("pipeline cancelled: %w", ctx.Err())
	}

	elapsed := time.Since(start)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case errors.Is(err, ErrStageFailure):
		outcome = "stage_failure"
	default:
		outcome = "cancelled"
	}
	metrics.RecordRun(outcome, elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		log.Warn("pipeline failed", zap.String("outcome", outcome), zap.Duration("duration", elapsed), zap.Error(err))
		return nil, err
	}

	log.Info("pipeline finished", zap.Duration("duration", elapsed))
	return res.results, nil
}

func (o *Orchestrator) runStages(ctx context.Context, req model.TripRequest, log *logger.Logger, current *stageTracker) ([]StageResult, error) {
	results := make([]StageResult, 0, len(o.stages))
	previous := ""
	for _, st := range o.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current.set(st.ID)
		res, err := o.runStage(ctx, st, req, previous, log)
		if err != nil {
			return nil, &StageError{Stage: st.ID, Err: err}
		}
		results = append(results, res)
		previous = res.Output
	}
	return results, nil
}

func (o *Orchestrator) runStage(ctx context.Context, st Stage, req model.TripRequest, previous string, log *logger.Logger) (StageResult, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "pipeline.stage", trace.WithAttributes(attribute.String("stage", st.ID)))
	defer span.End()

	log = log.With(zap.String("stage", st.ID))
	log.Debug("stage started")

	output, calls, err := o.generate(ctx, st, req, previous)
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("tool_calls", calls))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		metrics.RecordStage(st.ID, "error", elapsed.Seconds())
		log.Warn("stage failed", zap.Duration("duration", elapsed), zap.Int("tool_calls", calls), zap.Error(err))
		return StageResult{}, err
	}

	metrics.RecordStage(st.ID, "ok", elapsed.Seconds())
	log.Info("stage finished",
		zap.Duration("duration", elapsed),
		zap.Int("tool_calls", calls),
		zap.Int("output_chars", len(output)),
	)

	return StageResult{Stage: st.ID, Output: output, ToolCalls: calls, Duration: elapsed}, nil
}

// generate runs the tool loop for one stage. The model may request tools for
// up to MaxToolRounds rounds; after that it is asked for a final answer with
// no tools offered.
func (o *Orchestrator) generate(ctx context.Context, st Stage, req model.TripRequest, previous string) (string, int, error) {
	messages, err := st.messages(req, previous)
	if err != nil {
		return "", 0, err
	}

	var toolset []tools.Tool
	if o.tools != nil {
		toolset = o.tools.ForStage(o.cfg.Capabilities[st.ID])
	}
	byName := make(map[string]tools.Tool, len(toolset))
	specs := make([]llm.ToolSpec, 0, len(toolset))
	for _, t := range toolset {
		byName[t.Name()] = t
		specs = append(specs, llm.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}

	calls := 0
	for round := 0; ; round++ {
		offer := len(specs) > 0 && round < o.cfg.MaxToolRounds
		if len(specs) > 0 && round == o.cfg.MaxToolRounds && round > 0 {
			messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: finalAnswerPrompt})
		}

		creq := &llm.CompletionRequest{
			Model:       o.cfg.Model,
			Messages:    messages,
			MaxTokens:   o.cfg.MaxTokens,
			Temperature: o.cfg.Temperature,
		}
		if offer {
			creq.Tools = specs
		}

		resp, err := o.complete(ctx, creq)
		if err != nil {
			return "", calls, err
		}
		metrics.RecordLLMUsage(resp.Model, resp.TokensIn, resp.TokensOut)

		if !offer || len(resp.ToolCalls) == 0 {
			return strings.TrimSpace(resp.Content), calls, nil
		}

		messages = append(messages, llm.ChatMessage{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			calls++
			out := fmt.Sprintf("[%s] error: tool is not available in this step", tc.Name)
			if t, ok := byName[tc.Name]; ok {
				out = t.Call(ctx, tc.Arguments)
			}
			messages = append(messages, llm.ChatMessage{
				Role:       llm.RoleTool,
				Content:    out,
				ToolCallID: tc.ID,
			})
		}
	}
}

// stageTracker records the running stage for timeout reports.
type stageTracker struct {
	mu sync.Mutex
	id string
}

func (s *stageTracker) set(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

func (s *stageTracker) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (o *Orchestrator) complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}
	return o.client.Complete(ctx, req)
}
