// Package tools implements the capabilities pipeline stages may call while
// generating: web search, page content extraction and arithmetic.
//
// Tools never return errors. Failures are rendered as inline diagnostic text
// so a single bad call cannot abort a multi-minute pipeline run.
package tools

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tripcrew/trip-planner/pkg/metrics"
)

// Capability names.
const (
	NameSearch     = "search"
	NameBrowse     = "browse"
	NameCalculator = "calculator"
)

// Tool is a capability a generation stage can invoke.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON schema of the call arguments.
	Parameters() map[string]any
	// Call runs the tool with JSON encoded arguments.
	Call(ctx context.Context, args string) string
}

// Budget bounds how one stage may use a tool.
type Budget struct {
	MaxCalls    int
	MinInterval time.Duration
	Timeout     time.Duration
}

// WithBudget wraps t so that calls beyond MaxCalls are refused, consecutive
// calls are spaced by at least MinInterval and each call is abandoned after
// Timeout. A zero field disables that limit.
func WithBudget(t Tool, b Budget) Tool {
	l := &budgeted{Tool: t, budget: b}
	if b.MinInterval > 0 {
		l.limiter = rate.NewLimiter(rate.Every(b.MinInterval), 1)
	}
	return l
}

type budgeted struct {
	Tool
	budget  Budget
	limiter *rate.Limiter

	mu    sync.Mutex
	calls int
}

func (l *budgeted) Call(ctx context.Context, args string) string {
	name := l.Name()

	l.mu.Lock()
	if l.budget.MaxCalls > 0 && l.calls >= l.budget.MaxCalls {
		l.mu.Unlock()
		metrics.RecordToolCall(name, "exhausted")
		return fmt.Sprintf("[%s] call budget of %d exhausted for this step; continue with the information you already have", name, l.budget.MaxCalls)
	}
	l.calls++
	l.mu.Unlock()

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			metrics.RecordToolCall(name, "cancelled")
			return fmt.Sprintf("[%s] call cancelled: %v", name, err)
		}
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if l.budget.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, l.budget.Timeout)
	}
	defer cancel()

	result := make(chan string, 1)
	go func() {
		result <- l.Tool.Call(callCtx, args)
	}()

	select {
	case out := <-result:
		metrics.RecordToolCall(name, "ok")
		return out
	case <-callCtx.Done():
		metrics.RecordToolCall(name, "timeout")
		return fmt.Sprintf("[%s] call abandoned: %v", name, callCtx.Err())
	}
}

// Config configures the toolbox.
type Config struct {
	Search  SearchConfig
	Browser BrowserConfig
	Budgets map[string]Budget
}

// DefaultBudgets mirrors the per-stage limits used for web lookups.
func DefaultBudgets() map[string]Budget {
	return map[string]Budget{
		NameSearch:     {MaxCalls: 5, MinInterval: time.Second, Timeout: 12 * time.Second},
		NameBrowse:     {MaxCalls: 5, MinInterval: time.Second, Timeout: 30 * time.Second},
		NameCalculator: {MaxCalls: 20, Timeout: time.Second},
	}
}

// Toolbox builds fresh, budgeted tool instances for each stage.
type Toolbox struct {
	tools   map[string]Tool
	budgets map[string]Budget
}

// NewToolbox creates the toolbox. Search is only offered when an API key is
// configured.
func NewToolbox(cfg Config, client *http.Client) *Toolbox {
	if client == nil {
		client = &http.Client{}
	}
	budgets := cfg.Budgets
	if budgets == nil {
		budgets = DefaultBudgets()
	}

	tb := &Toolbox{
		tools:   map[string]Tool{},
		budgets: budgets,
	}
	tb.tools[NameCalculator] = NewCalculator()
	tb.tools[NameBrowse] = NewBrowser(cfg.Browser, client)
	if cfg.Search.APIKey != "" {
		tb.tools[NameSearch] = NewSearch(cfg.Search, client)
	}
	return tb
}

// Register adds or replaces a tool. It is used to plug alternative providers.
func (tb *Toolbox) Register(t Tool, b Budget) {
	tb.tools[t.Name()] = t
	tb.budgets[t.Name()] = b
}

// Available reports whether the named capability can be offered.
func (tb *Toolbox) Available(name string) bool {
	_, ok := tb.tools[name]
	return ok
}

// ForStage returns budgeted tools for the requested capabilities, in the
// order given. Unknown or unavailable capabilities are skipped. Budgets are
// fresh for every call, so each stage gets its own allowance.
func (tb *Toolbox) ForStage(capabilities []string) []Tool {
	out := make([]Tool, 0, len(capabilities))
	for _, name := range capabilities {
		t, ok := tb.tools[name]
		if !ok {
			continue
		}
		out = append(out, WithBudget(t, tb.budgets[name]))
	}
	return out
}
