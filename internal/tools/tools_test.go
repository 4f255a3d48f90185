package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr    string
		want    float64
		wantErr bool
	}{
		{expr: "200*7", want: 1400},
		{expr: "5000/2*10", want: 25000},
		{expr: "(1 + 2) * 3", want: 9},
		{expr: "7 % 3", want: 1},
		{expr: "2 ** 10", want: 1024},
		{expr: "-5 + 2", want: -3},
		{expr: "10 / 4", want: 2.5},
		{expr: "1/0", wantErr: true},
		{expr: "", wantErr: true},
		{expr: "__import__('os')", wantErr: true},
		{expr: "len(\"abc\")", wantErr: true},
		{expr: "1 +", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalculatorCall(t *testing.T) {
	c := NewCalculator()

	assert.Equal(t, "1400", c.Call(context.Background(), `{"expression":"200*7"}`))
	assert.Equal(t, "2.5", c.Call(context.Background(), "10/4"))
	assert.True(t, strings.HasPrefix(c.Call(context.Background(), `{"expression":"rm -rf"}`), "[calculator] error"))
}

func TestElementText(t *testing.T) {
	page := `<html><head><title>Kyoto guide</title><style>p{color:red}</style></head>
<body>
<nav><a href="/">home</a></nav>
<h1>Temples</h1>
<p>Kinkaku-ji   is <b>golden</b>.</p>
<ul><li><p>Fushimi Inari</p></li><li>Ryoan-ji</li></ul>
<script>var x = 1;</script>
<table><tr><td>Entry</td><td>500 yen</td></tr></table>
</body></html>`

	text, err := ElementText(page)
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"Kyoto guide", "Temples", "Kinkaku-ji is golden.", "Fushimi Inari", "Ryoan-ji", "Entry", "500 yen",
	}, "\n\n"), text)
	assert.NotContains(t, text, "var x")
}

func TestElementTextFallsBackToBody(t *testing.T) {
	text, err := ElementText(`<html><body><div>only   divs</div></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "only divs", text)
}

func TestBrowserFetchDirect(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("<p>" + strings.Repeat("é", 50) + "</p>"))
	}))
	defer srv.Close()

	b := NewBrowser(BrowserConfig{MaxChars: 10}, srv.Client())
	out := b.Fetch(context.Background(), srv.URL)

	assert.Equal(t, strings.Repeat("é", 10), out)
	assert.Contains(t, gotUA, "Mozilla/5.0")
}

func TestBrowserPrefersRemoteThenFallsBack(t *testing.T) {
	var remoteHits int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&remoteHits, 1)
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if strings.Contains(body["url"], "broken") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("<p>rendered</p>"))
	}))
	defer remote.Close()

	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>direct</p>"))
	}))
	defer direct.Close()

	b := NewBrowser(BrowserConfig{BrowserlessToken: "secret", BrowserlessURL: remote.URL}, http.DefaultClient)

	assert.Equal(t, "rendered", b.Fetch(context.Background(), direct.URL+"/ok"))
	assert.Equal(t, "direct", b.Fetch(context.Background(), direct.URL+"/broken"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&remoteHits))
}

func TestBrowserFallsBackWhenRemoteHangs(t *testing.T) {
	release := make(chan struct{})
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer remote.Close()
	defer close(release)

	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>direct</p>"))
	}))
	defer direct.Close()

	b := NewBrowser(BrowserConfig{
		BrowserlessToken: "secret",
		BrowserlessURL:   remote.URL,
		RemoteTimeout:    time.Minute,
	}, http.DefaultClient)
	browse := WithBudget(b, Budget{Timeout: 2 * time.Second})

	start := time.Now()
	out := browse.Call(context.Background(), `{"url":"`+direct.URL+`"}`)
	assert.Equal(t, "direct", out)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBrowserRemoteTimeoutLeavesHalfTheDeadline(t *testing.T) {
	b := NewBrowser(BrowserConfig{RemoteTimeout: time.Minute}, nil)
	assert.Equal(t, time.Minute, b.remoteTimeout(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	got := b.remoteTimeout(ctx)
	assert.LessOrEqual(t, got, 5*time.Second)
	assert.Greater(t, got, 4*time.Second)
}

func TestBrowserFailuresAreInline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b := NewBrowser(BrowserConfig{}, srv.Client())

	assert.True(t, strings.HasPrefix(b.Fetch(context.Background(), srv.URL), "[browse] fetch failed"))
	assert.True(t, strings.HasPrefix(b.Fetch(context.Background(), "file:///etc/passwd"), "[browse] fetch failed"))
	assert.True(t, strings.HasPrefix(b.Call(context.Background(), `{"url":""}`), "[browse] fetch failed"))
}

func TestBrowserMarkdownFormat(t *testing.T) {
	b := NewBrowser(BrowserConfig{Format: FormatMarkdown}, nil)

	out, err := b.Reduce("<h2>Food</h2><p>Try <strong>ramen</strong></p>")
	require.NoError(t, err)
	assert.Contains(t, out, "## Food")
	assert.Contains(t, out, "**ramen**")
}

func TestSearchCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-API-KEY"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tokyo weather october", body["q"])

		w.Write([]byte(`{"answerBox":{"answer":"Mild, 18-23C"},"organic":[
			{"title":"Tokyo climate","link":"https://example.com/a","snippet":"October is pleasant"},
			{"title":"Second","link":"https://example.com/b","snippet":"More"}]}`))
	}))
	defer srv.Close()

	s := NewSearch(SearchConfig{APIKey: "key", Endpoint: srv.URL, NumResults: 1}, srv.Client())
	out := s.Call(context.Background(), `{"query":"tokyo weather october"}`)

	assert.Contains(t, out, "Answer: Mild, 18-23C")
	assert.Contains(t, out, "Title: Tokyo climate")
	assert.NotContains(t, out, "Second")
}

func TestSearchErrorsAreInline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewSearch(SearchConfig{APIKey: "key", Endpoint: srv.URL}, srv.Client())

	out := s.Call(context.Background(), `{"query":"x"}`)
	assert.True(t, strings.HasPrefix(out, "[search] failed"))
	assert.Contains(t, out, "quota exceeded")
	assert.Equal(t, "[search] error: empty query", s.Call(context.Background(), ""))
}

type fakeTool struct {
	name  string
	delay time.Duration
	calls int32
}

func (f *fakeTool) Name() string               { return f.name }
func (f *fakeTool) Description() string        { return "fake" }
func (f *fakeTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (f *fakeTool) Call(ctx context.Context, args string) string {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return "ok:" + args
}

func TestWithBudgetMaxCalls(t *testing.T) {
	inner := &fakeTool{name: "search"}
	tool := WithBudget(inner, Budget{MaxCalls: 2})

	assert.Equal(t, "ok:a", tool.Call(context.Background(), "a"))
	assert.Equal(t, "ok:b", tool.Call(context.Background(), "b"))
	assert.Contains(t, tool.Call(context.Background(), "c"), "budget of 2 exhausted")
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}

func TestWithBudgetTimeout(t *testing.T) {
	tool := WithBudget(&fakeTool{name: "browse", delay: time.Second}, Budget{Timeout: 20 * time.Millisecond})

	start := time.Now()
	out := tool.Call(context.Background(), "slow")

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Contains(t, out, "[browse] call abandoned")
}

func TestWithBudgetSpacing(t *testing.T) {
	tool := WithBudget(&fakeTool{name: "search"}, Budget{MinInterval: 50 * time.Millisecond})

	start := time.Now()
	for i := 0; i < 3; i++ {
		tool.Call(context.Background(), "q")
	}

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestToolboxForStage(t *testing.T) {
	tb := NewToolbox(Config{}, nil)

	assert.False(t, tb.Available(NameSearch))
	got := tb.ForStage([]string{NameSearch, NameBrowse, NameCalculator, "teleport"})

	require.Len(t, got, 2)
	assert.Equal(t, NameBrowse, got[0].Name())
	assert.Equal(t, NameCalculator, got[1].Name())

	tb = NewToolbox(Config{Search: SearchConfig{APIKey: "k"}}, nil)
	assert.True(t, tb.Available(NameSearch))
}

func TestToolboxBudgetsArePerStage(t *testing.T) {
	tb := NewToolbox(Config{Budgets: map[string]Budget{}}, nil)
	inner := &fakeTool{name: "custom"}
	tb.Register(inner, Budget{MaxCalls: 1})

	first := tb.ForStage([]string{"custom"})[0]
	second := tb.ForStage([]string{"custom"})[0]

	assert.Equal(t, "ok:x", first.Call(context.Background(), "x"))
	assert.Contains(t, first.Call(context.Background(), "x"), "exhausted")
	assert.Equal(t, "ok:y", second.Call(context.Background(), "y"))
}
