package probe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cudadoctor/internal/capability"
)

// scriptedExecutor returns canned results keyed by strategy name and records
// the order in which strategies were attempted.
type scriptedExecutor struct {
	mu       sync.Mutex
	results  map[string]Result
	panics   map[string]bool
	attempts []string
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{results: map[string]Result{}, panics: map[string]bool{}}
}

func (s *scriptedExecutor) Execute(_ context.Context, st Strategy) Result {
	s.mu.Lock()
	s.attempts = append(s.attempts, st.Name)
	s.mu.Unlock()

	if s.panics[st.Name] {
		panic("boom")
	}
	if res, ok := s.results[st.Name]; ok {
		return res
	}
	return Failure(ErrNotFound)
}

func trimmed(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	return v, v != "" && v != "None"
}

func steps(names ...string) []Step[string] {
	out := make([]Step[string], 0, len(names))
	for _, n := range names {
		out = append(out, Step[string]{
			Strategy: Strategy{Name: n, Kind: KindCommand, Command: []string{n}},
			Parse:    trimmed,
		})
	}
	return out
}

func TestRunner_Fact_StopsAtFirstSuccess(t *testing.T) {
	exec := newScriptedExecutor()
	exec.results["a"] = Failure(errors.New("exit status 1"))
	exec.results["b"] = Success("12.2\n")
	exec.results["c"] = Success("11.8")

	fact := NewRunner(exec, nil).Fact(context.Background(), capability.Toolkit, steps("a", "b", "c"))

	assert.Equal(t, capability.Detected("12.2"), fact)
	assert.Equal(t, []string{"a", "b"}, exec.attempts, "c must never be attempted")
}

func TestRunner_Fact_AllFail(t *testing.T) {
	exec := newScriptedExecutor()
	exec.results["a"] = Failure(ErrTimeout)
	exec.results["b"] = Success("None")

	fact := NewRunner(exec, nil).Fact(context.Background(), capability.CuDNN, steps("a", "b", "c"))

	assert.False(t, fact.IsDetected())
	assert.Equal(t, []string{"a", "b", "c"}, exec.attempts)
}

func TestRunner_Fact_EmptyChain(t *testing.T) {
	fact := NewRunner(newScriptedExecutor(), nil).Fact(context.Background(), capability.Driver, nil)
	assert.Equal(t, capability.NotDetected, fact)
}

func TestRunner_Fact_SentinelFallsThrough(t *testing.T) {
	exec := newScriptedExecutor()
	exec.results["torch"] = Success("None")
	exec.results["tf"] = Success("8.9.2")

	fact := NewRunner(exec, nil).Fact(context.Background(), capability.CuDNN, steps("torch", "tf"))

	assert.Equal(t, capability.Detected("8.9.2"), fact)
}

func TestRunner_Fact_PanicIsAFailure(t *testing.T) {
	exec := newScriptedExecutor()
	exec.panics["a"] = true
	exec.results["b"] = Success("535.104.05")

	fact := NewRunner(exec, nil).Fact(context.Background(), capability.Driver, steps("a", "b"))

	assert.Equal(t, capability.Detected("535.104.05"), fact)
}

func TestRunner_Fact_ParserPanicIsAFailure(t *testing.T) {
	exec := newScriptedExecutor()
	exec.results["a"] = Success("x")
	exec.results["b"] = Success("3.11.4")

	chain := steps("a", "b")
	chain[0].Parse = func(string) (string, bool) { panic("bad parser") }

	fact := NewRunner(exec, nil).Fact(context.Background(), capability.Python, chain)
	assert.Equal(t, capability.Detected("3.11.4"), fact)
}

func TestRunner_Fact_CancelledContext(t *testing.T) {
	exec := newScriptedExecutor()
	exec.results["a"] = Success("1.0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fact := NewRunner(exec, nil).Fact(ctx, capability.Pip, steps("a"))
	assert.False(t, fact.IsDetected())
	assert.Empty(t, exec.attempts)
}

func TestRun_Generic(t *testing.T) {
	exec := newScriptedExecutor()
	exec.results["smi"] = Success("Tesla T4, 15360\n")

	chain := []Step[[]string]{
		{
			Strategy: Strategy{Name: "smi", Kind: KindCommand, Command: []string{"nvidia-smi"}},
			Parse: func(raw string) ([]string, bool) {
				lines := strings.Split(strings.TrimSpace(raw), "\n")
				return lines, len(lines) > 0 && lines[0] != ""
			},
		},
	}

	got, ok := Run(context.Background(), NewRunner(exec, nil), "gpus", chain)
	require.True(t, ok)
	assert.Equal(t, []string{"Tesla T4, 15360"}, got)
}

func TestRun_MissingParserFallsThrough(t *testing.T) {
	exec := newScriptedExecutor()
	exec.results["a"] = Success("1")
	exec.results["b"] = Success("2")

	chain := steps("a", "b")
	chain[0].Parse = nil

	got, ok := Run(context.Background(), NewRunner(exec, nil), "x", chain)
	require.True(t, ok)
	assert.Equal(t, "2", got)
	assert.Equal(t, []string{"b"}, exec.attempts)
}
