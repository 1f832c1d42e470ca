// Package probe executes probing strategies and chains them into ordered
// fallbacks. A strategy is one way of discovering a capability: running a
// command, scanning a directory tree, looking through a path-list variable,
// or querying a library in process.
package probe

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// Kind tags how a strategy is executed.
type Kind string

const (
	// KindCommand runs an external command and captures its stdout.
	KindCommand Kind = "external-command"
	// KindFileScan walks search roots for a named file.
	KindFileScan Kind = "filesystem-scan"
	// KindEnvironment looks for a named file in the directories of a path-list variable.
	KindEnvironment Kind = "environment-derived"
	// KindLibrary calls an in-process query that renders its answer as text.
	KindLibrary Kind = "library-query"
)

var (
	// ErrNotFound means a scan finished without a matching file.
	ErrNotFound = errors.New("no matching file found")
	// ErrTimeout means a strategy attempt exceeded its time budget.
	ErrTimeout = errors.New("strategy timed out")
	// ErrNoQuery means a library-query strategy has no query function.
	ErrNoQuery = errors.New("library query not configured")
	// ErrEmptyCommand means an external-command strategy has no argv.
	ErrEmptyCommand = errors.New("empty command")
	// ErrUnparseable means a strategy produced output its parser rejected.
	ErrUnparseable = errors.New("output could not be parsed")
)

// Strategy describes one probing method.
type Strategy struct {
	Name string
	Kind Kind

	// Command is the argv for KindCommand.
	Command []string

	// Roots are walked recursively for KindFileScan.
	Roots []string
	// FileNames are matched against base names by scans and env lookups.
	FileNames []string
	// MaxDepth bounds a scan below each root. Zero walks the whole tree.
	MaxDepth int

	// EnvVar names the path-list variable for KindEnvironment.
	EnvVar string

	// RunArgs, when non-nil, executes the located file with these arguments
	// instead of reading it.
	RunArgs []string

	// Query backs KindLibrary.
	Query func(ctx context.Context) (string, error)
}

// Label returns a short human readable description used in logs.
func (s Strategy) Label() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Kind {
	case KindCommand:
		return strings.Join(s.Command, " ")
	case KindFileScan:
		return "scan " + strings.Join(s.Roots, ",") + " for " + strings.Join(s.FileNames, "|")
	case KindEnvironment:
		return "$" + s.EnvVar + " for " + strings.Join(s.FileNames, "|")
	default:
		return string(s.Kind)
	}
}

// cacheKey identifies strategies whose outcome only depends on their data.
// Library queries are opaque functions and are never cached.
func (s Strategy) cacheKey() (string, bool) {
	if s.Kind == KindLibrary {
		return "", false
	}
	parts := []string{
		string(s.Kind),
		strings.Join(s.Command, "\x1f"),
		strings.Join(s.Roots, "\x1f"),
		strings.Join(s.FileNames, "\x1f"),
		strconv.Itoa(s.MaxDepth),
		s.EnvVar,
		strings.Join(s.RunArgs, "\x1f"),
	}
	return strings.Join(parts, "\x1e"), true
}

// Result is the outcome of one strategy attempt: the raw output on success,
// or the reason it failed.
type Result struct {
	Output string
	Err    error
}

// OK reports whether the attempt succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Success builds a successful result.
func Success(output string) Result {
	return Result{Output: output}
}

// Failure builds a failed result.
func Failure(err error) Result {
	return Result{Err: err}
}
