package extract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrToolNotFound is returned when pdftotext is not installed.
var ErrToolNotFound = errors.New("pdftotext not found in PATH (install poppler-utils)")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrToolNotFound
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

// CommandExtractor shells out to poppler's pdftotext, which copes with more
// layouts than the native parser.
type CommandExtractor struct {
	runner CommandRunner
}

// NewCommandExtractor creates an extractor that runs pdftotext.
func NewCommandExtractor() *CommandExtractor {
	return NewCommandExtractorWithRunner(execRunner{})
}

// NewCommandExtractorWithRunner creates an extractor using runner.
func NewCommandExtractorWithRunner(runner CommandRunner) *CommandExtractor {
	return &CommandExtractor{runner: runner}
}

// Extract implements Extractor.
func (e *CommandExtractor) Extract(ctx context.Context, path string) (string, error) {
	out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%w: %s: %s", ErrExtractionFailed, path, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, err)
	}
	// pdftotext separates pages with form feeds.
	return joinPages(strings.Split(string(out), "\f")), nil
}
