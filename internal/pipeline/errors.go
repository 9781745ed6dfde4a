package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/linuxmatters/voiceprep/internal/processor"
)

// Exit codes returned by the command line
const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitDecode      = 3
	ExitEmptyResult = 4
	ExitIO          = 5
	ExitInterrupted = 130
)

// StageError summarises the per-file failures of one stage
type StageError struct {
	Stage    Stage
	Files    int // files the stage attempted
	Failures *multierror.Error
}

func (e *StageError) Error() string {
	n := 0
	if e.Failures != nil {
		n = len(e.Failures.Errors)
	}
	if n == 1 {
		return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Failures.Errors[0])
	}
	return fmt.Sprintf("%s stage: %d of %d files failed", e.Stage, n, e.Files)
}

// Unwrap exposes every failure, in file order, to errors.Is and errors.As
func (e *StageError) Unwrap() []error {
	if e.Failures == nil {
		return nil
	}
	return e.Failures.WrappedErrors()
}

// ExitCode maps a run error to a process exit code. The kind of the first
// failure in file order decides the code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	switch processor.KindOf(err) {
	case processor.KindConfig:
		return ExitConfig
	case processor.KindDecode:
		return ExitDecode
	case processor.KindEmptyResult:
		return ExitEmptyResult
	case processor.KindIO:
		return ExitIO
	default:
		return ExitFailure
	}
}
