package loader

import (
	"errors"
	"time"

	"github.com/chattriggers/ctjs/pkg/types"
)

// Report is the outcome of one Load
type Report struct {
	LoadID    string
	StartedAt time.Time
	Duration  time.Duration
	Imports   []types.Import
	Assets    []string
	Evaluated []string
	Failures  []types.Failure
}

// OK reports whether every step succeeded
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}

// Err joins every failure, or returns nil
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// FailuresAt returns the failures recorded for stage
func (r *Report) FailuresAt(stage types.Stage) []types.Failure {
	var result []types.Failure
	for _, f := range r.Failures {
		if f.Stage == stage {
			result = append(result, f)
		}
	}
	return result
}

func (r *Report) add(f types.Failure) {
	r.Failures = append(r.Failures, f)
}
