package pipeline

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"sluice/internal/transform"
)

type SinkResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Report is the outcome of one run. A transform failure means no sink was
// attempted; sink failures are independent of each other.
type Report struct {
	RunID        string
	RowsRead     int
	RowsOut      int
	Nulled       transform.CoerceStats
	TransformErr error
	Sinks        []SinkResult
}

// Err joins every failure of the run, or returns nil.
func (r *Report) Err() error {
	var errs *multierror.Error
	if r.TransformErr != nil {
		errs = multierror.Append(errs, fmt.Errorf("transform: %w", r.TransformErr))
	}
	for _, s := range r.Sinks {
		if s.Err != nil {
			errs = multierror.Append(errs, fmt.Errorf("sink %s: %w", s.Name, s.Err))
		}
	}
	return errs.ErrorOrNil()
}

func (r *Report) OK() bool { return r.Err() == nil }
