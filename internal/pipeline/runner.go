package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sluice/internal/frame"
	"sluice/internal/logging"
	"sluice/internal/telemetry"
	"sluice/internal/transform"
	"sluice/sink"
	"sluice/source"
)

type namedSink struct {
	name    string
	adapter sink.Adapter
}

// brokenSink stands in for a sink whose configuration was rejected.
type brokenSink struct{ err error }

func (b brokenSink) Configure(any) error                       { return b.err }
func (b brokenSink) Write(context.Context, *frame.Frame) error { return b.err }
func (b brokenSink) Close() error                              { return nil }

// Runner reads the source once, passes the frame through every stage in
// order and hands the result to each sink in turn.
type Runner struct {
	runID  string
	source source.Adapter
	stages []transform.Stage
	sinks  []namedSink

	nulled transform.CoerceStats
}

func NewRunner(runID string) *Runner { return &Runner{runID: runID} }

func (r *Runner) RunID() string { return r.runID }

func (r *Runner) SetSource(s source.Adapter) { r.source = s }
func (r *Runner) AddStage(s transform.Stage) { r.stages = append(r.stages, s) }
func (r *Runner) AddSink(name string, s sink.Adapter) {
	r.sinks = append(r.sinks, namedSink{name: name, adapter: s})
}

// recordNulled is handed to the coercion stage.
func (r *Runner) recordNulled(stats transform.CoerceStats) {
	r.nulled = stats
	for col, n := range stats {
		telemetry.CellsNulled.WithLabelValues(col).Add(float64(n))
	}
	if total := stats.Total(); total > 0 {
		logging.L().Warn("values nulled by failed casts", "run", r.runID, "total", total, "by_column", map[string]int(stats))
	}
}

func (r *Runner) Run(ctx context.Context) *Report {
	rep := &Report{RunID: r.runID}
	log := logging.With("run", r.runID)
	defer r.close()

	f, err := r.transform(ctx, rep)
	if err != nil {
		rep.TransformErr = err
		log.Error("transform failed, no sink written", "err", err)
		return rep
	}
	rep.RowsOut = f.Len()
	rep.Nulled = r.nulled

	for _, s := range r.sinks {
		res := r.writeSink(ctx, s, f)
		rep.Sinks = append(rep.Sinks, res)
		telemetry.SinkWrites.WithLabelValues(s.name, telemetry.Outcome(res.Err)).Inc()
		if res.Err != nil {
			log.Error("sink write failed", "sink", s.name, "err", res.Err, "duration", res.Duration)
			continue
		}
		log.Info("sink write ok", "sink", s.name, "duration", res.Duration)
	}
	return rep
}

func (r *Runner) transform(ctx context.Context, rep *Report) (*frame.Frame, error) {
	if r.source == nil {
		return nil, errors.New("runner: no source configured")
	}
	f, err := r.source.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	rep.RowsRead = f.Len()
	logging.L().Info("source read", "run", r.runID, "rows", f.Len(), "columns", len(f.Columns()))

	for _, st := range r.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		out, err := st.Apply(ctx, f)
		telemetry.StageDuration.WithLabelValues(st.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", st.Name(), err)
		}
		f = out
	}
	return f, nil
}

// writeSink is the error boundary around one sink: a returned error or a
// panic is recorded and the next sink still runs.
func (r *Runner) writeSink(ctx context.Context, s namedSink, f *frame.Frame) (res SinkResult) {
	res.Name = s.name
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v", p)
		}
		res.Duration = time.Since(start)
	}()
	res.Err = s.adapter.Write(ctx, f)
	return res
}

func (r *Runner) close() {
	for _, s := range r.sinks {
		if err := s.adapter.Close(); err != nil {
			logging.L().Warn("sink close failed", "sink", s.name, "err", err)
		}
	}
	if r.source != nil {
		if err := r.source.Close(); err != nil {
			logging.L().Warn("source close failed", "err", err)
		}
	}
}
