// Package loader orchestrates a full script load: bundled libraries are
// materialized, imports discovered, assets copied, every script evaluated
// into one engine, and the loader registered for lifecycle signals.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/chattriggers/ctjs/internal/lifecycle"
	"github.com/chattriggers/ctjs/internal/state"
	"github.com/chattriggers/ctjs/pkg/aggregator"
	"github.com/chattriggers/ctjs/pkg/config"
	cctx "github.com/chattriggers/ctjs/pkg/context"
	"github.com/chattriggers/ctjs/pkg/discovery"
	"github.com/chattriggers/ctjs/pkg/interfaces"
	"github.com/chattriggers/ctjs/pkg/logger"
	"github.com/chattriggers/ctjs/pkg/resources"
	"github.com/chattriggers/ctjs/pkg/scripting"
	"github.com/chattriggers/ctjs/pkg/types"
)

// Dependencies are the collaborators of a Loader. Registry, State and
// Notifier are optional.
type Dependencies struct {
	Paths         config.Paths
	Aggregator    *aggregator.Aggregator
	Materializer  *resources.Materializer
	EngineFactory scripting.Factory
	Registry      interfaces.ListenerRegistry
	State         interfaces.StateStore
	Notifier      interfaces.Notifier
	Logger        logger.Logger
}

// Loader owns the engine, dispatcher and imports of one installation. It is
// driven from a single goroutine.
type Loader struct {
	deps       Dependencies
	logger     logger.Logger
	engine     scripting.Engine
	dispatcher *lifecycle.Dispatcher
	imports    []types.Import
	registered bool
	last       *Report
}

// New creates a loader with a fresh engine. Nothing is read from disk until Load.
func New(deps Dependencies) (*Loader, error) {
	if deps.Aggregator == nil {
		return nil, errors.New("loader requires an aggregator")
	}
	if deps.EngineFactory == nil {
		return nil, errors.New("loader requires an engine factory")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if deps.Materializer == nil {
		deps.Materializer = resources.NewMaterializer(nil, deps.Logger)
	}

	l := &Loader{
		deps:   deps,
		logger: deps.Logger.WithComponent("loader"),
	}
	if err := l.reset(); err != nil {
		return nil, err
	}
	return l, nil
}

// Load runs every load step in order. A failing step is recorded in the
// report and logged; later steps still run. Cancelling ctx stops the load
// between steps.
func (l *Loader) Load(ctx context.Context) *Report {
	ctx = cctx.WithOperation(cctx.EnrichContext(ctx), "load")
	log := logger.WithContext(ctx, l.logger)

	report := &Report{
		LoadID:    cctx.GetLoadID(ctx),
		StartedAt: cctx.GetStartTime(ctx),
	}
	paths := l.deps.Paths

	log.Info("Loading scripts", logger.WithField("mod_root", paths.ModRoot))

	steps := []struct {
		stage types.Stage
		run   func()
	}{
		{types.StageMaterialize, func() { l.materialize(report) }},
		{types.StageDiscover, func() { l.discover(report) }},
		{types.StageAssets, func() { l.propagateAssets(report) }},
		{types.StageEvaluate, func() { l.evaluate(report) }},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			report.add(types.NewFailure(step.stage, "load", err))
			break
		}
		step.run()
	}

	if ctx.Err() == nil && l.deps.Registry != nil && !l.registered {
		l.deps.Registry.Register(l)
		l.registered = true
	}

	report.Duration = cctx.GetDuration(ctx)
	l.last = report
	l.finish(log, report)
	return report
}

// Reload discards the engine and dispatcher, including disabled entry
// points, and loads again from disk
func (l *Loader) Reload(ctx context.Context) (*Report, error) {
	if err := l.reset(); err != nil {
		return nil, err
	}
	l.logger.Info("Reloading scripts")
	return l.Load(ctx), nil
}

// OnTick dispatches the tick entry points
func (l *Loader) OnTick() {
	l.dispatcher.OnTick()
}

// OnWorldLoad dispatches the world load entry points
func (l *Loader) OnWorldLoad() {
	l.dispatcher.OnWorldLoad()
}

// Dispatch routes an arbitrary trigger through the current dispatcher
func (l *Loader) Dispatch(trigger types.Trigger) (any, error) {
	return l.dispatcher.Dispatch(trigger)
}

// Imports returns the imports from the most recent load
func (l *Loader) Imports() []types.Import {
	return append([]types.Import(nil), l.imports...)
}

// EntryStates returns the dispatcher table keyed by function name
func (l *Loader) EntryStates() map[string]types.EntryState {
	return l.dispatcher.States()
}

// LastReport returns the report of the most recent load, or nil
func (l *Loader) LastReport() *Report {
	return l.last
}

// Paths returns the resolved layout the loader works on
func (l *Loader) Paths() config.Paths {
	return l.deps.Paths
}

func (l *Loader) reset() error {
	engine, err := l.deps.EngineFactory()
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	l.engine = engine
	l.dispatcher = lifecycle.NewDispatcher(engine, l.deps.Logger)
	l.dispatcher.OnDisabled(l.entryPointDisabled)
	return nil
}

func (l *Loader) materialize(report *Report) {
	paths := l.deps.Paths
	libs := []struct {
		resource  string
		dest      string
		overwrite bool
	}{
		{paths.ProvidedLibsResource, paths.ProvidedLibsFile, true},
		{paths.CustomLibsResource, paths.CustomLibsFile, false},
	}

	for _, lib := range libs {
		if err := l.deps.Materializer.Materialize(lib.resource, lib.dest, lib.overwrite); err != nil {
			report.add(types.NewFailure(types.StageMaterialize, lib.resource, err))
		}
	}
}

func (l *Loader) discover(report *Report) {
	imports, err := discovery.Discover(l.deps.Paths.Imports, l.deps.Aggregator)
	l.imports = imports
	report.Imports = imports

	for _, e := range discovery.Errors(err) {
		report.add(types.NewFailure(types.StageDiscover, subjectOf(e, l.deps.Paths.Imports), e))
	}
}

func (l *Loader) propagateAssets(report *Report) {
	copied, err := discovery.PropagateAssets(l.deps.Paths.Imports, l.deps.Paths.Assets)
	report.Assets = copied

	for _, e := range discovery.Errors(err) {
		report.add(types.NewFailure(types.StageAssets, subjectOf(e, l.deps.Paths.Imports), e))
	}
}

func (l *Loader) evaluate(report *Report) {
	type script struct {
		name   string
		source string
	}

	var scripts []script
	for _, file := range []string{l.deps.Paths.ProvidedLibsFile, l.deps.Paths.CustomLibsFile} {
		source, err := l.deps.Aggregator.Aggregate(file)
		if err != nil {
			report.add(types.NewFailure(types.StageAggregate, filepath.Base(file), err))
			continue
		}
		scripts = append(scripts, script{name: filepath.Base(file), source: source})
	}
	for _, imp := range l.imports {
		scripts = append(scripts, script{name: imp.Name, source: imp.Script})
	}

	for _, s := range scripts {
		if err := l.engine.Evaluate(s.name, s.source); err != nil {
			failure := types.NewFailure(types.StageEvaluate, s.name, err)
			report.add(failure)
			if l.deps.Notifier != nil {
				l.deps.Notifier.NotifyScriptFailure(failure)
			}
			continue
		}
		report.Evaluated = append(report.Evaluated, s.name)
	}
}

func (l *Loader) finish(log logger.Logger, report *Report) {
	for _, f := range report.Failures {
		log.Error("Load step failed",
			logger.WithField("stage", string(f.Stage)),
			logger.WithField("subject", f.Subject),
			logger.WithError(f.Err))
	}

	if report.OK() {
		log.Success("Scripts loaded",
			logger.WithField("imports", len(report.Imports)),
			logger.WithField("evaluated", len(report.Evaluated)))
	} else {
		log.Warn("Scripts loaded with failures",
			logger.WithField("imports", len(report.Imports)),
			logger.WithField("failures", len(report.Failures)))
	}

	if l.deps.State != nil {
		s := &state.LoaderState{
			LoadID:      report.LoadID,
			LoadedAt:    report.StartedAt,
			Duration:    report.Duration,
			Imports:     state.Summarize(report.Imports),
			EntryPoints: l.dispatcher.States(),
			Failures:    report.Failures,
		}
		if err := l.deps.State.Save(s); err != nil {
			log.Warn("Failed to save loader state", logger.WithError(err))
		}
	}

	if l.deps.Notifier != nil {
		l.deps.Notifier.NotifyLoadComplete(len(report.Imports), len(report.Failures), report.Duration)
	}
}

func (l *Loader) entryPointDisabled(ep types.EntryPoint, err error) {
	if l.deps.State != nil {
		failure := types.NewFailure(types.StageDispatch, ep.String(), err)
		if saveErr := l.deps.State.SetEntryPoint(ep, types.EntryStateDisabled, &failure); saveErr != nil {
			l.logger.Debug("Failed to record entry point state", logger.WithError(saveErr))
		}
	}
	if l.deps.Notifier != nil {
		l.deps.Notifier.NotifyEntryPointDisabled(ep, err)
	}
}

func subjectOf(err error, fallback string) string {
	var ie *discovery.ImportError
	if errors.As(err, &ie) {
		return ie.Name
	}
	return fallback
}
