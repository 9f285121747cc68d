// Package director wires the pipeline together: interpret an instruction
// against the scene index, validate the resulting plan, compile it, execute
// it, and report per-operation outcomes.
package director

import (
	"context"
	"fmt"
	"os"

	"github.com/clipforge/clipforge/internal/compile"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/executor"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/history"
	"github.com/clipforge/clipforge/internal/intent"
	"github.com/clipforge/clipforge/internal/plan"
	"github.com/clipforge/clipforge/internal/scene"
	"github.com/clipforge/clipforge/pkg/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Director runs the edit pipeline for one configuration.
type Director struct {
	opts     config.Options
	source   scene.Source
	resolver intent.Resolver
	runner   executor.Runner
	store    *history.Store
	log      *logrus.Logger
}

// Option customizes a Director.
type Option func(*Director)

// WithRunner swaps the transcoder runner (used by tests).
func WithRunner(r executor.Runner) Option {
	return func(d *Director) { d.runner = r }
}

// WithHistory attaches a result history store.
func WithHistory(s *history.Store) Option {
	return func(d *Director) { d.store = s }
}

// New creates a Director over a scene source and an intent resolver.
func New(opts config.Options, source scene.Source, resolver intent.Resolver, log *logrus.Logger, dirOpts ...Option) *Director {
	opts.Defaults()
	d := &Director{
		opts:     opts,
		source:   source,
		resolver: resolver,
		runner:   executor.NewFFmpegRunner(log),
		log:      log,
	}
	for _, o := range dirOpts {
		o(d)
	}
	return d
}

// Report is the outcome of one run: the executed plan and every operation's
// terminal status.
type Report struct {
	Plan    types.EditPlan          `json:"plan"`
	Results []types.ExecutionResult `json:"results"`
}

// AllOK reports whether every operation succeeded.
func (r *Report) AllOK() bool {
	for _, res := range r.Results {
		if res.Status != types.StatusOK {
			return false
		}
	}
	return true
}

// FinalArtifacts lists output paths of succeeded operations nothing else
// consumed.
func (r *Report) FinalArtifacts() []string {
	consumed := map[string]bool{}
	for _, op := range r.Plan.Operations {
		for _, dep := range op.DependsOn {
			consumed[dep] = true
		}
	}
	var outs []string
	for _, res := range r.Results {
		if res.Status == types.StatusOK && !consumed[res.OperationID] && res.OutputPath != "" {
			outs = append(outs, res.OutputPath)
		}
	}
	return outs
}

// Plan interprets the instruction into a validated edit plan without side
// effects. On validation violations the interpreter is consulted once more
// with the violations as added context before the error is surfaced.
func (d *Director) Plan(ctx context.Context, videoID, instruction string) (types.EditPlan, error) {
	scenes, err := d.source.Scenes(ctx, videoID)
	if err != nil {
		return types.EditPlan{}, err
	}
	d.log.WithField("video_id", videoID).Debugf("scene index has %d scenes", len(scenes))

	p, err := d.interpret(ctx, videoID, instruction, scenes)
	if err != nil {
		return types.EditPlan{}, err
	}

	if vs := plan.Validate(p, scenes); vs != nil {
		d.log.WithField("video_id", videoID).Warnf("plan invalid, re-interpreting: %v", vs)
		retryInstruction := fmt.Sprintf("%s\nThe previous plan was rejected: %s", instruction, vs.Error())
		p2, err2 := d.interpret(ctx, videoID, retryInstruction, scenes)
		if err2 != nil {
			return types.EditPlan{}, vs
		}
		if vs2 := plan.Validate(p2, scenes); vs2 != nil {
			return types.EditPlan{}, vs2
		}
		p = p2
	}

	return p, nil
}

func (d *Director) interpret(ctx context.Context, videoID, instruction string, scenes []types.SceneDescriptor) (types.EditPlan, error) {
	si, err := d.resolver.Resolve(ctx, instruction)
	if err != nil {
		return types.EditPlan{}, err
	}

	p, err := intent.Expand(videoID, si, scenes)
	if errors.Is(err, intent.ErrNoMatchingContent) && d.opts.FallbackFull {
		if d.opts.SourcePath == "" {
			return types.EditPlan{}, errors.New("full-video fallback requires a source file")
		}
		meta, perr := ffmpeg.Probe(d.opts.SourcePath)
		if perr != nil {
			return types.EditPlan{}, errors.Wrap(perr, "fallback plan needs source duration")
		}
		d.log.WithField("video_id", videoID).Info("nothing matched, falling back to full-video plan")
		return intent.FullVideoPlan(videoID, meta.Duration), nil
	}
	return p, err
}

// Run executes the full pipeline and returns the per-operation report.
// Partial failures still produce the artifacts that succeeded.
func (d *Director) Run(ctx context.Context, videoID, instruction string) (*Report, error) {
	p, err := d.Plan(ctx, videoID, instruction)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return &Report{Plan: p}, nil
	}

	for _, dir := range []string{d.opts.OutputDir, d.opts.TempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s", dir)
		}
	}

	compiler := compile.New(d.opts.SourcePath, d.opts.TempDir, d.opts.OutputDir)
	cmds, err := compiler.CompilePlan(p)
	if err != nil {
		return nil, err
	}
	for _, cmd := range cmds {
		if cmd.OutputPath == d.opts.SourcePath {
			return nil, errors.Errorf("operation %s would overwrite the source input", cmd.Operation.ID)
		}
	}

	exec := executor.New(d.runner, d.opts.WorkerLimit, d.opts.MaxRetries, d.opts.RetryBackoff, d.log)
	results := exec.Execute(ctx, cmds)

	report := &Report{Plan: p, Results: results}
	if d.store != nil {
		if err := d.store.Append(ctx, videoID, instruction, results); err != nil {
			d.log.WithError(err).Warn("failed to record run history")
		}
	}
	return report, nil
}
