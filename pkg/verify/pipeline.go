package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/forge-conductor/pkg/logging"
)

// GateSpec is the configuration form of an unconditional command gate.
type GateSpec struct {
	Name    string        `yaml:"name" mapstructure:"name"`
	Command string        `yaml:"command" mapstructure:"command"`
	Args    []string      `yaml:"args,omitempty" mapstructure:"args"`
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// Config describes a pipeline: the ordered unconditional gates and which
// conditional gates to enable.
type Config struct {
	// Gates are the unconditional checks, run in order. Typically
	// typecheck, lint, tests.
	Gates []GateSpec `yaml:"gates" mapstructure:"gates"`

	// Preview enables the visual and runtime-probe gates against a
	// preview server.
	Preview *PreviewConfig `yaml:"preview,omitempty" mapstructure:"preview"`

	// Coverage enables the file-scope coverage heuristic.
	Coverage bool `yaml:"coverage,omitempty" mapstructure:"coverage"`

	VisualTimeout time.Duration `yaml:"visual_timeout,omitempty" mapstructure:"visual_timeout"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout,omitempty" mapstructure:"probe_timeout"`
}

// Pipeline runs the configured gates against a worktree.
type Pipeline struct {
	cfg    Config
	logger *logging.Logger
}

// NewPipeline creates a pipeline. The logger may be nil.
func NewPipeline(cfg Config, logger *logging.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger}
}

// Run executes the ordered gates and returns the combined verdict.
//
// The unconditional gates always run. If every one of them fails, the
// conditional gates are recorded as skipped rather than executed. A panic
// inside any gate is converted into a failing result for that gate alone.
// Preview resources acquired for the conditional gates are torn down before
// Run returns, on every path.
func (p *Pipeline) Run(ctx context.Context, dir string, scope Scope) *Result {
	result := &Result{Passed: true}

	unconditionalFailed := 0
	for _, spec := range p.cfg.Gates {
		gate := NewCommandGate(spec.Name, spec.Command, spec.Args, spec.Timeout)
		gateResult := p.runGate(ctx, gate, dir)
		if !gateResult.Passed {
			unconditionalFailed++
			result.Passed = false
		}
		result.Gates = append(result.Gates, gateResult)
	}

	allUnconditionalFailed := len(p.cfg.Gates) > 0 && unconditionalFailed == len(p.cfg.Gates)

	var conditional []Gate
	if p.cfg.Preview != nil {
		if allUnconditionalFailed {
			// Skipped below; no reason to spin up a server and browser.
			conditional = append(conditional, NewVisualGate(nil, p.cfg.VisualTimeout))
			conditional = append(conditional, NewProbeGate(p.cfg.Preview.URL, p.cfg.ProbeTimeout))
		} else {
			preview, err := StartPreview(ctx, *p.cfg.Preview, dir)
			if err != nil {
				// A preview that cannot start is a failing visual gate,
				// not an aborted pipeline.
				p.warnf("preview unavailable: %v", err)
				result.Passed = false
				result.Gates = append(result.Gates, GateResult{
					Gate:   "visual",
					Errors: []string{fmt.Sprintf("failed to start preview: %v", err)},
				})
			} else {
				defer preview.Close()
				conditional = append(conditional, NewVisualGate(preview, p.cfg.VisualTimeout))
				conditional = append(conditional, NewProbeGate(p.cfg.Preview.URL, p.cfg.ProbeTimeout))
			}
		}
	}
	if p.cfg.Coverage {
		conditional = append(conditional, NewCoverageGate(scope))
	}

	for _, gate := range conditional {
		if allUnconditionalFailed {
			result.Gates = append(result.Gates, GateResult{Gate: gate.Name(), Skipped: true})
			continue
		}
		gateResult := p.runGate(ctx, gate, dir)
		if !gateResult.Passed {
			result.Passed = false
		}
		result.Gates = append(result.Gates, gateResult)
	}

	return result
}

// runGate executes one gate with panic containment: a crash inside a gate
// becomes a failing result for that gate, never an aborted run.
func (p *Pipeline) runGate(ctx context.Context, gate Gate, dir string) (result GateResult) {
	defer func() {
		if r := recover(); r != nil {
			p.warnf("gate %s panicked: %v", gate.Name(), r)
			result = GateResult{
				Gate:   gate.Name(),
				Errors: []string{fmt.Sprintf("gate crashed: %v", r)},
			}
		}
	}()

	start := time.Now()
	result = gate.Run(ctx, dir)
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	p.infof("gate %s: passed=%v (%s)", gate.Name(), result.Passed, result.Duration)
	return result
}

func (p *Pipeline) infof(format string, v ...interface{}) {
	if p.logger != nil {
		p.logger.Infof(format, v...)
	}
}

func (p *Pipeline) warnf(format string, v ...interface{}) {
	if p.logger != nil {
		p.logger.Warnf(format, v...)
	}
}
