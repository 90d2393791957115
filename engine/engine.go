// Package engine orchestrates test generation: it fans a
// (rule, technique) work grid out to a bounded worker pool, isolates
// each task behind a bulkhead, merges results per rule, and filters
// them through multi-modal verification.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/metacogma/edc-rule-validator-sub000/adversarial"
	"github.com/metacogma/edc-rule-validator-sub000/causal"
	"github.com/metacogma/edc-rule-validator-sub000/metamorphic"
	"github.com/metacogma/edc-rule-validator-sub000/multimodal"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
	"github.com/metacogma/edc-rule-validator-sub000/smt"
	"github.com/metacogma/edc-rule-validator-sub000/symbolic"
)

// DefaultWorkers bounds the parallel worker pool.
const DefaultWorkers = 8

// Generator is one test-generation technique.
type Generator interface {
	GenerateTests(ctx context.Context, rule *rules.Rule, spec *rules.Specification) ([]rules.TestCase, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithSolver sets the solver options used by the default generators and
// verifier.
func WithSolver(opts smt.Options) Option {
	return func(e *Engine) { e.solver = opts }
}

// WithGenerator registers (or replaces) the generator for a technique.
func WithGenerator(technique rules.Technique, g Generator) Option {
	return func(e *Engine) { e.generators[technique] = g }
}

// WithVerifier replaces the multi-modal verifier.
func WithVerifier(v *multimodal.Verifier) Option {
	return func(e *Engine) { e.verifier = v }
}

// WithWorkers bounds the worker pool.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithSequential disables the worker pool; tasks run in grid order on
// the calling goroutine. Useful for deterministic tests.
func WithSequential() Option {
	return func(e *Engine) { e.parallel = false }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine runs the full generation pipeline for a rule set.
type Engine struct {
	solver     smt.Options
	generators map[rules.Technique]Generator
	verifier   *multimodal.Verifier
	workers    int
	parallel   bool
	logger     *slog.Logger
}

// NewEngine creates an engine. Techniques without an explicitly
// registered generator get the package defaults, all sharing the
// configured solver options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		generators: make(map[rules.Technique]Generator),
		workers:    DefaultWorkers,
		parallel:   true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = DefaultWorkers
	}
	if _, ok := e.generators[rules.TechniqueMetamorphic]; !ok {
		e.generators[rules.TechniqueMetamorphic] = metamorphic.NewTester(metamorphic.WithLogger(e.logger))
	}
	if _, ok := e.generators[rules.TechniqueSymbolic]; !ok {
		e.generators[rules.TechniqueSymbolic] = symbolic.NewExecutor(
			symbolic.WithSolver(e.solver), symbolic.WithLogger(e.logger))
	}
	if _, ok := e.generators[rules.TechniqueAdversarial]; !ok {
		e.generators[rules.TechniqueAdversarial] = adversarial.NewGenerator(adversarial.WithLogger(e.logger))
	}
	if _, ok := e.generators[rules.TechniqueCausal]; !ok {
		e.generators[rules.TechniqueCausal] = causal.NewGenerator(causal.WithLogger(e.logger))
	}
	if e.verifier == nil {
		e.verifier = multimodal.NewVerifier(
			multimodal.WithSolver(e.solver), multimodal.WithLogger(e.logger))
	}
	return e
}

// task is one cell of the work grid.
type task struct {
	rule      *rules.Rule
	technique rules.Technique
}

// GenerateTests runs the selected techniques over every rule and returns
// the verified suite keyed by rule id. With no techniques given, all
// registered techniques run in pipeline order. All tasks for a rule
// complete before that rule's verification step.
func (e *Engine) GenerateTests(ctx context.Context, ruleSet []*rules.Rule, spec *rules.Specification, techniques ...rules.Technique) (map[string][]rules.TestCase, error) {
	if len(techniques) == 0 {
		techniques = rules.Techniques()
	}

	var grid []task
	for _, r := range ruleSet {
		for _, t := range techniques {
			if _, ok := e.generators[t]; !ok {
				return nil, fmt.Errorf("no generator registered for technique %q", t)
			}
			grid = append(grid, task{rule: r, technique: t})
		}
	}

	byRule := make(map[string][]rules.TestCase, len(ruleSet))
	if e.parallel {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for _, t := range grid {
			t := t
			g.Go(func() error {
				cases := e.runTask(gctx, t, spec)
				mu.Lock()
				byRule[t.rule.ID] = append(byRule[t.rule.ID], cases...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for _, t := range grid {
			byRule[t.rule.ID] = append(byRule[t.rule.ID], e.runTask(ctx, t, spec)...)
		}
	}

	verified := make(map[string][]rules.TestCase, len(ruleSet))
	for _, r := range ruleSet {
		merged := byRule[r.ID]
		for i := range merged {
			merged[i].Description = fmt.Sprintf("[%s] %s", merged[i].Technique, merged[i].Description)
		}
		kept := e.verifier.Filter(ctx, r, spec, merged)
		testsDiscarded.Add(float64(len(merged) - len(kept)))
		verified[r.ID] = kept
		e.logger.Info("rule suite generated",
			"rule_id", r.ID, "generated", len(merged), "kept", len(kept))
	}
	return verified, nil
}

// runTask executes one (rule, technique) cell. The bulkhead contract:
// a panicking or failing technique logs, counts, and contributes zero
// tests without affecting sibling tasks.
func (e *Engine) runTask(ctx context.Context, t task, spec *rules.Specification) (cases []rules.TestCase) {
	start := time.Now()
	defer func() {
		taskDuration.WithLabelValues(string(t.technique)).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			techniqueFailures.WithLabelValues(string(t.technique)).Inc()
			e.logger.Error("technique panicked",
				"technique", t.technique, "rule_id", t.rule.ID,
				"panic", r, "stack", string(debug.Stack()))
			cases = nil
		}
	}()

	generated, err := e.generators[t.technique].GenerateTests(ctx, t.rule, spec)
	if err != nil {
		techniqueFailures.WithLabelValues(string(t.technique)).Inc()
		e.logger.Warn("technique failed",
			"technique", t.technique, "rule_id", t.rule.ID, "error", err)
		return nil
	}

	// Drop cases referencing fields the specification does not declare.
	kept := generated[:0]
	for _, tc := range generated {
		if err := tc.ValidateAgainst(spec); err != nil {
			e.logger.Debug("dropping test with undeclared fields", "error", err)
			continue
		}
		kept = append(kept, tc)
	}
	testsGenerated.WithLabelValues(string(t.technique)).Add(float64(len(kept)))
	return kept
}
