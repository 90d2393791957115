package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/metacogma/edc-rule-validator-sub000/adversarial"
	"github.com/metacogma/edc-rule-validator-sub000/config"
	"github.com/metacogma/edc-rule-validator-sub000/engine"
	"github.com/metacogma/edc-rule-validator-sub000/llm"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
	"github.com/metacogma/edc-rule-validator-sub000/smt"
	"github.com/metacogma/edc-rule-validator-sub000/verify"
)

type appFlags struct {
	configPath string
	logLevel   string
	output     string
}

func rootCmd() *cobra.Command {
	flags := &appFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Edit-check rule verification and test generation",
		Long: `Edcheck verifies clinical-trial edit-check rules and generates
test suites for them.

Verification proves satisfiability, tautology, redundancy, and
cross-rule contradiction properties with the z3 SMT solver. Test
generation combines metamorphic, symbolic, adversarial, and
causal-graph techniques, filtered by multi-modal majority vote.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(flags.logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "", "Output file (default stdout)")

	cmd.AddCommand(verifyCmd(flags))
	cmd.AddCommand(generateCmd(flags))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func setupLogging(logLevel string) error {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", logLevel)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig loads an explicit config file, or the layered defaults
// when no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return config.NewLoader(slog.Default()).Load()
}

func solverOptions(cfg *config.Config) smt.Options {
	return smt.Options{
		Binary:  cfg.Solver.Binary,
		Timeout: cfg.Solver.Timeout,
	}
}

// loadInputs reads the study specification and rule set named by the
// positional arguments.
func loadInputs(specPath, rulesPath string) (*rules.Specification, []*rules.Rule, error) {
	spec, err := rules.LoadSpecification(specPath)
	if err != nil {
		return nil, nil, err
	}
	ruleList, err := rules.LoadRules(rulesPath)
	if err != nil {
		return nil, nil, err
	}

	ruleSet := make([]*rules.Rule, len(ruleList))
	for i := range ruleList {
		ruleSet[i] = &ruleList[i]
	}
	return spec, ruleSet, nil
}

// writeJSON writes v as indented JSON to the output file or stdout.
func writeJSON(outputPath string, v any) error {
	var w io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func verifyCmd(flags *appFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <spec.json> <rules.json>",
		Short: "Verify edit-check rules with the SMT solver",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			spec, ruleSet, err := loadInputs(args[0], args[1])
			if err != nil {
				return err
			}

			verifier := verify.NewVerifier(
				verify.WithSolver(solverOptions(cfg)),
				verify.WithMaxPairChecks(cfg.Solver.MaxPairChecks),
			)

			results := verifier.VerifyRuleSet(cmd.Context(), ruleSet, spec)

			invalid := 0
			for _, r := range results {
				if !r.Valid {
					invalid++
				}
			}
			slog.Info("verification complete",
				"rules", len(ruleSet),
				"invalid", invalid)

			if err := writeJSON(flags.output, results); err != nil {
				return err
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d rules failed verification", invalid, len(ruleSet))
			}
			return nil
		},
	}
	return cmd
}

func generateCmd(flags *appFlags) *cobra.Command {
	var (
		techniques    []string
		withProposer  bool
		metricsListen string
	)

	cmd := &cobra.Command{
		Use:   "generate <spec.json> <rules.json>",
		Short: "Generate test suites for edit-check rules",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			spec, ruleSet, err := loadInputs(args[0], args[1])
			if err != nil {
				return err
			}

			if metricsListen != "" {
				go serveMetrics(metricsListen)
			}

			opts := []engine.Option{
				engine.WithSolver(solverOptions(cfg)),
				engine.WithWorkers(cfg.Engine.Workers),
			}
			if cfg.Engine.Sequential {
				opts = append(opts, engine.WithSequential())
			}
			if withProposer {
				client := llm.NewClient(cfg.Registry())
				opts = append(opts, engine.WithGenerator(rules.TechniqueAdversarial,
					adversarial.NewGenerator(adversarial.WithProposer(llm.NewProposer(client)))))
			}

			selected, err := selectTechniques(techniques, cfg.Engine.Techniques)
			if err != nil {
				return err
			}

			eng := engine.NewEngine(opts...)
			suites, err := eng.GenerateTests(cmd.Context(), ruleSet, spec, selected...)
			if err != nil {
				return err
			}

			total := 0
			for _, cases := range suites {
				total += len(cases)
			}
			slog.Info("generation complete", "rules", len(suites), "tests", total)

			return writeJSON(flags.output, suites)
		},
	}

	cmd.Flags().StringSliceVarP(&techniques, "techniques", "t", nil,
		"Techniques to run (metamorphic, symbolic, adversarial, causal; default all)")
	cmd.Flags().BoolVar(&withProposer, "with-proposer", false,
		"Ask the configured text-generation model for extra adversarial mutations")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "",
		"Serve Prometheus metrics on this address during generation (e.g. :9090)")

	return cmd
}

// selectTechniques merges the flag and config technique filters; the
// flag wins when both are set.
func selectTechniques(flagValues, configValues []string) ([]rules.Technique, error) {
	names := flagValues
	if len(names) == 0 {
		names = configValues
	}

	selected := make([]rules.Technique, 0, len(names))
	for _, name := range names {
		t := rules.Technique(strings.ToLower(strings.TrimSpace(name)))
		if !t.IsValid() {
			return nil, fmt.Errorf("unknown technique %q", name)
		}
		if t == rules.TechniqueLLM {
			return nil, fmt.Errorf("technique %q has no standalone generator; use --with-proposer to add model-proposed adversarial cases", name)
		}
		selected = append(selected, t)
	}
	return selected, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics listener stopped", "addr", addr, "error", err)
	}
}
