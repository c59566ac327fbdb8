package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/inference"
	"github.com/Harshitk-cp/factgate/internal/rules"
	"github.com/Harshitk-cp/factgate/internal/shape"
)

type checkReport struct {
	File           string                 `json:"file"`
	Conforms       bool                   `json:"conforms"`
	Facts          int                    `json:"facts"`
	Violations     []domain.Violation     `json:"violations"`
	Contradictions []domain.Contradiction `json:"contradictions"`
	Derived        []domain.DerivedFact   `json:"derived"`
	Iterations     int                    `json:"reasoning_iterations"`
}

func newCheckCmd() *cobra.Command {
	var (
		rulesPath     string
		maxIterations int
	)
	cmd := &cobra.Command{
		Use:   "check <facts.yaml|facts.json>",
		Short: "Validate a fact file and report derivations and contradictions",
		Long: `Check loads the facts in the given file, validates them against the rule
set's shape constraints, derives everything the inference rules allow and
looks for contradictions in the closure. The report is printed as JSON.

Exits 1 when the facts do not conform.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := rules.Load(rulesPath)
			if err != nil {
				return err
			}
			facts, err := readFacts(args[0])
			if err != nil {
				return err
			}

			report, err := check(rs, maxIterations, facts)
			if err != nil {
				return err
			}
			report.File = args[0]

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Conforms {
				return errNonConforming
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rule set file (default: embedded tourism rule set)")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", inference.DefaultMaxIterations, "derivation pass bound")
	return cmd
}

func check(rs *domain.RuleSet, maxIterations int, facts []domain.Fact) (*checkReport, error) {
	g := domain.NewGraph(facts...)
	engine := inference.NewEngine(rs, maxIterations)

	closure, res, err := engine.Closure(g)
	if err != nil {
		return nil, err
	}

	report := &checkReport{
		Facts:          g.Len(),
		Violations:     shape.NewValidator(rs.Constraints).Validate(g).Violations,
		Contradictions: engine.FindContradictions(closure),
		Derived:        res.Derived,
		Iterations:     res.Iterations,
	}
	if report.Violations == nil {
		report.Violations = []domain.Violation{}
	}
	if report.Derived == nil {
		report.Derived = []domain.DerivedFact{}
	}
	report.Conforms = len(report.Violations) == 0 && len(report.Contradictions) == 0
	return report, nil
}

// readFacts loads a fact file. YAML and JSON share one layout: either a list
// of facts or a mapping with a facts key.
func readFacts(path string) ([]domain.Fact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read facts file")
	}

	raw := data
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		if raw, err = json.Marshal(doc); err != nil {
			return nil, errors.Wrapf(err, "convert %s", path)
		}
	default:
		return nil, errors.WithHint(
			errors.Newf("unsupported facts file %s", path),
			"use a .yaml, .yml or .json file",
		)
	}

	var facts []domain.Fact
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		var doc struct {
			Facts []domain.Fact `json:"facts"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, errors.Wrapf(err, "decode %s", path)
		}
		facts = doc.Facts
	} else if err := json.Unmarshal(raw, &facts); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	for i, f := range facts {
		if err := f.Validate(); err != nil {
			return nil, errors.Wrapf(err, "%s: fact %d", path, i)
		}
	}
	return facts, nil
}
