package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/ehr/formula-engine/internal/domain/formula"
	"github.com/ehr/formula-engine/internal/domain/indicator"
	"github.com/ehr/formula-engine/internal/domain/metadata"
	"github.com/ehr/formula-engine/internal/expression"
	"github.com/ehr/formula-engine/internal/platform/reporting"
)

// The offline commands work against a catalog file and need no database.

type offlineFlags struct {
	catalog   string
	evaluator string
}

func (f *offlineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.catalog, "catalog", "", "Metadata catalog file (.yaml, .yml, .hjson or .json)")
	cmd.Flags().StringVar(&f.evaluator, "evaluator", expression.StrategyTree, "Evaluation strategy: tree or substitution")
}

// service builds a formula service over the catalog. Without a catalog every
// reference is unknown to validation and description.
func (f *offlineFlags) service(cmd *cobra.Command) (*formula.Service, *metadata.Snapshot, expression.Evaluator, error) {
	eval, err := expression.NewEvaluator(f.evaluator)
	if err != nil {
		return nil, nil, nil, err
	}
	snap := metadata.NewSnapshot(nil)
	if f.catalog != "" {
		c, err := metadata.LoadCatalog(f.catalog)
		if err != nil {
			return nil, nil, nil, err
		}
		if snap, err = c.Snapshot(); err != nil {
			return nil, nil, nil, err
		}
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(zerolog.WarnLevel)
	return formula.NewService(metadata.StaticSource{S: snap}, eval, logger), snap, eval, nil
}

func evaluateCmd() *cobra.Command {
	var (
		flags   offlineFlags
		values  []string
		samples []string
		days    int
		policy  string
	)
	cmd := &cobra.Command{
		Use:   "evaluate <formula>",
		Short: "Evaluate a formula against literal values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := flags.service(cmd)
			if err != nil {
				return err
			}
			req := formula.EvaluateRequest{Formula: args[0]}
			if req.Values, err = parseAssignments(values); err != nil {
				return err
			}
			if req.Samples, err = parseSamples(samples); err != nil {
				return err
			}
			if req.Policy, err = expression.ParseMissingValuePolicy(policy); err != nil {
				return err
			}
			if cmd.Flags().Changed("days") {
				req.Days = expression.Days(days)
			}
			resp, err := svc.Evaluate(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Value.String())
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&values, "value", nil, "Item value as key=number, e.g. deA.cocB=12 (repeatable)")
	cmd.Flags().StringArrayVar(&samples, "sample", nil, "Aggregate samples as argument=n1,n2,... (repeatable)")
	cmd.Flags().IntVar(&days, "days", 0, "Days in the period, for [days]")
	cmd.Flags().StringVar(&policy, "policy", "", "Missing value policy, e.g. SKIP_IF_ANY_VALUE_MISSING")
	return cmd
}

func validateCmd() *cobra.Command {
	var (
		flags  offlineFlags
		report string
		title  string
	)
	cmd := &cobra.Command{
		Use:   "validate <formula>...",
		Short: "Validate formulas against a metadata catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := flags.service(cmd)
			if err != nil {
				return err
			}
			named := make([]formula.NamedFormula, len(args))
			for i, f := range args {
				named[i] = formula.NamedFormula{Name: fmt.Sprintf("#%d", i+1), Formula: f}
			}
			checks, err := svc.Check(cmd.Context(), named)
			if err != nil {
				return err
			}

			invalid := 0
			out := cmd.OutOrStdout()
			for _, c := range checks {
				detail := c.Description
				if c.Outcome != expression.Valid.String() {
					invalid++
					detail = c.Message
				}
				fmt.Fprintf(out, "%-28s %s\t%s\n", c.Outcome, c.Formula, detail)
			}

			if report != "" {
				html, err := svc.Report(cmd.Context(), formula.ReportRequest{Title: title, Formulas: named})
				if err != nil {
					return err
				}
				if err := os.WriteFile(report, html, 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d formulas are invalid", invalid, len(checks))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&report, "report", "", "Also write an HTML report to this file")
	cmd.Flags().StringVar(&title, "title", "", "Report title")
	return cmd
}

func describeCmd() *cobra.Command {
	var flags offlineFlags
	cmd := &cobra.Command{
		Use:   "describe <formula>",
		Short: "Replace every reference in a formula with its display name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := flags.service(cmd)
			if err != nil {
				return err
			}
			resp, err := svc.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Description)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// exportFile is the input of the export command.
type exportFile struct {
	Period     string             `yaml:"period"`
	Days       *int               `yaml:"days"`
	Values     map[string]float64 `yaml:"values"`
	Indicators []struct {
		Name        string  `yaml:"name"`
		Numerator   string  `yaml:"numerator"`
		Denominator string  `yaml:"denominator"`
		Factor      float64 `yaml:"factor"`
		Annualized  bool    `yaml:"annualized"`
		Decimals    *int    `yaml:"decimals"`
	} `yaml:"indicators"`
}

func loadExportFile(path string) (*exportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f exportFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Indicators) == 0 {
		return nil, fmt.Errorf("%s lists no indicators", path)
	}
	return &f, nil
}

func exportCmd() *cobra.Command {
	var (
		flags offlineFlags
		input string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Evaluate indicators from a file and write the results as xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, eval, err := flags.service(cmd)
			if err != nil {
				return err
			}
			f, err := loadExportFile(input)
			if err != nil {
				return err
			}
			rows, err := exportRows(f, snap, eval)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := reporting.WriteIndicatorWorkbook(&buf, f.Period, rows); err != nil {
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d indicator(s) to %s\n", len(rows), out)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&input, "input", "", "YAML file with period, values and indicators")
	cmd.Flags().StringVar(&out, "out", "indicators.xlsx", "Output workbook")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func exportRows(f *exportFile, snap *metadata.Snapshot, eval expression.Evaluator) ([]reporting.IndicatorRow, error) {
	in := snap.Bind(expression.Input{Values: f.Values, Days: f.Days})
	rows := make([]reporting.IndicatorRow, 0, len(f.Indicators))
	for _, def := range f.Indicators {
		ind := &indicator.Indicator{
			Name:        def.Name,
			Numerator:   def.Numerator,
			Denominator: def.Denominator,
			Factor:      def.Factor,
			Annualized:  def.Annualized,
			Decimals:    def.Decimals,
		}
		if ind.Factor == 0 {
			ind.Factor = 1
		}
		e, err := indicator.Compute(ind, eval, in)
		if err != nil {
			return nil, err
		}
		rows = append(rows, e.Row())
	}
	return rows, nil
}

// parseAssignments reads key=number pairs.
func parseAssignments(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected key=number, got %q", p)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("value of %s: %w", k, err)
		}
		out[strings.TrimSpace(k)] = n
	}
	return out, nil
}

// parseSamples reads argument=n1,n2,... pairs. The argument is split at the
// last '=' so that arguments may contain comparisons.
func parseSamples(pairs []string) (map[string][]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string][]float64, len(pairs))
	for _, p := range pairs {
		i := strings.LastIndex(p, "=")
		if i <= 0 {
			return nil, fmt.Errorf("expected argument=n1,n2,..., got %q", p)
		}
		key := strings.TrimSpace(p[:i])
		list := []float64{}
		for _, s := range strings.Split(p[i+1:], ",") {
			if strings.TrimSpace(s) == "" {
				continue
			}
			n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("sample of %s: %w", key, err)
			}
			list = append(list, n)
		}
		out[key] = list
	}
	return out, nil
}
