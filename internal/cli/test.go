package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Othello1111/edx-platform/internal/blocktype"
	"github.com/Othello1111/edx-platform/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update   bool   // regenerate golden files
	Filter   string // glob on the scenario file name
	TypesDir string // extra CUE block types
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name          string   `json:"name"`
	Pass          bool     `json:"pass"`
	GoldenUpdated bool     `json:"golden_updated,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r TestResult) Text(w io.Writer) {
	if r.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range r.Scenarios {
		switch {
		case s.Pass && s.GoldenUpdated:
			fmt.Fprintf(w, "✓ %s (golden updated)\n", s.Name)
		case s.Pass:
			fmt.Fprintf(w, "✓ %s\n", s.Name)
		default:
			fmt.Fprintf(w, "✗ %s\n", s.Name)
			for _, e := range s.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run runtime scenarios",
		Long: `Run YAML scenarios against a fresh in-memory runtime.

Each scenario's trace is compared against <scenarios-dir>/golden/<name>.golden
when that file exists. Scenarios without a golden file are judged by their
expectations and assertions alone.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)`,
		Example: `  blockrt test ./scenarios
  blockrt test ./scenarios --filter "edit_*"
  blockrt test ./scenarios --update
  blockrt test ./scenarios --types ./blocktypes --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.TypesDir, "types", "", "directory of extra CUE block types")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, dir string) error {
	out := opts.formatter(cmd)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return WrapExitError(ExitCommandError, "invalid filter pattern", err)
		}
	}

	var harnessOpts []harness.Option
	if opts.TypesDir != "" {
		types, err := blocktype.Builtin()
		if err == nil {
			err = types.LoadDir(opts.TypesDir)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load block types", err)
		}
		harnessOpts = append(harnessOpts, harness.WithBlockTypes(types))
	}
	if opts.Verbose {
		harnessOpts = append(harnessOpts, harness.WithLogger(newLogger(out.GetErrWriter(), 0, true)))
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{Scenarios: []ScenarioResult{}, Total: len(files)}
	for _, path := range files {
		out.VerboseLog("running %s", path)
		sr := runScenario(cmd, path, opts.Update, harnessOpts)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if err := out.Success(result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

// findScenarioFiles lists the .yaml and .yml files under dir, skipping
// the golden directory.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func runScenario(cmd *cobra.Command, path string, update bool, opts []harness.Option) ScenarioResult {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fail := func(format string, args ...any) ScenarioResult {
		return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf(format, args...)}}
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return fail("load error: %v", err)
	}
	name = scenario.Name

	result, err := harness.Run(cmd.Context(), scenario, opts...)
	if err != nil {
		return fail("execution error: %v", err)
	}
	trace, err := harness.MarshalTrace(scenario.Name, result.Trace)
	if err != nil {
		return fail("marshal trace: %v", err)
	}

	sr := ScenarioResult{Name: name, Pass: result.Pass, Errors: result.Errors}
	golden := goldenFilePath(path)
	if update {
		if err := os.MkdirAll(filepath.Dir(golden), 0755); err != nil {
			return fail("golden update error: %v", err)
		}
		if err := os.WriteFile(golden, trace, 0644); err != nil {
			return fail("golden update error: %v", err)
		}
		sr.GoldenUpdated = true
		return sr
	}

	want, err := os.ReadFile(golden)
	if errors.Is(err, fs.ErrNotExist) {
		return sr
	}
	if err != nil {
		return fail("golden comparison error: %v", err)
	}
	if !bytes.Equal(want, trace) {
		sr.Pass = false
		sr.Errors = append(sr.Errors, "trace does not match golden file (run with --update to regenerate)")
	}
	return sr
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}
