package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/bspgen/internal/generate"
	"github.com/roach88/bspgen/internal/ir"
)

// Run executes a scenario and returns the result.
//
// Each scenario generates into a fresh scratch directory that is removed
// afterwards. A generation failure is a failed result, not an error,
// unless the scenario expects it; the returned error covers harness
// problems only.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	out, err := os.MkdirTemp("", "bspgen-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	defer os.RemoveAll(out)

	req := scenario.Request()
	req.OutDir = out

	res, genErr := generate.Run(ctx, req)

	result := NewResult()
	if genErr != nil {
		result.ErrorCode = ir.CodeOf(genErr)
		switch {
		case scenario.ExpectError == "":
			result.AddError(fmt.Sprintf("generation failed: %v", genErr))
		case result.ErrorCode != scenario.ExpectError:
			result.AddError(fmt.Sprintf("expected error %s, got: %v", scenario.ExpectError, genErr))
		}
		return result, nil
	}
	if scenario.ExpectError != "" {
		result.AddError(fmt.Sprintf("expected error %s, generation succeeded", scenario.ExpectError))
	}

	result.MCU = res.MCU
	result.Fingerprint = res.Fingerprint
	result.IR = res.IR
	if err := collectOutputs(result, out, res); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// collectOutputs reads every generated file into r.
func collectOutputs(r *Result, out string, res *generate.Result) error {
	read := func(path string) (string, error) {
		rel, err := filepath.Rel(out, path)
		if err != nil {
			return "", err
		}
		rel = filepath.ToSlash(rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read output: %w", err)
		}
		r.Outputs[rel] = string(data)
		return rel, nil
	}

	for _, f := range res.Files {
		rel, err := read(f)
		if err != nil {
			return err
		}
		r.Files = append(r.Files, rel)
	}
	if res.BoardModule != "" {
		if _, err := read(res.BoardModule); err != nil {
			return err
		}
	}
	return nil
}
