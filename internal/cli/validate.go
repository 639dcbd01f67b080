package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vecgrid/internal/compiler"
	"github.com/roach88/vecgrid/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Variables int                        `json:"variables"`
	Editors   []string                   `json:"editors"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
	Line      int                        `json:"line,omitempty"` // source line of a compile error
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <project-dir>",
		Short: "Validate a project without starting editors",
		Long: `Compile a CUE project and check every editor's configuration.

Each editor's array must be declared, hold a rank-1 array and have an
element type with a grid cell mapping. Its grid slot must be a node
reference that no other editor publishes into. No address space is built
and no editor is started.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, projectDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	project, err := LoadProject(projectDir)
	if err != nil {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			return outputValidateError(formatter, ErrCodeGeneric, err.Error())
		}
		if loadErr.Command() {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		// The project exists but does not compile.
		return outputValidationErrors(formatter, ValidationResult{
			Errors: []compiler.ValidationError{{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
			}},
			Line: loadErr.Line(),
		})
	}

	formatter.VerboseLog("Compiled %d variable(s) and %d editor(s) from %s",
		len(project.Variables), len(project.Editors), projectDir)

	result := summarize(project)
	result.Errors = compiler.Validate(project)
	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}
	result.Valid = true

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Project valid (%d variable(s), %d editor(s))\n", result.Variables, len(result.Editors))
	for _, e := range project.Editors {
		formatter.VerboseLog("  %s: %s -> %s", e.Name, e.Array, e.Grid)
	}
	return nil
}

func summarize(p *ir.Project) ValidationResult {
	result := ValidationResult{
		Variables: len(p.Variables),
		Editors:   make([]string, 0, len(p.Editors)),
	}
	for _, e := range p.Editors {
		result.Editors = append(result.Editors, e.Name)
	}
	return result
}

// outputValidateError outputs a command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every validation error (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.Failure(errs[0].Code, errs[0].Message, result); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	if result.Line > 0 {
		fmt.Fprintf(formatter.Writer, "line %d\n", result.Line)
	}
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", err.Error())
	}
	return failed
}
