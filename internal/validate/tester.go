// Package validate tests generated workflow scripts: a JavaScript syntax check
// followed by static validation rules written in Rego.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/afero"

	"github.com/josephgoksu/ytflow/internal/shell"
)

// Check is the outcome of one testing stage.
type Check struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Error    string   `json:"error,omitempty"`
	Issues   []string `json:"issues,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// TestResult combines the syntax check and the validation.
type TestResult struct {
	Success     bool  `json:"success"`
	SyntaxCheck Check `json:"syntax_check"`
	Validation  Check `json:"validation"`
}

// Options configures a Tester.
type Options struct {
	// PoliciesDir holds extra .rego files; empty means built-in rules only.
	PoliciesDir string
	// NodeCheck additionally runs "node --check" when node is on PATH.
	NodeCheck bool
	Fs        afero.Fs
	Bash      *shell.Bash
}

// Tester runs the checks.
type Tester struct {
	syntax *SyntaxChecker
	policy *PolicyEngine
	bash   *shell.Bash
	fs     afero.Fs
	node   bool
}

// NewTester builds a tester and loads the validation policies.
func NewTester(opts Options) (*Tester, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	engine, err := NewPolicyEngine(context.Background(), opts.Fs, opts.PoliciesDir)
	if err != nil {
		return nil, err
	}

	t := &Tester{syntax: NewSyntaxChecker(), policy: engine, fs: opts.Fs, bash: opts.Bash}
	if opts.NodeCheck {
		if shell.Available("node") {
			t.node = true
			if t.bash == nil {
				t.bash = shell.NewBash("")
			}
		} else {
			slog.Warn("node not found on PATH, using the built-in syntax check only")
		}
	}
	return t, nil
}

// Policies returns the names of the loaded validation policies.
func (t *Tester) Policies() []string { return t.policy.PolicyNames() }

// Test checks syntax and, when that passes, validates the script.
func (t *Tester) Test(ctx context.Context, code string) (TestResult, error) {
	problems, st, err := t.syntax.Check(ctx, code)
	if err != nil {
		return TestResult{}, err
	}
	if len(problems) == 0 && t.node {
		if stderr, ok := t.nodeCheck(ctx, code); !ok {
			problems = append(problems, stderr)
		}
	}

	if len(problems) > 0 {
		return TestResult{
			Success: false,
			SyntaxCheck: Check{
				Success: false,
				Message: "Syntax check failed",
				Error:   strings.Join(problems, "\n"),
			},
			Validation: Check{Success: false, Message: "Syntax check failed, skipping validation"},
		}, nil
	}

	decision, err := t.policy.Evaluate(ctx, policyInput(code, st))
	if err != nil {
		return TestResult{}, fmt.Errorf("evaluate validation policies: %w", err)
	}

	validation := Check{Success: true, Message: "Validation passed", Warnings: decision.Warnings}
	if len(decision.Violations) > 0 {
		validation = Check{
			Success:  false,
			Message:  "Validation failed",
			Issues:   decision.Violations,
			Warnings: decision.Warnings,
		}
	}

	return TestResult{
		Success:     validation.Success,
		SyntaxCheck: Check{Success: true, Message: "Syntax check passed"},
		Validation:  validation,
	}, nil
}

func (t *Tester) nodeCheck(ctx context.Context, code string) (string, bool) {
	f, err := afero.TempFile(afero.NewOsFs(), "", "ytflow-*.js")
	if err != nil {
		slog.Warn("create temp script, skipping node check", "error", err)
		return "", true
	}
	path := f.Name()
	defer func() { _ = afero.NewOsFs().Remove(path) }()

	if _, err := f.WriteString(code); err != nil {
		_ = f.Close()
		slog.Warn("write temp script, skipping node check", "error", err)
		return "", true
	}
	_ = f.Close()

	res := t.bash.Execute(ctx, "node --check "+shellQuote(path))
	if res.Success {
		return "", true
	}
	if res.Stderr != "" {
		return strings.TrimSpace(res.Stderr), false
	}
	return res.Error, false
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
