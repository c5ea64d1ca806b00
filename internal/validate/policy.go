package validate

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/spf13/afero"
)

// PolicyPackage is the Rego package every validation policy must declare.
const PolicyPackage = "ytflow.validate"

//go:embed policies/workflow.rego
var builtinPolicy string

// builtinOrder keeps the built-in messages in a stable, reader-friendly order.
var builtinOrder = []string{
	"Missing required import: entities",
	"Missing exports.rule",
	"Missing rule title",
	"Missing guard function",
	"Missing action function",
	"Setting field values but missing requirements section",
	"Potential infinite loop: while loop without break statement",
	"Incomplete error handling: try without catch",
}

// PolicyFile is a loaded Rego module.
type PolicyFile struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Decision is the result of evaluating the policies.
type Decision struct {
	Violations []string `json:"violations,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// PolicyEngine evaluates deny/warn rules of the ytflow.validate package.
// The modules are compiled once; a rule no module defines yields no results.
type PolicyEngine struct {
	policies []*PolicyFile
	deny     rego.PreparedEvalQuery
	warn     rego.PreparedEvalQuery
}

// NewPolicyEngine loads the built-in policy plus every .rego file under dir
// and compiles them together. A missing dir only yields the built-in policy.
func NewPolicyEngine(ctx context.Context, fs afero.Fs, dir string) (*PolicyEngine, error) {
	e := &PolicyEngine{policies: []*PolicyFile{{Path: "builtin/workflow.rego", Name: "workflow", Content: builtinPolicy}}}
	if dir != "" {
		if fs == nil {
			fs = afero.NewOsFs()
		}
		extra, err := LoadPolicies(fs, dir)
		if err != nil {
			return nil, err
		}
		e.policies = append(e.policies, extra...)
	}

	var err error
	if e.deny, err = e.prepare(ctx, "deny"); err != nil {
		return nil, err
	}
	if e.warn, err = e.prepare(ctx, "warn"); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *PolicyEngine) prepare(ctx context.Context, rule string) (rego.PreparedEvalQuery, error) {
	opts := []func(*rego.Rego){rego.Query(fmt.Sprintf("data.%s.%s", PolicyPackage, rule))}
	for _, p := range e.policies {
		opts = append(opts, rego.Module(p.Path, p.Content))
	}
	pq, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("compile validation policies: %w", err)
	}
	return pq, nil
}

// PolicyNames returns the names of the loaded policies.
func (e *PolicyEngine) PolicyNames() []string {
	names := make([]string, len(e.policies))
	for i, p := range e.policies {
		names[i] = p.Name
	}
	return names
}

// Evaluate runs the deny and warn rules against input.
func (e *PolicyEngine) Evaluate(ctx context.Context, input any) (Decision, error) {
	deny, err := querySet(ctx, e.deny, input)
	if err != nil {
		return Decision{}, fmt.Errorf("query deny rules: %w", err)
	}
	warn, err := querySet(ctx, e.warn, input)
	if err != nil {
		return Decision{}, fmt.Errorf("query warn rules: %w", err)
	}

	sortIssues(deny)
	sort.Strings(warn)
	return Decision{Violations: deny, Warnings: warn}, nil
}

func querySet(ctx context.Context, pq rego.PreparedEvalQuery, input any) ([]string, error) {
	rs, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}

	var out []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			set, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, item := range set {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out, nil
}

// sortIssues puts built-in messages first in their fixed order, then the rest alphabetically.
func sortIssues(issues []string) {
	rank := func(s string) int {
		if i := slices.Index(builtinOrder, s); i >= 0 {
			return i
		}
		return len(builtinOrder)
	}
	sort.SliceStable(issues, func(i, j int) bool {
		ri, rj := rank(issues[i]), rank(issues[j])
		if ri != rj {
			return ri < rj
		}
		return issues[i] < issues[j]
	})
}

// ValidatePolicy reports whether content compiles as Rego.
func ValidatePolicy(ctx context.Context, content string) error {
	_, err := rego.New(
		rego.Query("data"),
		rego.Module("validation.rego", content),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}

// LoadPolicies reads every .rego file under dir, recursively.
func LoadPolicies(fs afero.Fs, dir string) ([]*PolicyFile, error) {
	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("check policies directory: %w", err)
	}
	if !exists {
		return nil, nil
	}

	var policies []*PolicyFile
	err = afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".rego") {
			return nil
		}
		p, err := loadPolicyFile(fs, path)
		if err != nil {
			return fmt.Errorf("load policy %s: %w", path, err)
		}
		policies = append(policies, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk policies directory: %w", err)
	}
	return policies, nil
}

func loadPolicyFile(fs afero.Fs, path string) (*PolicyFile, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &PolicyFile{
		Path:    path,
		Name:    strings.TrimSuffix(filepath.Base(path), ".rego"),
		Content: string(content),
	}, nil
}
