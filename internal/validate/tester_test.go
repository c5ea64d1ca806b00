package validate

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScript = `const entities = require('@jetbrains/youtrack-scripting-api/entities');

exports.rule = entities.Issue.onChange({
  title: 'Assign critical',
  guard: (ctx) => {
    return ctx.issue.fields.Priority.name === 'Critical';
  },
  action: (ctx) => {
    ctx.issue.fields.Assignee = ctx.Lead;
  },
  requirements: {
    Lead: { type: entities.User, name: 'Lead' }
  }
});
`

func newTester(t *testing.T, fs afero.Fs, dir string) *Tester {
	t.Helper()
	tester, err := NewTester(Options{Fs: fs, PoliciesDir: dir})
	require.NoError(t, err)
	return tester
}

func TestTester_ValidScript(t *testing.T) {
	res, err := newTester(t, nil, "").Test(context.Background(), validScript)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, Check{Success: true, Message: "Syntax check passed"}, res.SyntaxCheck)
	assert.True(t, res.Validation.Success)
	assert.Equal(t, "Validation passed", res.Validation.Message)
	assert.Empty(t, res.Validation.Issues)
}

func TestTester_ValidationIssues(t *testing.T) {
	tests := []struct {
		name string
		code string
		want []string
	}{
		{
			name: "empty module",
			code: "var x = 1;",
			want: []string{
				"Missing required import: entities",
				"Missing exports.rule",
				"Missing rule title",
				"Missing guard function",
				"Missing action function",
			},
		},
		{
			name: "sets fields without requirements",
			code: strings.Replace(validScript, "requirements: {\n    Lead: { type: entities.User, name: 'Lead' }\n  }", "other: {}", 1),
			want: []string{"Setting field values but missing requirements section"},
		},
		{
			name: "comparison is not assignment",
			code: strings.NewReplacer(
				"ctx.issue.fields.Assignee = ctx.Lead;", "return ctx.issue.fields.Assignee == null;",
				"requirements: {\n    Lead: { type: entities.User, name: 'Lead' }\n  }", "other: {}",
			).Replace(validScript),
			want: nil,
		},
		{
			name: "while without break",
			code: strings.Replace(validScript, "ctx.issue.fields.Assignee = ctx.Lead;", "while (ctx.issue.isReported) { ctx.issue.fields.Assignee = ctx.Lead; }", 1),
			want: []string{"Potential infinite loop: while loop without break statement"},
		},
		{
			name: "while with break",
			code: strings.Replace(validScript, "ctx.issue.fields.Assignee = ctx.Lead;", "while (true) { ctx.issue.fields.Assignee = ctx.Lead; break; }", 1),
			want: nil,
		},
		{
			name: "try with finally only",
			code: strings.Replace(validScript, "ctx.issue.fields.Assignee = ctx.Lead;", "try { ctx.issue.fields.Assignee = ctx.Lead; } finally { }", 1),
			want: []string{"Incomplete error handling: try without catch"},
		},
	}

	tester := newTester(t, nil, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tester.Test(context.Background(), tt.code)
			require.NoError(t, err)
			require.True(t, res.SyntaxCheck.Success, res.SyntaxCheck.Error)
			assert.Equal(t, tt.want, res.Validation.Issues)
			assert.Equal(t, len(tt.want) == 0, res.Success)
			if len(tt.want) > 0 {
				assert.Equal(t, "Validation failed", res.Validation.Message)
			}
		})
	}
}

func TestTester_SyntaxError(t *testing.T) {
	res, err := newTester(t, nil, "").Test(context.Background(), "exports.rule = entities.Issue.onChange({\n  title: 'x',\n")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.False(t, res.SyntaxCheck.Success)
	assert.Equal(t, "Syntax check failed", res.SyntaxCheck.Message)
	assert.NotEmpty(t, res.SyntaxCheck.Error)
	assert.Equal(t, Check{Success: false, Message: "Syntax check failed, skipping validation"}, res.Validation)
}

func TestTester_UserPolicies(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/policies/team.rego", []byte(`package ytflow.validate

import rego.v1

deny contains "Rule title must start with the team prefix" if {
	not contains(input.code, "title: 'OPS:")
}
`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/policies/notes.txt", []byte("ignored"), 0o644))

	tester := newTester(t, fs, "/policies")
	assert.Equal(t, []string{"workflow", "team"}, tester.Policies())

	res, err := tester.Test(context.Background(), validScript)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"Rule title must start with the team prefix"}, res.Validation.Issues)
}

func TestNewTester_BrokenUserPolicy(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/policies/team.rego", []byte(`package ytflow.validate

import rego.v1

deny contains msg if {
	not startswith(input.code, teamPrefix)
	msg := "wrong prefix"
}

warn contains "uses helper" if {
	teamPrefix(input.code)
}
`), 0o644))

	_, err := NewTester(Options{Fs: fs, PoliciesDir: "/policies"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile validation policies")
}

func TestTester_UserPolicyKeepsBuiltinRules(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/policies/extra.rego", []byte(`package ytflow.validate

import rego.v1

warn contains "Script is short" if {
	count(input.code) < 20
}
`), 0o644))

	res, err := newTester(t, fs, "/policies").Test(context.Background(), "var x = 1;")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Validation.Issues, "Missing exports.rule")
	assert.Equal(t, []string{"Script is short"}, res.Validation.Warnings)
}

func TestTester_Warnings(t *testing.T) {
	code := strings.Replace(validScript, "ctx.issue.fields.Assignee = ctx.Lead;", "console.log('hi'); ctx.issue.fields.Assignee = ctx.Lead;", 1)
	res, err := newTester(t, nil, "").Test(context.Background(), code)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"Script logs to the console"}, res.Validation.Warnings)
}

func TestValidatePolicy(t *testing.T) {
	assert.NoError(t, ValidatePolicy(context.Background(), builtinPolicy))
	assert.Error(t, ValidatePolicy(context.Background(), "package x\n\ndeny contains if {"))
}

func factsOf(t *testing.T, code string) Facts {
	t.Helper()
	problems, st, err := NewSyntaxChecker().Check(context.Background(), code)
	require.NoError(t, err)
	require.Empty(t, problems)
	return st.Facts
}

func TestFacts(t *testing.T) {
	f := factsOf(t, `const entities = require("@jetbrains/youtrack-scripting-api/entities");`)
	assert.True(t, f.EntitiesImport)
	assert.False(t, f.ExportsRule)

	assert.True(t, factsOf(t, "ctx.issue . fields . State = x;").SetsFields)
	assert.False(t, factsOf(t, "ctx.issue.fields.State === x;").SetsFields)

	f = factsOf(t, validScript)
	assert.Equal(t, Facts{
		EntitiesImport: true,
		ExportsRule:    true,
		Title:          true,
		Guard:          true,
		Action:         true,
		Requirements:   true,
		SetsFields:     true,
	}, f)
}

func TestFacts_IgnoreCommentsAndStrings(t *testing.T) {
	f := factsOf(t, `// exports.rule = entities.Issue.onChange({ title: 'x', guard: 1, action: 2 });
var note = "require('@jetbrains/youtrack-scripting-api/entities') requirements: {}";
`)
	assert.Equal(t, Facts{}, f)
}

func TestFacts_MethodShorthand(t *testing.T) {
	f := factsOf(t, `exports.rule = entities.Issue.onChange({
  'title': 'x',
  guard(ctx) { return true; },
  action(ctx) {}
});`)
	assert.True(t, f.ExportsRule)
	assert.True(t, f.Title)
	assert.True(t, f.Guard)
	assert.True(t, f.Action)
	assert.False(t, f.Requirements)
}

func TestSyntaxChecker_Structure(t *testing.T) {
	problems, st, err := NewSyntaxChecker().Check(context.Background(), `
do { x++; } while (x < 3);
while (a) { if (b) { break; } }
try { f(); } catch (e) {}
`)
	require.NoError(t, err)
	assert.Empty(t, problems)
	assert.Equal(t, Structure{WhileLoops: 2, Breaks: 1, TryStatements: 1}, st)
}

func TestSyntaxChecker_ReportsLine(t *testing.T) {
	problems, _, err := NewSyntaxChecker().Check(context.Background(), "const a = 1;\nconst b = ;\n")
	require.NoError(t, err)
	require.NotEmpty(t, problems)
	assert.Contains(t, problems[0], "line 2")
}
