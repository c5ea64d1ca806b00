/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com

Eino-compatible tools the code generator may call while drafting a script.
They implement tool.InvokableTool from CloudWeGo Eino.
*/
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/josephgoksu/ytflow/internal/scriptapi"
	"github.com/josephgoksu/ytflow/internal/shots"
	"github.com/josephgoksu/ytflow/internal/validate"
)

// APISearcher finds scripting API snippets.
type APISearcher interface {
	Search(ctx context.Context, query string) ([]scriptapi.Snippet, error)
	SearchEntity(ctx context.Context, name string) (scriptapi.EntityInfo, error)
}

// ShotRetriever finds example scripts.
type ShotRetriever interface {
	Retrieve(ctx context.Context, query string) ([]shots.Shot, error)
}

// ScriptTester checks a script.
type ScriptTester interface {
	Test(ctx context.Context, code string) (validate.TestResult, error)
}

const (
	maxToolSnippets = 5
	maxToolShots    = 3
)

// =============================================================================
// SearchAPITool - scripting API lookup
// =============================================================================

// SearchAPITool implements tool.InvokableTool over the scripting API sources.
type SearchAPITool struct {
	searcher APISearcher
}

// NewSearchAPITool creates the search_scripting_api tool.
func NewSearchAPITool(s APISearcher) *SearchAPITool {
	return &SearchAPITool{searcher: s}
}

// Info returns the tool metadata for LLM function calling
func (t *SearchAPITool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "search_scripting_api",
		Desc: `Search the YouTrack scripting API sources.
Use "query" for free text, or "entity" to get documentation, methods and properties of one entity.

Examples:
- search_scripting_api(query="required fields") - snippets about requirements
- search_scripting_api(entity="Issue") - members of entities.Issue`,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type: "string",
				Desc: "Free-text search terms",
			},
			"entity": {
				Type: "string",
				Desc: "Entity name such as Issue, User or Project",
			},
		}),
	}, nil
}

type searchAPIArgs struct {
	Query  string `json:"query"`
	Entity string `json:"entity"`
}

// InvokableRun executes the search
func (t *SearchAPITool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var params searchAPIArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &params); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}

	if params.Entity != "" {
		info, err := t.searcher.SearchEntity(ctx, params.Entity)
		if err != nil {
			return "", err
		}
		b, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	if strings.TrimSpace(params.Query) == "" {
		return "", fmt.Errorf("query or entity argument is required")
	}
	snippets, err := t.searcher.Search(ctx, params.Query)
	if err != nil {
		return "", err
	}
	if len(snippets) == 0 {
		return fmt.Sprintf("No scripting API snippets found for %q.", params.Query), nil
	}

	var sb strings.Builder
	for i, s := range snippets {
		if i == maxToolSnippets {
			break
		}
		fmt.Fprintf(&sb, "Snippet %d from %s (line %d):\n%s\n\n", i+1, s.File, s.Line, s.Code)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

var _ tool.InvokableTool = (*SearchAPITool)(nil)

// =============================================================================
// ShotsTool - example scripts
// =============================================================================

// ShotsTool implements tool.InvokableTool over the code shot library.
type ShotsTool struct {
	library ShotRetriever
}

// NewShotsTool creates the retrieve_code_shots tool.
func NewShotsTool(l ShotRetriever) *ShotsTool {
	return &ShotsTool{library: l}
}

// Info returns the tool metadata for LLM function calling
func (t *ShotsTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "retrieve_code_shots",
		Desc: "Retrieve complete example YouTrack workflow scripts relevant to a description.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     "string",
				Desc:     "What the workflow should do",
				Required: true,
			},
		}),
	}, nil
}

type shotsArgs struct {
	Query string `json:"query"`
}

// InvokableRun retrieves the shots
func (t *ShotsTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var params shotsArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &params); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	found, err := t.library.Retrieve(ctx, params.Query)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return fmt.Sprintf("No example scripts match %q.", params.Query), nil
	}
	return formatShots(found, maxToolShots), nil
}

var _ tool.InvokableTool = (*ShotsTool)(nil)

// =============================================================================
// ValidateTool - syntax and rule checks
// =============================================================================

// ValidateTool implements tool.InvokableTool over the script tester.
type ValidateTool struct {
	tester ScriptTester
}

// NewValidateTool creates the validate_script tool.
func NewValidateTool(t ScriptTester) *ValidateTool {
	return &ValidateTool{tester: t}
}

// Info returns the tool metadata for LLM function calling
func (t *ValidateTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "validate_script",
		Desc: "Check a draft workflow script for syntax errors and missing parts (imports, exports.rule, title, guard, action, requirements).",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"code": {
				Type:     "string",
				Desc:     "Complete JavaScript source of the script",
				Required: true,
			},
		}),
	}, nil
}

type validateArgs struct {
	Code string `json:"code"`
}

// InvokableRun tests the script and returns a readable verdict
func (t *ValidateTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var params validateArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &params); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	if strings.TrimSpace(params.Code) == "" {
		return "", fmt.Errorf("code argument is required")
	}
	result, err := t.tester.Test(ctx, params.Code)
	if err != nil {
		return "", err
	}
	return validate.FormatForDisplay(result), nil
}

var _ tool.InvokableTool = (*ValidateTool)(nil)

// CreateTools returns the generator's tools; nil dependencies are skipped.
func CreateTools(searcher APISearcher, library ShotRetriever, tester ScriptTester) []tool.InvokableTool {
	var tools []tool.InvokableTool
	if searcher != nil {
		tools = append(tools, NewSearchAPITool(searcher))
	}
	if library != nil {
		tools = append(tools, NewShotsTool(library))
	}
	if tester != nil {
		tools = append(tools, NewValidateTool(tester))
	}
	return tools
}

func formatShots(found []shots.Shot, limit int) string {
	var sb strings.Builder
	for i, s := range found {
		if i == limit {
			break
		}
		fmt.Fprintf(&sb, "Example %d: %s\n", i+1, s.Title)
		fmt.Fprintf(&sb, "Description: %s\n", s.Description)
		fmt.Fprintf(&sb, "Code:\n%s\n\n", s.Code)
	}
	return sb.String()
}
