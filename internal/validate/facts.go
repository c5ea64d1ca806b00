package validate

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

const entitiesModule = "@jetbrains/youtrack-scripting-api/entities"

// Facts are the source-level properties the policies reason about. They are
// read from the syntax tree, so comments and string literals never count.
type Facts struct {
	EntitiesImport bool `json:"entities_import"`
	ExportsRule    bool `json:"exports_rule"`
	Title          bool `json:"title"`
	Guard          bool `json:"guard"`
	Action         bool `json:"action"`
	Requirements   bool `json:"requirements"`
	SetsFields     bool `json:"sets_fields"`
}

// observe records what node n contributes.
func (f *Facts) observe(n *sitter.Node, src []byte) {
	switch n.Type() {
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() != "identifier" || fn.Content(src) != "require" {
			return
		}
		args := n.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() == 0 {
			return
		}
		if arg := args.NamedChild(0); arg.Type() == "string" && unquote(arg.Content(src)) == entitiesModule {
			f.EntitiesImport = true
		}
	case "assignment_expression":
		left := n.ChildByFieldName("left")
		if left == nil || left.Type() != "member_expression" {
			return
		}
		path := compact(left.Content(src))
		switch {
		case path == "exports.rule" || path == "module.exports.rule":
			f.ExportsRule = true
		case strings.HasPrefix(path, "ctx.issue.fields."):
			f.SetsFields = true
		}
	case "pair":
		f.property(n.ChildByFieldName("key"), src)
	case "method_definition":
		f.property(n.ChildByFieldName("name"), src)
	}
}

func (f *Facts) property(key *sitter.Node, src []byte) {
	if key == nil {
		return
	}
	switch unquote(key.Content(src)) {
	case "title":
		f.Title = true
	case "guard":
		f.Guard = true
	case "action":
		f.Action = true
	case "requirements":
		f.Requirements = true
	}
}

func unquote(s string) string {
	return strings.Trim(s, "'\"`")
}

// compact drops whitespace, so "ctx.issue . fields" reads as "ctx.issue.fields".
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// policyInput is what the Rego policies see as input.
func policyInput(code string, st Structure) map[string]any {
	return map[string]any{
		"code": code,
		"facts": map[string]any{
			"entities_import": st.Facts.EntitiesImport,
			"exports_rule":    st.Facts.ExportsRule,
			"title":           st.Facts.Title,
			"guard":           st.Facts.Guard,
			"action":          st.Facts.Action,
			"requirements":    st.Facts.Requirements,
			"sets_fields":     st.Facts.SetsFields,
		},
		"structure": map[string]any{
			"while_loops":       st.WhileLoops,
			"breaks":            st.Breaks,
			"try_statements":    st.TryStatements,
			"try_without_catch": st.TryWithoutCatch,
		},
	}
}
