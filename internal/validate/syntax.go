package validate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

const maxSyntaxErrors = 5

// SyntaxChecker parses JavaScript with tree-sitter and reports ERROR and
// MISSING nodes. A parser is not safe for concurrent use, so calls are serialised.
type SyntaxChecker struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewSyntaxChecker creates a JavaScript syntax checker.
func NewSyntaxChecker() *SyntaxChecker {
	p := sitter.NewParser()
	p.SetLanguage(javascript.GetLanguage())
	return &SyntaxChecker{parser: p}
}

// Structure holds facts read from the syntax tree.
type Structure struct {
	WhileLoops      int   `json:"while_loops"`
	Breaks          int   `json:"breaks"`
	TryStatements   int   `json:"try_statements"`
	TryWithoutCatch int   `json:"try_without_catch"`
	Facts           Facts `json:"facts"`
}

// Check parses code. It returns the list of syntax problems (empty when the
// code parses cleanly) and the structural facts of the tree.
func (c *SyntaxChecker) Check(ctx context.Context, code string) ([]string, Structure, error) {
	src := []byte(code)

	c.mu.Lock()
	tree, err := c.parser.ParseCtx(ctx, nil, src)
	c.mu.Unlock()
	if err != nil {
		return nil, Structure{}, fmt.Errorf("parse javascript: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	var problems []string
	var st Structure
	walk(root, func(n *sitter.Node) bool {
		st.Facts.observe(n, src)
		switch n.Type() {
		case "while_statement", "do_statement":
			st.WhileLoops++
		case "break_statement":
			st.Breaks++
		case "try_statement":
			st.TryStatements++
			if n.ChildByFieldName("handler") == nil {
				st.TryWithoutCatch++
			}
		}

		if !root.HasError() || len(problems) >= maxSyntaxErrors {
			return true
		}
		line := n.StartPoint().Row + 1
		switch {
		case n.IsMissing():
			problems = append(problems, fmt.Sprintf("line %d: missing %s", line, n.Type()))
			return false
		case n.Type() == "ERROR":
			problems = append(problems, fmt.Sprintf("line %d: unexpected %s", line, snippet(n.Content(src))))
			return false
		}
		return true
	})

	if root.HasError() && len(problems) == 0 {
		problems = append(problems, "unexpected syntax error")
	}
	return problems, st, nil
}

// walk visits nodes depth-first; fn returning false skips the children.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}

func snippet(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if s == "" {
		return "token"
	}
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return fmt.Sprintf("%q", s)
}
