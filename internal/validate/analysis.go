package validate

import (
	"fmt"
	"strings"
)

// Analyze summarises a test result for people and for the regeneration prompt.
func Analyze(r TestResult) string {
	if r.Success {
		return "The code passed all tests and validations."
	}

	var issues []string
	if !r.SyntaxCheck.Success {
		msg := r.SyntaxCheck.Error
		if msg == "" {
			msg = "Unknown syntax error"
		}
		issues = append(issues, "Syntax error: "+msg)
	}
	if !r.Validation.Success {
		for _, issue := range r.Validation.Issues {
			issues = append(issues, "Validation issue: "+issue)
		}
	}

	if len(issues) == 0 {
		return "The code failed testing for unknown reasons."
	}
	if len(issues) == 1 {
		return issues[0]
	}

	var b strings.Builder
	b.WriteString("The code has the following issues:\n")
	for i, issue := range issues {
		fmt.Fprintf(&b, "%d. %s\n", i+1, issue)
	}
	return b.String()
}

// FormatForDisplay prefixes the analysis with a pass/fail marker.
func FormatForDisplay(r TestResult) string {
	if r.Success {
		return "✅ Test passed: " + Analyze(r)
	}
	return "❌ Test failed: " + Analyze(r)
}
