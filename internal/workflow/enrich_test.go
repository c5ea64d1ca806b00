package workflow

import (
	"testing"

	"github.com/josephgoksu/ytflow/internal/feedback"
)

func TestEnrichPrompt(t *testing.T) {
	tests := []struct {
		name    string
		answers []feedback.Answer
		want    string
	}{
		{
			name:    "substantive answer",
			answers: []feedback.Answer{{Question: "Which field?", Answer: "Priority"}},
			want:    "p\n\nClarification:\nQ: Which field?\nA: Priority\n\n",
		},
		{
			name: "only minimal answers",
			answers: []feedback.Answer{
				{Question: "Which field?", Answer: "no"},
				{Question: "Anyone else?", Answer: " N/A "},
			},
			want: "p\n\nClarification:\nQ: Which field?\nA: no\n\nQ: Anyone else?\nA:  N/A \n\n" + MinimalResponsesNote,
		},
		{
			name:    "no answers",
			answers: nil,
			want:    "p\n\nClarification:\n" + MinimalResponsesNote,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EnrichPrompt("p", feedback.Clarification{Responses: tt.answers})
			if got != tt.want {
				t.Errorf("EnrichPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWithChanges(t *testing.T) {
	got := WithChanges("notify assignee", "also the reporter")
	want := "notify assignee\n\nAdditional requirements: also the reporter"
	if got != want {
		t.Errorf("WithChanges() = %q, want %q", got, want)
	}
}
