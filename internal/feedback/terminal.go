package feedback

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/josephgoksu/ytflow/internal/ui"
)

var (
	// ErrNoInput is returned when stdin closes before an answer is read.
	ErrNoInput = errors.New("no input available")
	// ErrCancelled is returned when the user aborts a question.
	ErrCancelled = errors.New("cancelled by user")
)

// ReadFunc reads one answer. prompt is the question being answered.
type ReadFunc func(ctx context.Context, prompt string) (string, error)

// Terminal asks questions on a terminal or any line-oriented stream.
type Terminal struct {
	out  io.Writer
	read ReadFunc
}

// NewTerminal creates an asker that writes to out and reads answers with read.
func NewTerminal(out io.Writer, read ReadFunc) *Terminal {
	return &Terminal{out: out, read: read}
}

// NewLineTerminal reads answers line by line from in.
func NewLineTerminal(in io.Reader, out io.Writer) *Terminal {
	return NewTerminal(out, LineReader(in, out))
}

// NewInteractiveTerminal reads answers with a bubbletea text input.
func NewInteractiveTerminal(out io.Writer) *Terminal {
	return NewTerminal(out, func(ctx context.Context, prompt string) (string, error) {
		answer, err := ui.PromptText(prompt, "type your answer")
		if errors.Is(err, ui.ErrInputCancelled) {
			return "", ErrCancelled
		}
		return answer, err
	})
}

// LineReader returns a ReadFunc that prints "> " and reads one line from in.
func LineReader(in io.Reader, out io.Writer) ReadFunc {
	scanner := bufio.NewScanner(in)
	return func(ctx context.Context, _ string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("read answer: %w", err)
			}
			return "", ErrNoInput
		}
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
}

func (t *Terminal) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(t.out, format, args...)
}

// Clarify implements Asker.
func (t *Terminal) Clarify(ctx context.Context, questions []string) (Clarification, error) {
	t.printf("\n%s\n", ui.StyleSectionTitle.Render("Clarification Request"))
	t.printf("I need some clarification to better understand your requirements:\n")

	c := Clarification{Responses: make([]Answer, 0, len(questions))}
	for i, q := range questions {
		t.printf("\n%s %s\n", ui.StylePrefixQuestion.Render(fmt.Sprintf("%d.", i+1)), q)
		answer, err := t.read(ctx, q)
		if err != nil {
			return Clarification{}, err
		}
		c.Responses = append(c.Responses, Answer{Question: q, Answer: answer})
	}
	t.printf("%s\n\n", ui.StyleSubtle.Render("Thank you for your clarification"))
	c.Timestamp = time.Now()
	return c, nil
}

// CodeFeedback implements Asker.
func (t *Terminal) CodeFeedback(ctx context.Context, code string) (CodeFeedback, error) {
	t.printf("\n%s\n", ui.StyleSectionTitle.Render("Code Feedback Request"))
	t.printf("I've generated the following code based on your requirements:\n\n")
	t.printf("%s\n\n", ui.RenderCode("javascript", code))
	t.printf("Is this code satisfactory? (yes/no)\n")

	reply, err := t.read(ctx, "Is this code satisfactory? (yes/no)")
	if err != nil {
		return CodeFeedback{}, err
	}
	fb := CodeFeedback{Satisfied: IsSatisfied(reply)}
	if !fb.Satisfied {
		t.printf("\nWhat changes would you like to see in the code?\n")
		changes, err := t.read(ctx, "What changes would you like to see in the code?")
		if err != nil {
			return CodeFeedback{}, err
		}
		fb.RequestedChanges = changes
	}
	t.printf("%s\n\n", ui.StyleSubtle.Render("Thank you for your feedback"))
	fb.Timestamp = time.Now()
	return fb, nil
}

// General implements Asker.
func (t *Terminal) General(ctx context.Context) (string, error) {
	t.printf("\n%s\n", ui.StyleSectionTitle.Render("Feedback Request"))
	t.printf("Please provide feedback on the generated code or any other aspects:\n")
	return t.read(ctx, "Feedback")
}
