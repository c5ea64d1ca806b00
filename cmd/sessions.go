package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/ytflow/internal/memory"
	"github.com/josephgoksu/ytflow/internal/ui"
	"github.com/josephgoksu/ytflow/internal/validate"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session", "history"},
	Short:   "Browse saved generation sessions",
	Long: `Every generation run is saved as a session with each stage's output.

Examples:
  ytflow sessions list
  ytflow sessions show 3f2a9c1b
  ytflow sessions similar "notify assignee"
  ytflow sessions delete 3f2a9c1b`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		list, err := store.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if isJSON() {
			if list == nil {
				list = []memory.SessionSummary{}
			}
			return printJSON(out, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No sessions yet. Run 'ytflow generate' to create one.")
			return nil
		}

		t := &ui.Table{Headers: []string{"ID", "DATE", "TEST", "PROMPT"}, MaxWidth: 60}
		for _, s := range list {
			t.Rows = append(t.Rows, []string{
				ui.ShortID(s.ID),
				s.Timestamp.Local().Format("2006-01-02 15:04"),
				testStatus(s.Passed),
				s.UserPrompt,
			})
		}
		fmt.Fprint(out, t.Render())
		return nil
	},
}

func testStatus(passed *bool) string {
	switch {
	case passed == nil:
		return "-"
	case *passed:
		return "pass"
	default:
		return "fail"
	}
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show every stage of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		sess, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd.OutOrStdout(), sess)
		}
		renderSession(cmd.OutOrStdout(), sess)
		return nil
	},
}

func renderSession(out io.Writer, s *memory.Session) {
	ui.RenderPageHeader(out, "Session "+ui.ShortID(s.ID), s.Timestamp.Local().Format("2006-01-02 15:04:05"))

	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		fmt.Fprintf(out, "\n%s\n%s\n", ui.StyleSectionTitle.Render(title), body)
	}
	section("Prompt", ui.Wrap(s.UserPrompt))
	if len(s.ClarificationQuestions) > 0 {
		var b strings.Builder
		for i, q := range s.ClarificationQuestions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
		section("Clarification Questions", strings.TrimRight(b.String(), "\n"))
	}
	if s.UpdatedPrompt != s.UserPrompt {
		section("Updated Prompt", ui.Wrap(s.UpdatedPrompt))
	}
	section("Plan", indentJSON(s.Plan))
	if code := s.LatestCode(); code != "" {
		fmt.Fprintf(out, "\n%s\n%s\n", ui.StyleSectionTitle.Render("Code"), ui.RenderCode("javascript", strings.TrimSpace(code)))
	}
	final := s.FinalTestResult
	if len(final) == 0 {
		final = s.TestResult
	}
	if len(final) > 0 {
		var res validate.TestResult
		if err := json.Unmarshal(final, &res); err == nil {
			fmt.Fprintf(out, "\n%s\n", ui.RenderVerdict("Test Result", validate.FormatForDisplay(res), res.Success))
		}
	}
}

func indentJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(b)
}

var sessionsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a session",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		sess, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !force && !confirmOrAbort(cmd.InOrStdin(), cmd.OutOrStdout(),
			fmt.Sprintf("Delete session %s (%q)? [y/N]: ", ui.ShortID(sess.ID), sess.UserPrompt)) {
			return nil
		}
		if err := store.Delete(cmd.Context(), sess.ID); err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": sess.ID})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", ui.ShortID(sess.ID))
		return nil
	},
}

var sessionsSimilarCmd = &cobra.Command{
	Use:   "similar <prompt>",
	Short: "Find earlier sessions with a similar request",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		similar, err := store.SimilarPrompts(cmd.Context(), strings.Join(args, " "), "", limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if isJSON() {
			if similar == nil {
				similar = []memory.SimilarPrompt{}
			}
			return printJSON(out, similar)
		}
		if len(similar) == 0 {
			fmt.Fprintln(out, "No similar requests found.")
			return nil
		}
		for _, s := range similar {
			fmt.Fprintf(out, "%s %s\n", ui.StyleSubtle.Render(s.Timestamp.Local().Format("2006-01-02")), s.Prompt)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd, sessionsSimilarCmd)

	sessionsListCmd.Flags().IntP("limit", "n", 20, "Maximum sessions to list (0 = all)")
	sessionsSimilarCmd.Flags().IntP("limit", "n", memory.DefaultSimilarLimit, "Maximum results")
	sessionsDeleteCmd.Flags().BoolP("force", "f", false, "Delete without confirmation")
}

