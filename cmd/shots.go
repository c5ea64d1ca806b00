package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/ytflow/internal/shots"
	"github.com/josephgoksu/ytflow/internal/ui"
)

var shotsCmd = &cobra.Command{
	Use:   "shots",
	Short: "Browse the example scripts used as code shots",
	Long: `Code shots are example workflow scripts shown to the code generator.
The built-in library can be replaced with a YAML file (shots.path).

Examples:
  ytflow shots list
  ytflow shots search "due date"`,
}

var shotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every code shot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newServices(cmd.Context(), cmd, serviceNeeds{})
		if err != nil {
			return err
		}
		defer svc.Close()

		all := svc.library.All()
		out := cmd.OutOrStdout()
		if isJSON() {
			return printJSON(out, all)
		}
		t := &ui.Table{Headers: []string{"ID", "TITLE", "TAGS"}, MaxWidth: 50}
		for _, s := range all {
			t.Rows = append(t.Rows, []string{s.ID, s.Title, strings.Join(s.Tags, ", ")})
		}
		fmt.Fprint(out, t.Render())
		fmt.Fprintln(out, ui.StyleSubtle.Render("source: "+svc.library.Source()))
		return nil
	},
}

var shotsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the code shots retrieved for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		query := strings.Join(args, " ")

		// Semantic ranking needs the LLM config only when it is switched on.
		svc, err := newServices(cmd.Context(), cmd, serviceNeeds{llm: viperSemanticShots()})
		if err != nil {
			return err
		}
		defer svc.Close()

		found, err := svc.library.Retrieve(cmd.Context(), query)
		if err != nil {
			return err
		}
		if limit > 0 && len(found) > limit {
			found = found[:limit]
		}
		out := cmd.OutOrStdout()
		if isJSON() {
			if found == nil {
				found = []shots.Shot{}
			}
			return printJSON(out, found)
		}
		if len(found) == 0 {
			fmt.Fprintf(out, "No code shots match %q.\n", query)
			return nil
		}
		for _, s := range found {
			fmt.Fprintf(out, "\n%s %s\n", ui.StyleSectionTitle.Render(s.Title), ui.StyleSubtle.Render(fmt.Sprintf("(%s, relevance %d)", s.ID, s.Relevance)))
			if s.Description != "" {
				fmt.Fprintln(out, s.Description)
			}
			fmt.Fprintln(out, ui.RenderCode("javascript", strings.TrimSpace(s.Code)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(shotsCmd)
	shotsCmd.AddCommand(shotsListCmd, shotsSearchCmd)
	shotsSearchCmd.Flags().IntP("limit", "n", 3, "Maximum shots to show (0 = all)")
	shotsSearchCmd.Flags().String("api-key", "", "API key for semantic ranking")
}
