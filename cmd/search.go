package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/ytflow/internal/scriptapi"
	"github.com/josephgoksu/ytflow/internal/ui"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the YouTrack scripting API package",
	Long: `Search the unpacked @jetbrains/youtrack-scripting-api package for code
matching a query. With --entity the hits are grouped into documentation,
examples, methods and properties of one entity.

The package location is read from scripting_api.dir
(default ./packages/youtrack-scripting-api/package).

Examples:
  ytflow search "issue.fields"
  ytflow search Issue --entity`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entity, _ := cmd.Flags().GetBool("entity")
		limit, _ := cmd.Flags().GetInt("limit")
		query := strings.Join(args, " ")

		svc, err := newServices(cmd.Context(), cmd, serviceNeeds{})
		if err != nil {
			return err
		}
		defer svc.Close()
		out := cmd.OutOrStdout()

		if entity {
			info, err := svc.searcher.SearchEntity(cmd.Context(), query)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(out, info)
			}
			renderEntity(out, info)
			return nil
		}

		hits, err := svc.searcher.Search(cmd.Context(), query)
		if err != nil {
			return err
		}
		if limit > 0 && len(hits) > limit {
			hits = hits[:limit]
		}
		if isJSON() {
			if hits == nil {
				hits = []scriptapi.Snippet{}
			}
			return printJSON(out, hits)
		}
		renderSnippets(out, query, hits)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().BoolP("entity", "e", false, "Treat the query as an entity name")
	searchCmd.Flags().IntP("limit", "n", 10, "Maximum snippets to show (0 = all)")
}

func renderSnippets(out io.Writer, query string, hits []scriptapi.Snippet) {
	if len(hits) == 0 {
		fmt.Fprintf(out, "No API matches for %q.\n", query)
		return
	}
	for _, h := range hits {
		title := fmt.Sprintf("%s:%d", h.FilePath, h.Line)
		fmt.Fprintf(out, "\n%s %s\n", ui.StyleSectionTitle.Render(title), ui.StyleSubtle.Render(fmt.Sprintf("(%s, %.0f)", h.Type, h.Relevance)))
		fmt.Fprintln(out, ui.RenderCode("javascript", strings.TrimSpace(h.Code)))
	}
}

func renderEntity(out io.Writer, info scriptapi.EntityInfo) {
	ui.RenderPageHeader(out, info.Name, fmt.Sprintf("%d methods · %d properties · %d examples",
		len(info.Methods), len(info.Properties), len(info.Examples)))

	if info.Documentation != "" {
		fmt.Fprintf(out, "\n%s\n%s\n", ui.StyleSectionTitle.Render("Documentation"), ui.RenderCode("javascript", strings.TrimSpace(info.Documentation)))
	}
	members := func(title string, list []scriptapi.Member) {
		if len(list) == 0 {
			return
		}
		fmt.Fprintf(out, "\n%s\n", ui.StyleSectionTitle.Render(title))
		for _, m := range list {
			fmt.Fprintf(out, "  %s\n", m.Name)
		}
	}
	members("Methods", info.Methods)
	members("Properties", info.Properties)
	for i, ex := range info.Examples {
		fmt.Fprintf(out, "\n%s\n%s\n", ui.StyleSectionTitle.Render(fmt.Sprintf("Example %d", i+1)), ui.RenderCode("javascript", strings.TrimSpace(ex)))
	}
}
