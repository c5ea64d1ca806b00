/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/ytflow/internal/agents/core"
	"github.com/josephgoksu/ytflow/internal/feedback"
	"github.com/josephgoksu/ytflow/internal/ui"
	"github.com/josephgoksu/ytflow/internal/validate"
	"github.com/josephgoksu/ytflow/internal/workflow"
)

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate a YouTrack workflow script from a description",
	Long: `Generate a workflow script from a plain-language request.

The request is analysed, clarifying questions are asked, a plan is drafted,
the scripting API and example scripts are searched, and the generated script
is tested. A failing script is regenerated with the test findings.

Without a prompt, ytflow asks for one. With --interactive it keeps asking
for requests ("exit" quits) and offers to refine each script.

Examples:
  ytflow generate "Require a due date before moving an issue to In Progress"
  ytflow generate -p "Assign new bugs to the project lead" -o assign.js
  ytflow generate --interactive
  ytflow generate -p "Close stale issues" --answers answers.yaml --json`,
	Args: cobra.ArbitraryArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringP("prompt", "p", "", "What the workflow should do")
	generateCmd.Flags().StringP("output", "o", "", "Write the script to this file")
	generateCmd.Flags().BoolP("interactive", "i", false, "Keep asking for requests and offer to refine each script")
	generateCmd.Flags().String("api-key", "", "API key for the configured LLM provider")
	generateCmd.Flags().Bool("no-clarify", false, "Skip clarifying questions")
	generateCmd.Flags().String("answers", "", "YAML file with clarification answers and requested changes")
	generateCmd.Flags().Bool("stream", false, "Print the code to stderr while it is generated")
}

// exitWord ends an interactive session.
const exitWord = "exit"

var errStreamWithTools = errors.New("--stream cannot be used with agent.useTools: tool-calling generation is not streamed")

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	prompt, _ := cmd.Flags().GetString("prompt")
	if prompt == "" && len(args) > 0 {
		prompt = strings.Join(args, " ")
	}
	interactive, _ := cmd.Flags().GetBool("interactive")
	noClarify, _ := cmd.Flags().GetBool("no-clarify")
	answersPath, _ := cmd.Flags().GetString("answers")
	outputPath, _ := cmd.Flags().GetString("output")
	stream, _ := cmd.Flags().GetBool("stream")

	asker, err := chooseAsker(cmd, answersPath)
	if err != nil {
		return err
	}

	svc, err := newServices(ctx, cmd, serviceNeeds{llm: true, store: true})
	if err != nil {
		return err
	}
	defer svc.Close()

	if stream && svc.settings.UseTools {
		return errStreamWithTools
	}

	settings := svc.workflowSettings()
	if noClarify {
		settings.AlwaysClarify = false
		settings.SkipClarify = true
	}
	if stream && !isJSON() {
		svc.stream = cmd.ErrOrStderr()
	}
	gen, err := svc.newGenerator(ctx, asker, settings)
	if err != nil {
		return err
	}

	var spinner *ui.Spinner
	if !isJSON() && !isQuiet() {
		ui.RenderPageHeader(out, "YouTrack Workflow Generator", fmt.Sprintf("%s · %s", svc.llmCfg.Provider, svc.llmCfg.Model))
		if svc.stream == nil {
			spinner = ui.NewSpinnerTo(cmd.ErrOrStderr(), "Starting")
			gen.OnStage(stageProgress(spinner))
		}
	}

	for {
		if prompt == "" {
			if !ui.IsInteractive() {
				return errors.New("a prompt is required: pass --prompt or an argument")
			}
			prompt, err = ui.PromptText("Enter your workflow script request (or 'exit' to quit)", "e.g. notify the assignee when priority becomes Critical")
			if err != nil {
				if errors.Is(err, ui.ErrInputCancelled) {
					return nil
				}
				return err
			}
		}
		if strings.EqualFold(strings.TrimSpace(prompt), exitWord) {
			return nil
		}

		res, err := generateOnce(ctx, cmd, gen, prompt, spinner)
		if err != nil {
			if errors.Is(err, feedback.ErrCancelled) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
				return nil
			}
			return err
		}

		if interactive {
			for {
				next, refined, err := gen.Refine(ctx, res)
				if err != nil {
					if errors.Is(err, feedback.ErrCancelled) || errors.Is(err, feedback.ErrNoInput) {
						break
					}
					return err
				}
				if !refined {
					break
				}
				res = next
				if err := printResult(out, res); err != nil {
					return err
				}
			}
		}

		if outputPath != "" {
			if err := afero.WriteFile(svc.fs, outputPath, []byte(res.Code), 0o644); err != nil {
				return fmt.Errorf("write script: %w", err)
			}
			if !isJSON() {
				fmt.Fprintf(cmd.ErrOrStderr(), "Script saved to %s\n", outputPath)
			}
		}

		if !interactive {
			return nil
		}
		prompt = ""
	}
}

// generateOnce runs the pipeline, showing spinner when set, and prints the result.
func generateOnce(ctx context.Context, cmd *cobra.Command, gen *workflow.Generator, prompt string, spinner *ui.Spinner) (workflow.Result, error) {
	if spinner != nil {
		spinner.SetSuffix("Starting")
		spinner.Start()
	}

	res, err := gen.Generate(ctx, prompt)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return res, err
	}
	return res, printResult(cmd.OutOrStdout(), res)
}

var stageLabels = map[string]string{
	workflow.NodeAnalyze:  "analysing requirements",
	workflow.NodeClarify:  "clarification",
	workflow.NodePlan:     "planning",
	workflow.NodeGather:   "searching scripting API and examples",
	workflow.NodeGenerate: "generating code",
	workflow.NodeTest:     "testing",
}

// stageProgress updates the spinner per stage. A running spinner is paused
// while clarifying questions are on screen.
func stageProgress(spinner *ui.Spinner) func(core.StageEvent) {
	paused := false
	return func(ev core.StageEvent) {
		label, ok := stageLabels[ev.Name]
		if !ok {
			return
		}
		switch {
		case ev.Name == workflow.NodeClarify && ev.Phase == "start":
			paused = spinner.Active()
			spinner.Stop()
		case ev.Name == workflow.NodeClarify:
			if paused {
				spinner.Start()
			}
			paused = false
		case ev.Phase == "start":
			spinner.SetSuffix(ui.Heading(label))
		}
	}
}

func printResult(out io.Writer, res workflow.Result) error {
	if isJSON() {
		return printJSON(out, res)
	}
	if isQuiet() {
		_, err := fmt.Fprintln(out, strings.TrimSpace(res.Code))
		return err
	}

	fmt.Fprintf(out, "\n%s\n", ui.StyleSectionTitle.Render("Generated Code"))
	if res.Fallback {
		fmt.Fprintln(out, ui.StyleWarning.Render("Generation failed; showing a template to start from."))
	}
	fmt.Fprintln(out, ui.RenderCode("javascript", strings.TrimSpace(res.Code)))

	fmt.Fprintf(out, "\n%s\n", ui.RenderVerdict("Test Result", validate.FormatForDisplay(res.Test), res.Test.Success))
	if res.Attempts > 1 {
		fmt.Fprintln(out, ui.StyleSubtle.Render(fmt.Sprintf("Regenerated %d time(s)", res.Attempts-1)))
	}

	if len(res.Similar) > 0 {
		fmt.Fprintf(out, "\n%s\n", ui.StyleSectionTitle.Render("Similar Previous Requests"))
		for _, s := range res.Similar {
			fmt.Fprintf(out, "  %s %s\n", ui.StyleSubtle.Render(s.Timestamp.Format("2006-01-02")), s.Prompt)
		}
	}
	if res.SessionID != "" {
		fmt.Fprintf(out, "\n%s\n", ui.StyleSubtle.Render("Session "+ui.ShortID(res.SessionID)))
	}
	return nil
}

// chooseAsker picks where clarification answers come from: an answers file,
// the terminal, or nowhere when there is no terminal.
func chooseAsker(cmd *cobra.Command, answersPath string) (feedback.Asker, error) {
	if answersPath != "" {
		return feedback.LoadScripted(afero.NewOsFs(), answersPath)
	}
	if ui.IsInteractive() && !isJSON() {
		return feedback.NewInteractiveTerminal(cmd.OutOrStdout()), nil
	}
	if f, ok := cmd.InOrStdin().(*os.File); ok && f == os.Stdin {
		slog.Info("no terminal attached; clarification questions stay unanswered (see --answers)")
		return feedback.NewScripted(), nil
	}
	return feedback.NewLineTerminal(cmd.InOrStdin(), cmd.ErrOrStderr()), nil
}
