package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/ytflow/internal/ui"
	"github.com/josephgoksu/ytflow/internal/validate"
	"github.com/josephgoksu/ytflow/internal/watch"
)

// errTestFailed makes the command exit non-zero after printing a failing result.
var errTestFailed = errors.New("workflow script failed validation")

var validateCmd = &cobra.Command{
	Use:   "validate <file.js|->",
	Short: "Test a workflow script without generating anything",
	Long: `Run the syntax check and validation rules on an existing script.
Use "-" to read the script from stdin. With --watch the file is re-tested
every time it is saved.

Extra Rego rules are loaded from validate.policiesDir.

Examples:
  ytflow validate rule.js
  cat rule.js | ytflow validate -
  ytflow validate rule.js --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolP("watch", "w", false, "Re-test the file whenever it changes")
}

func runValidate(cmd *cobra.Command, args []string) error {
	watchMode, _ := cmd.Flags().GetBool("watch")
	path := args[0]
	if watchMode && path == "-" {
		return errors.New("--watch needs a file, not stdin")
	}

	svc, err := newServices(cmd.Context(), cmd, serviceNeeds{})
	if err != nil {
		return err
	}
	defer svc.Close()
	out := cmd.OutOrStdout()

	test := func(ctx context.Context) (validate.TestResult, error) {
		code, err := readScript(path)
		if err != nil {
			return validate.TestResult{}, err
		}
		return svc.tester.Test(ctx, code)
	}

	res, err := test(cmd.Context())
	if err != nil {
		return err
	}
	if err := printTestResult(out, path, res); err != nil {
		return err
	}
	if !watchMode {
		if !res.Success {
			return errTestFailed
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.New([]string{path}, func(ctx context.Context, changed string) {
		res, err := test(ctx)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.StyleError.Render(err.Error()))
			return
		}
		_ = printTestResult(out, changed, res)
	})
	if err != nil {
		return err
	}
	if !isJSON() {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.StyleSubtle.Render("Watching "+path+" (Ctrl+C to stop)"))
	}
	return w.Run(ctx)
}

func printTestResult(out io.Writer, path string, res validate.TestResult) error {
	if isJSON() {
		return printJSON(out, struct {
			File string `json:"file"`
			validate.TestResult
		}{path, res})
	}
	verdict := validate.FormatForDisplay(res)
	if res.Success {
		verdict = ui.StyleSuccess.Render(verdict)
	} else {
		verdict = ui.StyleError.Render(verdict)
	}
	_, err := fmt.Fprintf(out, "%s %s\n", ui.StyleSubtle.Render(path+":"), verdict)
	return err
}
