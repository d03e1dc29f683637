package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/guard"
	"github.com/BaSui01/guardflow/history"
	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/validation"
)

// errNotPassed makes the process exit non-zero after the report is printed.
var errNotPassed = errors.New("output did not pass validation")

type rootOptions struct {
	configPath string

	// set by tests
	backend llm.Backend
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{})
}

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "guardflow",
		Short:         "Validate LLM output against a schema and reask on failure",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (YAML)")

	root.AddCommand(
		newValidateCmd(opts),
		newRunCmd(opts),
		newHistoryCmd(opts),
		newVersionCmd(),
	)
	return root
}

// report is the JSON printed for a finished call.
type report struct {
	CallID     string               `json:"call_id"`
	Status     history.Status       `json:"status"`
	Passed     bool                 `json:"passed"`
	Output     any                  `json:"output"`
	Failures   []validation.Failure `json:"failures,omitempty"`
	Warnings   []validation.Failure `json:"warnings,omitempty"`
	ReasksUsed int                  `json:"reasks_used"`
	Error      string               `json:"error,omitempty"`
}

func printOutcome(cmd *cobra.Command, out *guard.Outcome) error {
	r := report{
		CallID:     out.CallID,
		Status:     out.Status,
		Passed:     out.Passed,
		Output:     out.Output,
		Failures:   out.Failures,
		Warnings:   out.Warnings,
		ReasksUsed: out.ReasksUsed(),
	}
	if out.Error != nil {
		r.Error = out.Error.Error()
	}
	if err := writeJSON(cmd.OutOrStdout(), r); err != nil {
		return err
	}
	if !out.Passed {
		return errNotPassed
	}
	return nil
}

// =============================================================================
// ✅ validate 命令
// =============================================================================

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var (
		schemaPath   string
		outputPath   string
		metadataPath string
		numReasks    int
		reask        bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an existing LLM output",
		Long: "Validate an existing LLM output against a schema document. With --reask,\n" +
			"failing parts are sent to the configured backend for correction.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			raw, err := readInput(outputPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			metadata, err := readMetadata(metadataPath)
			if err != nil {
				return err
			}
			g, err := a.newGuard(schemaPath, reask, numReasks)
			if err != nil {
				return err
			}
			out, err := g.Parse(cmd.Context(), raw, guard.Metadata(metadata))
			if out == nil {
				return err
			}
			return printOutcome(cmd, out)
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema document (YAML)")
	cmd.Flags().StringVar(&outputPath, "output", "-", "file with the raw output, - for stdin")
	cmd.Flags().StringVar(&metadataPath, "metadata", "", "JSON file with validator metadata")
	cmd.Flags().IntVar(&numReasks, "num-reasks", -1, "reask budget, overrides config and document")
	cmd.Flags().BoolVar(&reask, "reask", false, "send reasks to the configured backend")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// =============================================================================
// ▶️ run 命令
// =============================================================================

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		schemaPath   string
		prompt       string
		instructions string
		metadataPath string
		numReasks    int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Prompt the backend and validate its output",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			metadata, err := readMetadata(metadataPath)
			if err != nil {
				return err
			}
			g, err := a.newGuard(schemaPath, true, numReasks)
			if err != nil {
				return err
			}
			callOpts := []guard.CallOption{guard.Metadata(metadata)}
			if prompt != "" {
				callOpts = append(callOpts, guard.Prompt(prompt))
			}
			if instructions != "" {
				callOpts = append(callOpts, guard.Instructions(instructions))
			}
			out, err := g.Call(cmd.Context(), callOpts...)
			if out == nil {
				return err
			}
			return printOutcome(cmd, out)
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema document (YAML)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt, overrides the document")
	cmd.Flags().StringVar(&instructions, "instructions", "", "instructions, override the document")
	cmd.Flags().StringVar(&metadataPath, "metadata", "", "JSON file with validator metadata")
	cmd.Flags().IntVar(&numReasks, "num-reasks", -1, "reask budget, overrides config and document")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// =============================================================================
// 📜 history 命令
// =============================================================================

type callSummary struct {
	ID         string         `json:"id"`
	Status     history.Status `json:"status"`
	Turns      int            `json:"turns"`
	ReasksUsed int            `json:"reasks_used"`
	CreatedAt  time.Time      `json:"created_at"`
	Error      string         `json:"error,omitempty"`
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect persisted calls",
	}

	var (
		status string
		limit  int
		offset int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List calls, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			calls, err := a.store.List(cmd.Context(), history.ListOptions{
				Status: history.Status(status),
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}
			summaries := make([]callSummary, 0, len(calls))
			for _, c := range calls {
				summaries = append(summaries, callSummary{
					ID:         c.ID,
					Status:     c.Status,
					Turns:      len(c.Iterations),
					ReasksUsed: c.ReasksUsed,
					CreatedAt:  c.CreatedAt,
					Error:      c.Error,
				})
			}
			return writeJSON(cmd.OutOrStdout(), summaries)
		},
	}
	list.Flags().StringVar(&status, "status", "", "only calls with this status")
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of calls")
	list.Flags().IntVar(&offset, "offset", 0, "calls to skip")

	get := &cobra.Command{
		Use:   "get <call-id>",
		Short: "Show one call with every turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			call, err := a.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), call)
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

// =============================================================================
// 📋 version 命令
// =============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "GuardFlow %s\n", Version)
			fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
		},
	}
}
