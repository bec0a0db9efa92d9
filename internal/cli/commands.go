package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docrev/internal/engine"
	"github.com/dgallion1/docrev/internal/report"
)

var revisionsCmd = &cobra.Command{
	Use:   "revisions FILE",
	Short: "List tracked insertions and deletions",
	Args:  cobra.ExactArgs(1),
	RunE:  runOperation(engine.OpRevisions),
}

var commentsCmd = &cobra.Command{
	Use:   "comments FILE",
	Short: "List comment threads",
	Args:  cobra.ExactArgs(1),
	RunE:  runOperation(engine.OpComments),
}

var statsCmd = &cobra.Command{
	Use:   "stats FILE",
	Short: "Show revision and comment statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runOperation(engine.OpStats),
}

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Describe the package members and outline",
	Args:  cobra.ExactArgs(1),
	RunE:  runOperation(engine.OpInspect),
}

var acceptCmd = &cobra.Command{
	Use:   "accept FILE",
	Short: "Accept tracked changes",
	Long:  `Accepts every tracked change (--all) or the listed ids in order, and writes the result to a new file.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runMutation(engine.OpAccept),
}

var rejectCmd = &cobra.Command{
	Use:   "reject FILE",
	Short: "Reject tracked changes",
	Long:  `Rejects every tracked change (--all) or the listed ids in order, and writes the result to a new file.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runMutation(engine.OpReject),
}

var reportCmd = &cobra.Command{
	Use:   "report FILE",
	Short: "Render a review report as Markdown or HTML",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

// Flag values.
var (
	includeContext  bool
	contextLength   int
	includeSummary  bool
	includeResolved bool
	authorBreakdown bool
	mutateAll       bool
	mutateIDs       []string
	outputPath      string
	reportHTML      bool
	reportTitle     string
)

func init() {
	revisionsCmd.Flags().BoolVar(&includeContext, "context", false, "Include surrounding paragraph text")
	revisionsCmd.Flags().IntVar(&contextLength, "context-length", 50, "Characters of context on each side")
	revisionsCmd.Flags().BoolVar(&includeSummary, "summary", true, "Include a summary")

	commentsCmd.Flags().BoolVar(&includeResolved, "resolved", true, "Include resolved comments")
	commentsCmd.Flags().BoolVar(&includeSummary, "summary", true, "Include a summary")

	statsCmd.Flags().BoolVar(&authorBreakdown, "authors", false, "Include a per-author breakdown")

	for _, c := range []*cobra.Command{acceptCmd, rejectCmd} {
		c.Flags().BoolVar(&mutateAll, "all", false, "Apply to every tracked change")
		c.Flags().StringSliceVar(&mutateIDs, "id", nil, "Revision id to apply (repeatable)")
		c.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default FILE with a suffix)")
	}

	reportCmd.Flags().BoolVar(&reportHTML, "html", false, "Render HTML instead of Markdown")
	reportCmd.Flags().StringVar(&reportTitle, "title", "", "Report title (default file name)")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the report to a file")

	rootCmd.AddCommand(revisionsCmd, commentsCmd, statsCmd, inspectCmd, acceptCmd, rejectCmd, reportCmd)
}

// optionsFor starts from configured defaults and applies the flags the user set.
func optionsFor(cmd *cobra.Command) engine.Options {
	opts := engine.OptionsFrom(cfg.Defaults)
	flags := cmd.Flags()
	if flags.Changed("context") {
		opts.IncludeContext = includeContext
	}
	if flags.Changed("context-length") {
		opts.ContextLength = contextLength
	}
	if flags.Changed("summary") {
		opts.IncludeSummary = includeSummary
	}
	if flags.Changed("resolved") {
		opts.IncludeResolved = includeResolved
	}
	if flags.Changed("authors") {
		opts.IncludeAuthorBreakdown = authorBreakdown
	}
	if flags.Changed("all") {
		opts.All = mutateAll
	}
	if flags.Changed("id") {
		opts.IDs = mutateIDs
	}
	return opts
}

func runOperation(op engine.Operation) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		data, err := readDocument(args[0])
		if err != nil {
			return err
		}
		out, err := runner.Run(cmd.Context(), op, data, optionsFor(cmd))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out.Result)
	}
}

func runMutation(op engine.Operation) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		opts := optionsFor(cmd)
		if !opts.All && len(opts.IDs) == 0 {
			return errors.New("either --all or at least one --id is required")
		}
		if opts.All && len(opts.IDs) > 0 {
			return errors.New("--all and --id are mutually exclusive")
		}

		data, err := readDocument(args[0])
		if err != nil {
			return err
		}
		out, err := runner.Run(cmd.Context(), op, data, opts)
		if err != nil {
			return err
		}

		dest := outputPath
		if dest == "" {
			dest = defaultOutputPath(args[0], op)
		}
		if err := os.WriteFile(dest, out.Document, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		logger.Debug("wrote document", "path", dest, "bytes", len(out.Document))

		return printJSON(cmd.OutOrStdout(), map[string]any{
			"output": dest,
			"result": out.Result,
		})
	}
}

// defaultOutputPath places the result next to the input: draft.docx becomes
// draft.accepted.docx.
func defaultOutputPath(input string, op engine.Operation) string {
	ext := filepath.Ext(input)
	if ext == "" {
		ext = ".docx"
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	suffix := ".accepted"
	if op == engine.OpReject {
		suffix = ".rejected"
	}
	return base + suffix + ext
}

func runReport(cmd *cobra.Command, args []string) error {
	data, err := readDocument(args[0])
	if err != nil {
		return err
	}
	title := reportTitle
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	rep, err := report.Generate(data, title)
	if err != nil {
		return err
	}

	var body []byte
	if reportHTML {
		if body, err = rep.HTML(); err != nil {
			return err
		}
	} else {
		body = []byte(rep.Markdown())
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outputPath, err)
		}
		cmd.Printf("wrote %s\n", outputPath)
		return nil
	}
	_, err = cmd.OutOrStdout().Write(body)
	return err
}
