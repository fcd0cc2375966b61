package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Rrens/flagr/internal/app"
	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/repository/memory"
	"github.com/Rrens/flagr/internal/security"
	"github.com/Rrens/flagr/internal/service"
	"github.com/Rrens/flagr/internal/session"
)

const localUserID = "local"

type analyzer interface {
	Analyze(ctx context.Context, userID string, upload service.Upload) (domain.ChatSession, error)
}

type analyzeOptions struct {
	output   string
	provider string
	model    string
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a document and print the flagged clauses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.output, "text", "json", "yaml"); err != nil {
				return err
			}

			cfg, err := root.load()
			if err != nil {
				return err
			}

			// Analyses run against a throwaway in-memory session list
			sessions := session.NewManager(memory.NewStore())
			if _, err := sessions.Open(cmd.Context(), domain.NewUser(localUserID, "local@flagr.local")); err != nil {
				return err
			}

			providers := app.NewProviders(cfg.LLM)
			svc := service.NewAnalysisService(
				sessions,
				providers.Router,
				providers.NewExtractor(),
				security.NewUploadValidator(cfg.Analysis.MaxUploadBytes),
				nil,
				cfg.Analysis.MaxChars,
			)
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), svc, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format: text, json or yaml")
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "LLM provider (default from config)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model name (default for the provider)")
	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, svc analyzer, path string, opts *analyzeOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	sess, err := svc.Analyze(ctx, localUserID, service.Upload{
		Filename: filepath.Base(path),
		Data:     data,
		Provider: opts.provider,
		Model:    opts.model,
	})
	if err != nil {
		return err
	}

	if sess.Analysis == nil {
		if last, ok := sess.LastMessage(); ok {
			return errors.New(last.Content)
		}
		return errors.New("analysis failed")
	}

	switch opts.output {
	case "json":
		return writeJSON(out, sess.Analysis)
	case "yaml":
		return writeYAML(out, sess.Analysis)
	default:
		printSummary(out, sess)
		return nil
	}
}

func printSummary(out io.Writer, sess domain.ChatSession) {
	a := sess.Analysis
	bold := color.New(color.Bold)

	bold.Fprintln(out, sess.Title)
	fmt.Fprintf(out, "%d words, %d sentences, about %d min read\n\n",
		a.Stats.Words, a.Stats.Sentences, a.Stats.ReadingTime)

	bold.Fprintln(out, "Summary")
	fmt.Fprintln(out, a.PlainLanguageSummary)
	fmt.Fprintln(out)

	bold.Fprintf(out, "Flags (%d)\n", len(a.Flags))
	for _, f := range a.Flags {
		severityColor(f.Severity).Fprintf(out, "[%s] ", f.Severity)
		fmt.Fprintln(out, f.Title)
		fmt.Fprintf(out, "  %s\n", f.Explanation)
		if f.SuggestedRewrite != "" {
			fmt.Fprintf(out, "  Suggested: %s\n", f.SuggestedRewrite)
		}
	}

	if len(a.RiskAssessment.Risks) > 0 {
		fmt.Fprintln(out)
		bold.Fprintln(out, "Risk scores")
		for _, r := range a.RiskAssessment.Risks {
			fmt.Fprintf(out, "  %-24s %2d/10\n", r.Area, r.Score)
		}
	}
}

func severityColor(s domain.Severity) *color.Color {
	switch s {
	case domain.SeverityHigh:
		return color.New(color.FgRed, color.Bold)
	case domain.SeverityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
