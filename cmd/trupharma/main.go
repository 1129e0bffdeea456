package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trupharma/drug-safety-rag/internal/bootstrap"
	"github.com/trupharma/drug-safety-rag/internal/config"
	"github.com/trupharma/drug-safety-rag/internal/core/domain"
	"github.com/trupharma/drug-safety-rag/internal/observability/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trupharma",
		Short:         "Grounded drug-safety answers from fresh openFDA label data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAskCmd(), newLogsCmd())
	return root
}

func newAskCmd() *cobra.Command {
	var mode string
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a drug-safety question and print the cited answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := logging.New("cli", "error", cfg.LogFormat)

			app, err := bootstrap.New(cmd.Context(), cfg, logger, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer app.Close()

			question := strings.Join(args, " ")
			answer, err := app.AskService.Ask(cmd.Context(), question, domain.QueryOptions{
				Mode: domain.NormalizeMode(mode),
				TopK: topK,
			})
			if err != nil {
				return err
			}
			printAnswer(cmd, answer)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "retrieval mode: hybrid, dense, or sparse")
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of evidence chunks to fuse (0 = default)")
	return cmd
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer) {
	cmd.Println(answer.Text)
	cmd.Println()
	cmd.Printf("method: %s  confidence: %.2f\n", answer.Method, answer.Confidence)
	if len(answer.Citations) > 0 {
		cmd.Println("citations:")
		for _, c := range answer.Citations {
			cmd.Printf("  %s\n", c)
		}
	}
}

func newLogsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent interactions from the telemetry log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := logging.New("cli", "error", cfg.LogFormat)

			app, err := bootstrap.New(cmd.Context(), cfg, logger, bootstrap.Options{WithStore: true})
			if err != nil {
				return err
			}
			defer app.Close()

			records, err := app.Interactions.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("no interactions recorded")
				return nil
			}
			for _, rec := range records {
				cmd.Printf("%s  %-7s  conf=%.2f  llm=%-5t  %dms  %q\n",
					rec.Timestamp.Format("2006-01-02 15:04:05"),
					rec.RetrievalMethod,
					rec.Confidence,
					rec.LLMUsed,
					int(rec.LatencyMS),
					rec.Query,
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of interactions to show")
	return cmd
}
