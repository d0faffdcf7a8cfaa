package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"paperbot/internal/agent"
	"paperbot/internal/domain"

	"github.com/spf13/cobra"
)

func askCmd() *cobra.Command {
	var (
		noRetrieval bool
		noMemory    bool
		noCommit    bool
		sender      string
	)

	cmd := &cobra.Command{
		Use:   "ask \"question\"",
		Short: "Ask one question and print the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			input := domain.NewUserMessage(sender, args[0])
			reply, err := rt.agent.Respond(ctx, input, agent.TurnOptions{
				UseRetrieval:   !noRetrieval,
				UseMemory:      !noMemory,
				CommitToMemory: !noCommit,
			})
			if err != nil {
				return err
			}
			fmt.Println(reply.Content)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noRetrieval, "no-retrieval", false, "answer without document retrieval (query mode)")
	cmd.Flags().BoolVar(&noMemory, "no-memory", false, "leave conversation memory out of the prompt")
	cmd.Flags().BoolVar(&noCommit, "no-commit", false, "do not remember the answer")
	cmd.Flags().StringVar(&sender, "sender", "user", "sender name recorded for the question")
	return cmd
}

func summarizeCmd() *cobra.Command {
	var contextLines int

	cmd := &cobra.Command{
		Use:   "summarize [files...]",
		Short: "Summarize file contents (or stdin)",
		Long: `Reads the given files (or stdin when none are given) and asks the agent
for a concise summary. With --context N the last N transcript entries frame
the summary so already-discussed material is not repeated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			content, err := readSummarizeInput(args)
			if err != nil {
				return err
			}

			var history any
			if contextLines > 0 {
				msgs, err := recentHistory(ctx, rt, contextLines)
				if err != nil {
					logger.Warn("transcript context unavailable", "error", err)
				} else if len(msgs) > 0 {
					history = msgs
				}
			}

			summary, err := rt.agent.Summarize(ctx, history, content)
			if err != nil {
				return err
			}
			fmt.Println(summary.Content)
			return nil
		},
	}

	cmd.Flags().IntVar(&contextLines, "context", 0, "frame the summary with the last N transcript entries")
	return cmd
}

// readSummarizeInput turns each file (or stdin) into one message so the
// prompt keeps the source names as speaker labels.
func readSummarizeInput(files []string) ([]domain.Message, error) {
	if len(files) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return nil, fmt.Errorf("nothing to summarize: no files given and stdin is empty")
		}
		return []domain.Message{domain.NewUserMessage("stdin", text)}, nil
	}

	var msgs []domain.Message
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		msgs = append(msgs, domain.NewUserMessage(filepath.Base(f), strings.TrimSpace(string(data))))
	}
	return msgs, nil
}

func recentHistory(ctx context.Context, rt *runtime, n int) ([]domain.Message, error) {
	entries, err := rt.store.RecentEntries(ctx, rt.agent.ConversationID(), n)
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, domain.Message{Sender: e.Sender, Role: e.Role, Content: e.Content})
	}
	return msgs, nil
}

func searchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search \"query\"",
		Short: "Search the workspace for related papers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ws, err := workspaceClient(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sources, err := ws.Search(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Println("No matching sources found.")
				return nil
			}

			for i, src := range sources {
				fmt.Printf("%d. %s\n", i+1, src.Title)
				if text := strings.TrimSpace(src.Chunk); text != "" {
					if len(text) > 200 {
						text = text[:200] + "..."
					}
					fmt.Printf("   %s\n", text)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum sources to show (default 8)")
	return cmd
}
