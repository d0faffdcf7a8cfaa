package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"paperbot/internal/config"
	"paperbot/internal/library"
	"paperbot/internal/transcript"

	"github.com/spf13/cobra"
)

// buildLibrary opens the papers library, optionally wired to the workspace
// uploader. dir overrides the configured papers directory when non-empty.
func buildLibrary(cfg *config.Config, dir string, withUploader bool) (*library.Library, error) {
	if dir == "" {
		dir = cfg.Library.PapersDir
	}
	libCfg := library.Config{
		Dir:        config.ExpandPath(dir),
		Extensions: cfg.Library.Extensions,
		Logger:     logger,
	}
	if withUploader {
		ws, err := workspaceClient(cfg)
		if err != nil {
			return nil, err
		}
		libCfg.Uploader = ws
	}
	return library.New(libCfg)
}

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload [dir]",
		Short: "Upload the paper library into the workspace",
		Long: `Uploads every matching document from the papers directory (or the given
directory) into the configured workspace. A failed file does not stop the
batch; the summary reports how many succeeded and failed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			lib, err := buildLibrary(cfg, dir, true)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := lib.UploadAll(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%d uploaded, %d failed\n", summary.Uploaded, summary.Failed)
			for _, f := range summary.Failures {
				fmt.Printf("  failed: %s (%v)\n", f.File, f.Err)
			}
			if summary.Uploaded == 0 && summary.Failed > 0 {
				return fmt.Errorf("all %d uploads failed", summary.Failed)
			}
			return nil
		},
	}
}

func samplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "samples [dir]",
		Short: "Write the sample papers into the library",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			lib, err := buildLibrary(cfg, dir, false)
			if err != nil {
				return err
			}

			written, err := lib.CreateSamples()
			if err != nil {
				return err
			}
			fmt.Printf("%d sample papers written to %s\n", len(written), lib.Dir())
			for _, f := range written {
				fmt.Printf("  %s\n", filepath.Base(f))
			}
			fmt.Println("\nRun 'paperbot upload' to index them.")
			return nil
		},
	}
}

func fetchCmd() *cobra.Command {
	var upload bool

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Fetch a web page into the library as a text document",
		Long: `Renders the page in headless Chrome, extracts its readable text and saves
it into the papers directory. With --upload the document is pushed into the
workspace right away.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			lib, err := buildLibrary(cfg, "", upload)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fetcher := library.NewFetcher(lib, 60*time.Second, logger)
			path, err := fetcher.Fetch(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Saved: %s\n", path)

			if upload {
				if err := lib.UploadFile(ctx, path); err != nil {
					return fmt.Errorf("upload %s: %w", filepath.Base(path), err)
				}
				fmt.Printf("Uploaded: %s\n", filepath.Base(path))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&upload, "upload", false, "upload the fetched document into the workspace")
	return cmd
}

func workspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Inspect or provision the workspace",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show workspace metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ws, err := workspaceClient(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), apiTimeout(cfg))
			defer cancel()

			details, err := ws.Info(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Name: %s\nSlug: %s\nURL:  %s\n", details.Name, details.Slug, ws.BaseURL())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the workspace if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ws, err := workspaceClient(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), apiTimeout(cfg))
			defer cancel()

			created, err := ws.Ensure(ctx, workspaceDisplayName(ws.Slug()))
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("Workspace %s created.\n", ws.Slug())
			} else {
				fmt.Printf("Workspace %s already exists.\n", ws.Slug())
			}
			return nil
		},
	})

	return cmd
}

// workspaceDisplayName turns a slug into a human-readable workspace name.
func workspaceDisplayName(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "Show the recent transcript",
		Long: `Prints the most recent transcript entries. Without an argument the most
recently updated conversation is shown; 'paperbot history list' shows all
conversations.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := transcript.NewSQLiteStore(cfg.Storage.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			convID := ""
			if len(args) == 1 {
				convID = args[0]
			} else {
				convs, err := store.ListConversations(ctx, 1)
				if err != nil {
					return err
				}
				if len(convs) == 0 {
					fmt.Println("No conversations recorded yet.")
					return nil
				}
				convID = convs[0].ID
				fmt.Printf("Conversation: %s (%s)\n\n", convs[0].Title, convs[0].ID)
			}

			entries, err := store.RecentEntries(ctx, convID, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("[%s] %s: %s\n", e.CreatedAt.Format("15:04:05"), e.Sender, e.Content)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := transcript.NewSQLiteStore(cfg.Storage.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			convs, err := store.ListConversations(ctx, 0)
			if err != nil {
				return err
			}
			if len(convs) == 0 {
				fmt.Println("No conversations recorded yet.")
				return nil
			}
			for _, c := range convs {
				fmt.Printf("%s  %-10s %s  %s\n",
					c.UpdatedAt.Format("2006-01-02 15:04"), c.Channel, c.ID, c.Title)
			}
			return nil
		},
	})

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum entries to show")
	return cmd
}
