package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"paperbot/internal/backend"
	"paperbot/internal/config"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your paperbot installation",
		Long: `Verifies that paperbot's configuration, workspace service, database and
paper library are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("Paperbot Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'paperbot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			// 3. API key resolves
			if cfg.API.APIKey == "" {
				printFail("API key", "not set (api.apiKey or ANYTHINGLLM_API_KEY)")
				failed++
			} else {
				printPass("API key", "configured")
				passed++
			}

			// 4. Service reachable / workspace exists
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if ws, err := workspaceClient(cfg); err != nil {
				printWarn("Workspace service", fmt.Sprintf("client not built: %v", err))
				warned++
			} else if details, err := ws.Info(ctx); err != nil {
				if errors.Is(err, backend.ErrWorkspaceNotFound) {
					printWarn("Workspace", fmt.Sprintf("%s not found (run 'paperbot workspace ensure')", ws.Slug()))
					warned++
				} else {
					printFail("Workspace service", err.Error())
					failed++
				}
			} else {
				printPass("Workspace service", cfg.API.BaseURL)
				passed++
				printPass("Workspace", fmt.Sprintf("%s (%s)", details.Slug, details.Name))
				passed++
			}

			// 5. Database writable
			if err := checkDatabase(cfg.Storage.DBPath); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", cfg.Storage.DBPath)
				passed++
			}

			// 6. Papers directory
			papersDir := cfg.Library.PapersDir
			if info, err := os.Stat(papersDir); err != nil {
				printWarn("Papers directory", fmt.Sprintf("not found: %s (created on first use)", papersDir))
				warned++
			} else if !info.IsDir() {
				printFail("Papers directory", fmt.Sprintf("not a directory: %s", papersDir))
				failed++
			} else {
				printPass("Papers directory", papersDir)
				passed++
			}

			// 7. Web port
			if cfg.Channels.Web.Enabled {
				port := cfg.Channels.Web.Port
				if err := checkPort(port); err != nil {
					printWarn("Web port", fmt.Sprintf("port %d may be in use: %v", port, err))
					warned++
				} else {
					printPass("Web port", fmt.Sprintf(":%d available", port))
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running paperbot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nPaperbot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! Paperbot is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
