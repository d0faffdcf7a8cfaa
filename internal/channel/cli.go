package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const cliAskTimeout = 2 * time.Minute

// CLI is an interactive terminal channel. It reads questions line by line
// and prints the agent's answers.
type CLI struct {
	turns     *Turns
	logger    *slog.Logger
	in        io.Reader
	out       io.Writer
	thinking  bool
	thinkMu   sync.Mutex
	thinkStop chan struct{}
}

type CLIConfig struct {
	Turns  *Turns
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &CLI{
		turns:  cfg.Turns,
		logger: cfg.Logger,
		in:     cfg.In,
		out:    cfg.Out,
	}
}

func (c *CLI) Name() string { return "cli" }

// Start runs the interactive REPL and blocks until EOF or a quit command.
func (c *CLI) Start(ctx context.Context) error {
	_, _ = fmt.Fprintf(c.out, "%s is ready. Ask about your papers. Type /quit to exit.\n", c.turns.AgentName())
	_, _ = fmt.Fprint(c.out, "You> ")

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil // EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			_, _ = fmt.Fprint(c.out, "You> ")
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			c.logger.Info("user requested quit")
			return nil
		}

		c.respond(ctx, line)
		_, _ = fmt.Fprint(c.out, "You> ")
	}
}

func (c *CLI) respond(ctx context.Context, question string) {
	askCtx, cancel := context.WithTimeout(ctx, cliAskTimeout)
	defer cancel()

	c.startThinking()
	reply, err := c.turns.Ask(askCtx, c.Name(), "cli-user", question)
	c.stopThinking()

	_, _ = fmt.Fprint(c.out, "\r\033[K") // Clear spinner line
	if err != nil {
		_, _ = fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	_, _ = fmt.Fprintf(c.out, "--- %s ---\n", c.turns.AgentName())
	_, _ = fmt.Fprintln(c.out, reply)
	_, _ = fmt.Fprintln(c.out, "----------------")
}

func (c *CLI) startThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinking {
		return
	}
	c.thinking = true
	c.thinkStop = make(chan struct{})
	go func() {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-c.thinkStop:
				return
			case <-ticker.C:
				fmt.Fprintf(c.out, "\r%s Thinking...", frames[i%len(frames)])
				i++
			}
		}
	}()
}

func (c *CLI) stopThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if !c.thinking {
		return
	}
	c.thinking = false
	close(c.thinkStop)
}

// Stop is a no-op for CLI (we exit when Start returns).
func (c *CLI) Stop() error { return nil }
