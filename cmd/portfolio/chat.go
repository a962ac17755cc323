package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/thomasboom/portfolio/internal/chat"
	"github.com/thomasboom/portfolio/internal/models"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal; /new starts over, /exit quits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			llm, err := cfg.LLM.llm(logger)
			if err != nil {
				return fmt.Errorf("error creating llm: %w", err)
			}

			interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
			repl := terminalChat{
				orchestrator: chat.NewOrchestrator(llm, logger),
				session:      chat.NewSession("terminal", cfg.Persona),
				prompt:       interactive,
			}
			return repl.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

type terminalChat struct {
	orchestrator chat.Orchestrator
	session      *chat.Session
	// prompt prints "> " before every line read.
	prompt bool
}

func (t terminalChat) run(ctx context.Context, in io.Reader, out io.Writer) error {
	printed := 0
	t.session.Transcript.OnChange(func(c models.Change) {
		if c.Message.Role != models.RoleAssistant {
			return
		}
		if c.Kind == models.ChangeAppended {
			if printed > 0 {
				fmt.Fprintln(out)
			}
			printed = 0
		}
		fmt.Fprint(out, c.Message.Content[printed:])
		printed = len(c.Message.Content)
	})

	scanner := bufio.NewScanner(in)
	for {
		if t.prompt {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/new":
			t.session.Reset()
			fmt.Fprintln(out, "Started a new chat.")
			continue
		}

		printed = 0
		// Ctrl-C interrupts the answer being streamed, not the program.
		exchangeCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		err := t.orchestrator.Submit(exchangeCtx, t.session, line)
		stop()
		if err != nil && !errors.Is(err, models.ErrInvalidInput) {
			return err
		}
		fmt.Fprintln(out)

		if ctx.Err() != nil {
			return nil
		}
	}

	return scanner.Err()
}
