package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mnemo/pkg/model"
	"github.com/m-mizutani/mnemo/pkg/usecase/research"
	"github.com/m-mizutani/mnemo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive research chat over the streaming backend",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.finalize(ctx)
			if err != nil {
				return err
			}
			if cfg.userID == "" {
				return goerr.New("user-id is required")
			}

			backend, err := cfg.newBackend()
			if err != nil {
				return err
			}
			defer func() {
				if err := backend.Close(); err != nil {
					logging.From(ctx).Warn("failed to close connection", "error", err)
				}
			}()

			updates := make(chan research.Snapshot, 16)
			ctrl := research.NewController(backend, cfg.userID,
				research.WithLogger(logging.From(ctx)),
				research.WithNotify(func(snap research.Snapshot) {
					// Keep only the latest snapshot when the REPL lags.
					for {
						select {
						case updates <- snap:
							return
						default:
							select {
							case <-updates:
							default:
							}
						}
					}
				}),
			)

			return runREPL(ctx, c.Root().Writer, ctrl, updates)
		},
	}
}

func runREPL(ctx context.Context, w io.Writer, ctrl *research.Controller, updates <-chan research.Snapshot) error {
	rl, err := readline.New("mnemo> ")
	if err != nil {
		return goerr.Wrap(err, "failed to initialize readline")
	}
	defer rl.Close()

	fmt.Fprintf(w, "Chat session started. Type 'exit' to quit, 'clear' to reset, 'cite <n>' for source details.\n")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read input")
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue

		case line == "exit" || line == "quit":
			fmt.Fprintf(w, "\nChat session completed\n")
			return nil

		case line == "clear":
			ctrl.Clear()
			fmt.Fprintf(w, "Conversation cleared.\n")

		case strings.HasPrefix(line, "cite"):
			renderCitationDetail(w, ctrl.Snapshot(), strings.TrimSpace(strings.TrimPrefix(line, "cite")))

		default:
			if err := runQuery(ctx, w, ctrl, updates, line); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(w, "\nChat session completed\n")
	return nil
}

// runQuery submits one prompt and consumes snapshots until the session
// reaches a terminal phase, then renders it once.
func runQuery(ctx context.Context, w io.Writer, ctrl *research.Controller, updates <-chan research.Snapshot, prompt string) error {
	id, err := ctrl.Submit(ctx, prompt)
	if err != nil {
		if errors.Is(err, research.ErrSessionInFlight) {
			fmt.Fprintf(w, "A query is still in flight; wait for it to finish.\n")
			return nil
		}
		logging.From(ctx).Error("query submission failed", "error", err)
		if view, ok := findSession(ctrl.Snapshot(), id); ok {
			renderSession(w, view)
		}
		return nil
	}

	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	sp.Suffix = " waiting for backend..."
	sp.Start()
	defer sp.Stop()

	for {
		select {
		case <-ctx.Done():
			return goerr.Wrap(ctx.Err(), "interrupted while streaming")
		case snap := <-updates:
			view, ok := findSession(snap, id)
			if !ok {
				continue
			}
			sp.Suffix = statusSuffix(view, snap)
			if view.Phase.Terminal() {
				sp.Stop()
				renderSession(w, view)
				return nil
			}
		}
	}
}

func findSession(snap research.Snapshot, id model.SessionID) (research.SessionView, bool) {
	for _, v := range snap.Sessions {
		if v.ID == id {
			return v, true
		}
	}
	return research.SessionView{}, false
}

func statusSuffix(view research.SessionView, snap research.Snapshot) string {
	switch {
	case view.Rationale.Streaming || view.Answer.Streaming:
		return fmt.Sprintf(" streaming (rationale %dB, answer %dB)", len(view.Rationale.Text), len(view.Answer.Text))
	case snap.Thinking:
		return " thinking..."
	default:
		return " waiting for backend..."
	}
}

// renderCitationDetail prints the full record of citation n from the most
// recent session that has citations.
func renderCitationDetail(w io.Writer, snap research.Snapshot, arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		fmt.Fprintf(w, "Usage: cite <n>\n")
		return
	}

	for i := len(snap.Sessions) - 1; i >= 0; i-- {
		citations := snap.Sessions[i].Citations
		if len(citations) == 0 {
			continue
		}
		if n > len(citations) {
			fmt.Fprintf(w, "No citation [%d]; the latest response has %d sources.\n", n, len(citations))
			return
		}
		renderCitation(w, n, citations[n-1])
		return
	}

	fmt.Fprintf(w, "No citations yet.\n")
}
