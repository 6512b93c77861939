package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mnemo/pkg/usecase/ask"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg       config
		inputPath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to JSON file containing a role/content message list",
			Destination: &inputPath,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "One-shot completion with the memory research persona",
		ArgsUsage: "<prompt>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.finalize(ctx)
			if err != nil {
				return err
			}

			messages, err := loadMessages(inputPath, strings.Join(c.Args().Slice(), " "))
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			uc := ask.New(gemini, ask.WithTimeout(cfg.askTimeout))
			w := c.Root().Writer
			if _, err := uc.Ask(ctx, messages, func(chunk string) {
				fmt.Fprint(w, chunk)
			}); err != nil {
				return goerr.Wrap(err, "failed to complete")
			}
			fmt.Fprintln(w)
			return nil
		},
	}
}

// loadMessages builds the request conversation from a JSON message file,
// or from the command line prompt as a single user message.
func loadMessages(inputPath, prompt string) ([]ask.Message, error) {
	if inputPath != "" {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read input file", goerr.V("path", inputPath))
		}
		var messages []ask.Message
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, goerr.Wrap(err, "failed to parse input file", goerr.V("path", inputPath))
		}
		return messages, nil
	}

	if prompt == "" {
		return nil, goerr.New("prompt is required (argument or --input)")
	}
	return []ask.Message{{Role: "user", Content: prompt}}, nil
}
