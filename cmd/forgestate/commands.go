package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dukex/forgestate/pkg/blocks"
	"github.com/dukex/forgestate/pkg/log"
	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/templates"
	"github.com/dukex/forgestate/pkg/validation"
	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func templatesCommand() *cli.Command {
	return &cli.Command{
		Name:    "templates",
		Aliases: []string{"t"},
		Usage:   "List the built-in workflow templates",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Usage: "Only templates in this category"},
			&cli.StringFlag{Name: "complexity", Usage: "Only templates of this complexity (simple, medium, complex)"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Free text search over names, descriptions and tags"},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			descriptors := templates.Default().List(templates.Filter{
				Category:   command.String("category"),
				Complexity: command.String("complexity"),
				Query:      command.String("query"),
			})

			return writeJSON(command.Root().Writer, descriptors)
		},
	}
}

func instantiateCommand() *cli.Command {
	return &cli.Command{
		Name:      "instantiate",
		Aliases:   []string{"i"},
		Usage:     "Build a workflow from a template and validate it",
		ArgsUsage: "TEMPLATE",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "param",
				Aliases: []string{"p"},
				Usage:   "Template parameter as key=value; values are parsed as YAML scalars",
			},
			&cli.StringFlag{Name: "owner", Usage: "Owner recorded on the workflow", Value: "system"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			name := command.Args().First()
			if name == "" {
				return cli.Exit("a template name is required", 2)
			}

			params, err := parseParams(command.StringSlice("param"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			workflow, err := templates.Default().Instantiate(name, params)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			workflow.UserID = command.String("owner")

			report := validation.Default(log.FromContext(ctx)).Validate(ctx, validation.ForWorkflow(workflow))

			err = writeJSON(command.Root().Writer, struct {
				Workflow   *models.Workflow        `json:"workflow"`
				Validation models.ValidationReport `json:"validation"`
			}{workflow, report})
			if err != nil {
				return err
			}

			if !report.OverallValid {
				return cli.Exit("", 1)
			}

			return nil
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate a workflow state document (JSON or YAML); - reads stdin",
		ArgsUsage: "FILE",
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return cli.Exit("a state file is required", 2)
			}

			data, err := readInput(command.Root().Reader, path)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			document, err := toJSON(data)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			report := validation.Default(log.FromContext(ctx)).Validate(ctx, validation.ForDocument(document))

			err = writeJSON(command.Root().Writer, report)
			if err != nil {
				return err
			}

			if !report.OverallValid {
				return cli.Exit("", 1)
			}

			return nil
		},
	}
}

func blocksCommand() *cli.Command {
	return &cli.Command{
		Name:  "blocks",
		Usage: "List the block types a workflow state may use",
		Action: func(_ context.Context, command *cli.Command) error {
			return writeJSON(command.Root().Writer, blocks.All())
		},
	}
}

func parseParams(raw []string) (map[string]any, error) {
	params := make(map[string]any, len(raw))

	for _, pair := range raw {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}

		var parsed any

		err := yaml.Unmarshal([]byte(value), &parsed)
		if err != nil || parsed == nil {
			parsed = value
		}

		params[key] = parsed
	}

	return params, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return data, nil
}

// toJSON passes JSON through untouched and converts YAML documents. JSON is
// valid YAML, so only non-JSON input takes the conversion path.
func toJSON(data []byte) (json.RawMessage, error) {
	if json.Valid(data) {
		return data, nil
	}

	var document any

	err := yaml.Unmarshal(data, &document)
	if err != nil {
		return nil, fmt.Errorf("document is neither JSON nor YAML: %w", err)
	}

	converted, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML document: %w", err)
	}

	return converted, nil
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}
