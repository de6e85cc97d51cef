package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/contextual/internal"
	"github.com/starford/contextual/internal/workspace"
	pkgconfig "github.com/starford/contextual/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if ws := cmd.String("workspace"); ws != "" {
		cfg.Workspace.Path = ws
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

// withWorkspace runs fn against the configured workspace after syncing it
// with its notes directory.
func withWorkspace(ctx context.Context, cmd *cli.Command, fn func(*workspace.Workspace) (any, error)) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(cfg.App)

	eng, ws, err := internal.OpenDefault(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	out, err := fn(ws)
	if err != nil {
		return err
	}
	if s, ok := out.(string); ok {
		_, err = fmt.Fprint(os.Stdout, s)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.Args().First()
	if v == "" {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return v, nil
}

// bodyFrom returns --body, the contents of --file, or stdin.
func bodyFrom(cmd *cli.Command) (string, error) {
	if cmd.IsSet("body") {
		return cmd.String("body"), nil
	}
	if path := cmd.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func saveNote(ctx context.Context, cmd *cli.Command) error {
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	body, err := bodyFrom(cmd)
	if err != nil {
		return err
	}
	return withWorkspace(ctx, cmd, func(ws *workspace.Workspace) (any, error) {
		doc, changed, err := ws.SaveNote(ctx, title, body)
		if err != nil {
			return nil, err
		}
		return map[string]any{"title": title, "changed": changed, "tags": doc.Tags}, nil
	})
}

func removeNote(ctx context.Context, cmd *cli.Command) error {
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	return withWorkspace(ctx, cmd, func(ws *workspace.Workspace) (any, error) {
		removed, err := ws.RemoveNote(ctx, title)
		if err != nil {
			return nil, err
		}
		return map[string]any{"title": title, "removed": removed}, nil
	})
}

func readNote(ctx context.Context, cmd *cli.Command) error {
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	return withWorkspace(ctx, cmd, func(ws *workspace.Workspace) (any, error) {
		return ws.ReadNote(ctx, title)
	})
}

func getTags(ctx context.Context, cmd *cli.Command) error {
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	return withWorkspace(ctx, cmd, func(ws *workspace.Workspace) (any, error) {
		return ws.GetTags(ctx, title)
	})
}

func setTags(ctx context.Context, cmd *cli.Command) error {
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	return withWorkspace(ctx, cmd, func(ws *workspace.Workspace) (any, error) {
		return ws.SetTags(ctx, title, cmd.StringSlice("tag"))
	})
}

func search(ctx context.Context, cmd *cli.Command) error {
	text, err := requireArg(cmd, "query")
	if err != nil {
		return err
	}
	return withWorkspace(ctx, cmd, func(ws *workspace.Workspace) (any, error) {
		return ws.Search(ctx, text, cmd.StringSlice("tag"), int(cmd.Int("results")))
	})
}

func contextSearch(ctx context.Context, cmd *cli.Command) error {
	text, err := bodyFrom(cmd)
	if err != nil {
		return err
	}
	return withWorkspace(ctx, cmd, func(ws *workspace.Workspace) (any, error) {
		q := workspace.ContextQuery{
			Text:             text,
			Cursor:           int(cmd.Int("cursor")),
			Results:          int(cmd.Int("results")),
			ContextSentences: int(cmd.Int("context-sentences")),
		}
		if cmd.IsSet("title") {
			title := cmd.String("title")
			q.Title = &title
		}
		return ws.ContextSearch(ctx, q)
	})
}

func listFiles(ctx context.Context, cmd *cli.Command) error {
	return withWorkspace(ctx, cmd, func(ws *workspace.Workspace) (any, error) {
		return ws.Files(ctx)
	})
}

func bodyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "Note body (default: read --file or stdin)"},
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read the body from a file"},
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "contextual",
		Usage:  "Personal knowledge base with semantic search, cursor context lookup and automatic tagging",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("CONTEXTUAL_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "workspace",
				Aliases: []string{"w"},
				Usage:   "Workspace directory (overrides the config file)",
				Sources: cli.EnvVars("CONTEXTUAL_WORKSPACE_PATH"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the MCP tools over stdio",
				Action: serve,
			},
			{
				Name:      "save",
				Usage:     "Create or replace a note",
				ArgsUsage: "TITLE",
				Flags:     bodyFlags(),
				Action:    saveNote,
			},
			{
				Name:      "remove",
				Usage:     "Delete a note",
				ArgsUsage: "TITLE",
				Action:    removeNote,
			},
			{
				Name:      "read",
				Usage:     "Print a note body",
				ArgsUsage: "TITLE",
				Action:    readNote,
			},
			{
				Name:      "tags",
				Usage:     "List the tags of a note",
				ArgsUsage: "TITLE",
				Action:    getTags,
			},
			{
				Name:      "set-tags",
				Usage:     "Replace the manual tags of a note",
				ArgsUsage: "TITLE",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Tag name (repeatable)"},
				},
				Action: setTags,
			},
			{
				Name:      "search",
				Usage:     "Semantic search over notes",
				ArgsUsage: "QUERY",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Only notes carrying this tag (repeatable)"},
					&cli.IntFlag{Name: "results", Aliases: []string{"n"}, Value: 5, Usage: "Maximum number of results"},
				},
				Action: search,
			},
			{
				Name:  "context",
				Usage: "Find passages related to the sentences around a cursor",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "cursor", Usage: "Cursor position in UTF-16 code units"},
					&cli.StringFlag{Name: "title", Usage: "Title of the note being edited; it is left out of the results"},
					&cli.IntFlag{Name: "results", Aliases: []string{"n"}, Value: 5, Usage: "Maximum number of results"},
					&cli.IntFlag{Name: "context-sentences", Value: 3, Usage: "Sentences of context around each match"},
				}, bodyFlags()...),
				Action: contextSearch,
			},
			{
				Name:   "ls",
				Usage:  "List every note with its tags",
				Action: listFiles,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
