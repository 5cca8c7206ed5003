// Command aletheia works on exported graph snapshots offline: it prints
// insights, renders exports and mints development tokens.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/wuzhiguocarter/Aletheia/internal/export"
	"github.com/wuzhiguocarter/Aletheia/internal/graph"
	"github.com/wuzhiguocarter/Aletheia/internal/insight"
	"github.com/wuzhiguocarter/Aletheia/pkg/auth"
)

const usage = `usage: aletheia <command> [flags]

commands:
  insights  -snapshot FILE                      list insights for a graph snapshot
  export    -snapshot FILE -format F -title T   render a snapshot (markdown, article, presentation)
  token     -user ID [-email E] [-ttl D]        sign a token with $JWT_SECRET
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "insights":
		err = runInsights(args[1:], stdout)
	case "export":
		err = runExport(args[1:], stdout)
	case "token":
		err = runToken(args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		err = fmt.Errorf("unknown command %q", args[0])
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newFlagSet(name string) (*flag.FlagSet, *bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	noColor := fs.Bool("no-color", false, "disable colored output")
	return fs, noColor
}

func runInsights(args []string, stdout io.Writer) error {
	fs, noColor := newFlagSet("insights")
	path := fs.String("snapshot", "", "graph snapshot JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	color.NoColor = color.NoColor || *noColor

	snap, err := readSnapshot(*path)
	if err != nil {
		return err
	}

	insights := insight.Analyze(snap.Blocks)
	heading := color.New(color.Bold)
	heading.Fprintf(stdout, "%d blocks, %d relationships\n", len(snap.Blocks), len(snap.Relationships))
	if len(insights) == 0 {
		fmt.Fprintln(stdout, "no insights yet")
		return nil
	}
	for _, in := range insights {
		insightColor(in.Type).Fprintf(stdout, "[%s] ", in.Type)
		heading.Fprintln(stdout, in.Title)
		fmt.Fprintf(stdout, "    %s\n", in.Description)
		if len(in.RelatedBlocks) > 0 {
			ids := make([]string, len(in.RelatedBlocks))
			for i, id := range in.RelatedBlocks {
				ids[i] = id.String()
			}
			color.New(color.Faint).Fprintf(stdout, "    blocks: %s\n", strings.Join(ids, ", "))
		}
	}
	return nil
}

func insightColor(t insight.Type) *color.Color {
	switch t {
	case insight.TypeGap:
		return color.New(color.FgYellow)
	case insight.TypeOpportunity:
		return color.New(color.FgGreen)
	case insight.TypeContradiction:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgCyan)
	}
}

func runExport(args []string, stdout io.Writer) error {
	fs, _ := newFlagSet("export")
	path := fs.String("snapshot", "", "graph snapshot JSON file")
	format := fs.String("format", string(export.FormatMarkdown), "markdown, article or presentation")
	title := fs.String("title", "Untitled", "document title")
	out := fs.String("out", "", "write to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}
	snap, err := readSnapshot(*path)
	if err != nil {
		return err
	}
	text, err := export.Render(export.Document{
		Title:         *title,
		Blocks:        snap.Blocks,
		Relationships: snap.Relationships,
	}, f)
	if err != nil {
		return err
	}

	if *out == "" {
		_, err = io.WriteString(stdout, text)
		return err
	}
	if err := os.WriteFile(*out, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}
	color.New(color.FgGreen).Fprintf(stdout, "wrote %s\n", *out)
	return nil
}

func runToken(args []string, stdout io.Writer) error {
	fs, _ := newFlagSet("token")
	user := fs.String("user", "", "user id (token subject)")
	email := fs.String("email", "", "email claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	issuer := fs.String("issuer", "aletheia", "issuer claim")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := auth.NewGenerator(auth.Config{
		SecretKey: os.Getenv("JWT_SECRET"),
		Issuer:    *issuer,
		TTL:       *ttl,
	})
	if err != nil {
		return err
	}
	token, err := g.Generate(*user, *email)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func readSnapshot(path string) (graph.Snapshot, error) {
	if path == "" {
		return graph.Snapshot{}, errors.New("-snapshot is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap graph.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return graph.Snapshot{}, fmt.Errorf("invalid snapshot %s: %w", path, err)
	}
	return snap, nil
}
