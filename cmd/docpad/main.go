// Command docpad is a terminal editor for the docpad API. It shows read-only
// views with their see more toggle and inserts formula, graph and image
// embeds, prompting on the terminal the way the browser editor prompts.
//
//	docpad show [-all] <documentId>
//	docpad toggle <viewId>
//	docpad insert [-index N] [-file path] <documentId> formula|graph|image
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"docpad/api/internal/config"
	"docpad/api/internal/content"
	"docpad/api/internal/embed"
	"docpad/api/internal/logging"
	"docpad/api/internal/truncate"
)

var errUsage = errors.New("usage: docpad show|toggle|insert ...")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := &cli{
		api:    newAPIClient(cfg.APIURL, cfg.APIToken),
		in:     os.Stdin,
		out:    os.Stdout,
		prompt: os.Stderr,
		log:    logger,
	}
	if err := cli.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		logger.Error().Err(err).Msg("docpad")
		os.Exit(1)
	}
}

type cli struct {
	api    *apiClient
	in     io.Reader
	out    io.Writer
	prompt io.Writer
	log    zerolog.Logger
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "show":
		return c.show(ctx, args[1:])
	case "toggle":
		return c.toggle(ctx, args[1:])
	case "insert":
		return c.insert(ctx, args[1:])
	default:
		return fmt.Errorf("%w (unknown command %q)", errUsage, args[0])
	}
}

func (c *cli) show(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(c.prompt)
	showAll := fs.Bool("all", false, "never clip the view")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	view, err := c.api.createView(ctx, fs.Arg(0), *showAll)
	if err != nil {
		return err
	}
	c.printView(view)
	return nil
}

func (c *cli) toggle(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	view, err := c.api.toggleView(ctx, args[0])
	if err != nil {
		return err
	}
	c.printView(view)
	return nil
}

func (c *cli) insert(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("insert", flag.ContinueOnError)
	fs.SetOutput(c.prompt)
	index := fs.Int("index", 0, "document position of the embed")
	file := fs.String("file", "", "image file to upload (prompted when empty)")
	current := fs.String("current", "", "value to pre-fill the prompt with")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 2 {
		return errUsage
	}
	documentID := fs.Arg(0)
	kind := content.EmbedKind(fs.Arg(1))

	prompter := embed.NewTerminalPrompter(c.in, c.prompt)
	var handler embed.Handler
	switch kind {
	case content.EmbedFormula:
		handler = embed.NewFormulaEmbed(prompter)
	case content.EmbedGraph:
		handler = embed.NewGraphEmbed(prompter)
	case content.EmbedImage:
		picker := embed.PathPicker{Path: *file, Prompter: prompter}
		handler = embed.NewImageEmbed(picker, c.api.uploadGateway(documentID))
	default:
		return fmt.Errorf("%w: %q", embed.ErrUnknownKind, kind)
	}

	value, err := embed.Run(ctx, handler, *current)
	if errors.Is(err, embed.ErrCancelled) {
		fmt.Fprintln(c.out, "cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	// The image is already stored; the API embeds it by name.
	if kind == content.EmbedImage {
		value = path.Base(value)
	}

	res, err := c.api.insertEmbed(ctx, documentID, kind, *index, value)
	if err != nil {
		return err
	}
	if !res.Inserted {
		fmt.Fprintln(c.out, "cancelled")
		return nil
	}
	c.log.Debug().Str("document_id", documentID).Str("kind", res.Kind).Msg("embed inserted")
	fmt.Fprintf(c.out, "inserted %s %s at %d\n", res.Kind, res.EmbedValue, *index)
	if res.Commit != nil && res.Commit.Hash != "" {
		fmt.Fprintf(c.out, "commit %s\n", res.Commit.Hash)
	}
	return nil
}

// printView writes the plain text of a view. A clipped view keeps its first
// lines and ends with the toggle.
func (c *cli) printView(view viewResponse) {
	fmt.Fprintf(c.out, "# %s\n\n", view.Document.Title)
	lines := strings.Split(strings.TrimRight(plainLines(view.Value), "\n"), "\n")
	if truncate.Class(view.View.Class) == truncate.ClassLastLine && len(lines) > truncate.ClippedLines {
		lines = lines[:truncate.ClippedLines]
	}
	for _, line := range lines {
		fmt.Fprintln(c.out, line)
	}
	if view.View.ShowToggle {
		fmt.Fprintf(c.out, "\n%s  (docpad toggle %s)\n", view.View.ToggleLabel, view.View.ID)
	}
	if view.View.Stale {
		fmt.Fprintln(c.out, "(document changed since this view was measured)")
	}
}

// plainLines renders embeds inline so formulas and graphs stay readable.
func plainLines(delta content.Delta) string {
	var b strings.Builder
	for _, op := range delta.Ops {
		switch {
		case op.IsText():
			b.WriteString(op.Insert)
		case op.IsEmbed():
			fmt.Fprintf(&b, "[%s: %s]", op.Embed.Kind, op.Embed.Value)
		}
	}
	return b.String()
}
