package embed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"docpad/api/internal/upload"
)

// Answer is a Prompter that replays a value already collected elsewhere, e.g.
// from an HTTP request body. An empty answer cancels.
type Answer string

func (a Answer) Prompt(ctx context.Context, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(a), nil
}

// SelectedFile is a FilePicker that hands back a file chosen elsewhere. A nil
// file means nothing was chosen.
type SelectedFile struct {
	File *upload.File
}

func (s SelectedFile) PickFile(ctx context.Context, _ []string) (*upload.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.File, nil
}

// TerminalPrompter reads answers line by line. An empty line keeps the seed;
// end of input dismisses the prompt.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *TerminalPrompter) Prompt(ctx context.Context, message, seed string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if seed != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", message, seed)
	} else {
		fmt.Fprintf(p.out, "%s: ", message)
	}
	line, err := p.in.ReadString('\n')
	switch {
	case errors.Is(err, io.EOF) && line == "":
		return "", ErrCancelled
	case err != nil && !errors.Is(err, io.EOF):
		return "", err
	}
	answer := strings.TrimRight(line, "\r\n")
	if answer == "" {
		// the seed is pre-filled, as in a browser prompt
		return seed, nil
	}
	return answer, nil
}

// PathPicker opens a local file chosen by path, prompting for the path when
// none is given. The content type is sniffed from the file head.
type PathPicker struct {
	Path     string
	Prompter Prompter
}

func (p PathPicker) PickFile(ctx context.Context, accept []string) (*upload.File, error) {
	path := p.Path
	if path == "" && p.Prompter != nil {
		answer, err := p.Prompter.Prompt(ctx, "Image file ("+strings.Join(accept, ", ")+")", "")
		if err != nil {
			return nil, err
		}
		path = strings.TrimSpace(answer)
	}
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		_ = f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rewind %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	return &upload.File{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(head[:n]),
		Size:        stat.Size(),
		Body:        f,
	}, nil
}
