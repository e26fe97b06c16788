package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// TextHandler implements the terminal interface: it prints each document and
// prompts for digits.
type TextHandler struct {
	Reader      *bufio.Reader
	Writer      io.Writer
	Renderer    ContentRenderer
	interactive bool

	lines chan inputResult
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader:      bufio.NewReader(r),
		Writer:      w,
		interactive: IsTerminal(r),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// IsTerminal reports whether r is an interactive terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (h *TextHandler) Output(ctx context.Context, turn Turn) error {
	summary := Summary(turn)
	if h.Renderer != nil {
		if rendered, err := h.Renderer(summary); err == nil {
			summary = rendered
		}
	}
	_, err := fmt.Fprintln(h.Writer, strings.TrimSpace(summary))
	return err
}

func (h *TextHandler) Input(ctx context.Context, turn Turn) (string, error) {
	prompt := "digits> "
	if !turn.Paused {
		prompt = "[enter to continue]> "
	}

	// Reading happens on a goroutine so cancellation does not wait for a line.
	if h.lines == nil {
		h.lines = make(chan inputResult)
		go h.pump()
	}

	for {
		if h.interactive {
			fmt.Fprint(h.Writer, prompt)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.lines:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := SanitizeDigits(strings.TrimSpace(res.text), 0)
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.lines <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.lines <- inputResult{err: err}
			}
			close(h.lines)
			return
		}
	}
}

// Summary renders a turn as markdown.
func Summary(turn Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Turn %d", turn.Number)
	if turn.Digits != "" {
		fmt.Fprintf(&b, " (digits `%s`)", turn.Digits)
	}
	b.WriteString("\n\n")

	if turn.Error != "" {
		fmt.Fprintf(&b, "**Turn failed:** %s\n", turn.Error)
		return b.String()
	}

	b.WriteString("```xml\n")
	b.WriteString(strings.TrimSpace(turn.Document))
	b.WriteString("\n```\n")

	switch {
	case turn.Completed:
		b.WriteString("\n_Call completed._\n")
	case turn.Paused:
		b.WriteString("\n_Waiting for digits._\n")
	}
	return b.String()
}
