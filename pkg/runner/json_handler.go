package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
// Each turn is emitted as one JSON object; each input line is either a JSON
// string, an object with a "digits" field, or raw text.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, turn Turn) error {
	return h.Encoder.Encode(turn)
}

func (h *JSONHandler) Input(ctx context.Context, turn Turn) (string, error) {
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	text = strings.TrimSpace(text)

	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		return val, nil
	}

	var obj struct {
		Digits string `json:"digits"`
	}
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj.Digits, nil
	}

	// Fallback: return raw text (e.g. if they just sent plain digits)
	return text, nil
}
