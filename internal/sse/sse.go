// Package sse reads and writes the server-sent event framing used by chat
// streams. Events carry OpenAI-compatible chunks; only the text delta at
// choices[0].delta.content matters to the relay.
package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Done is the data payload that terminates a stream.
const Done = "[DONE]"

const maxEventSize = 1 << 20

// Reader decodes a stream of events into content deltas.
type Reader struct {
	sc *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &Reader{sc: sc}
}

// Next returns the content of the next delta event. Events without a content
// delta (role announcements, finish markers, comments) are skipped. It
// returns io.EOF after the Done marker or at the end of input.
func (r *Reader) Next() (string, error) {
	for r.sc.Scan() {
		line := strings.TrimRight(r.sc.Text(), "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == Done {
			return "", io.EOF
		}
		if !gjson.Valid(data) {
			return "", errors.Errorf("invalid event payload: %.80q", data)
		}
		if msg := errorMessage(data); msg != "" {
			return "", errors.Errorf("upstream stream error: %s", msg)
		}
		content := gjson.Get(data, "choices.0.delta.content")
		if !content.Exists() {
			continue
		}
		return content.String(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", errors.Wrap(err, "reading event stream")
	}
	return "", io.EOF
}

func errorMessage(data string) string {
	e := gjson.Get(data, "error")
	if !e.Exists() || e.Type == gjson.Null {
		return ""
	}
	if e.IsObject() {
		return e.Get("message").String()
	}
	return e.String()
}

type delta struct {
	Content string `json:"content"`
}

type choice struct {
	Index int   `json:"index"`
	Delta delta `json:"delta"`
}

type chunkEvent struct {
	Object  string   `json:"object"`
	Choices []choice `json:"choices"`
}

// WriteDelta writes one content delta as a single event.
func WriteDelta(w io.Writer, content string) error {
	payload, err := json.Marshal(chunkEvent{
		Object:  "chat.completion.chunk",
		Choices: []choice{{Delta: delta{Content: content}}},
	})
	if err != nil {
		return errors.Wrap(err, "encoding delta event")
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return errors.Wrap(err, "writing delta event")
	}
	return nil
}

// WriteDone writes the stream terminator.
func WriteDone(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", Done); err != nil {
		return errors.Wrap(err, "writing done event")
	}
	return nil
}
