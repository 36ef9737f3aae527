package llm

import (
	"bytes"
	"encoding/json"

	"github.com/openai/openai-go"
)

var (
	dataPrefix = []byte("data: ")
	doneMarker = []byte("[DONE]")
)

type frameKind int

const (
	frameIgnored frameKind = iota
	frameToken
	frameDone
	frameMalformed
)

// parseLine classifies one complete SSE line and extracts its text delta
func parseLine(line []byte) (frameKind, string) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, dataPrefix) {
		return frameIgnored, ""
	}
	payload := line[len(dataPrefix):]
	if bytes.Equal(payload, doneMarker) {
		return frameDone, ""
	}

	delta, ok := decodeChunk(payload)
	if !ok {
		return frameMalformed, ""
	}
	if delta == "" {
		return frameIgnored, ""
	}
	return frameToken, delta
}

func decodeChunk(payload []byte) (string, bool) {
	if !json.Valid(payload) {
		return "", false
	}
	var chunk openai.ChatCompletionChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", true
	}
	return chunk.Choices[0].Delta.Content, true
}

// lineBuffer accumulates raw bytes and yields complete lines.
// Lines are split on '\n' before decoding, so a multi-byte character cut by a read
// boundary is reassembled by the next read.
type lineBuffer struct {
	buf []byte
}

func (b *lineBuffer) write(p []byte) {
	b.buf = append(b.buf, p...)
}

// next returns the next complete line without its terminator
func (b *lineBuffer) next() ([]byte, bool) {
	i := bytes.IndexByte(b.buf, '\n')
	if i < 0 {
		return nil, false
	}
	line := make([]byte, i)
	copy(line, b.buf[:i])
	b.buf = b.buf[:copy(b.buf, b.buf[i+1:])]
	return line, true
}

// rest drains the unterminated tail
func (b *lineBuffer) rest() []byte {
	tail := b.buf
	b.buf = nil
	return tail
}

func (b *lineBuffer) len() int {
	return len(b.buf)
}
