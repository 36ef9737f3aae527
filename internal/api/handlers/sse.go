package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const sseDone = "[DONE]"

// sseWriter writes "data:" frames. Headers go out with the first frame so a
// handler can still answer with a plain JSON error before that.
type sseWriter struct {
	c       *gin.Context
	started bool
}

func newSSEWriter(c *gin.Context) *sseWriter {
	return &sseWriter{c: c}
}

func (w *sseWriter) start() {
	if w.started {
		return
	}
	w.started = true

	w.c.Header("Content-Type", "text/event-stream")
	w.c.Header("Cache-Control", "no-cache")
	w.c.Header("Connection", "keep-alive")
	w.c.Header("X-Accel-Buffering", "no") // Disable nginx buffering
	w.c.Status(http.StatusOK)
}

// send writes one JSON frame and flushes it
func (w *sseWriter) send(event interface{}) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return w.write(string(eventJSON))
}

// done writes the terminal frame
func (w *sseWriter) done() error {
	return w.write(sseDone)
}

func (w *sseWriter) write(data string) error {
	w.start()
	if _, err := fmt.Fprintf(w.c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}
