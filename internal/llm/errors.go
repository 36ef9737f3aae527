package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	maxErrorBodyBytes  = 4 << 10
	maxUserMessageRune = 200
)

// ErrStalled is the cause of a stream aborted by the idle timeout
var ErrStalled = errors.New("upstream stalled")

// UpstreamHTTPError is a non-2xx response from the provider
type UpstreamHTTPError struct {
	StatusCode int
	Body       string // at most 4 KiB
	Message    string // extracted from the body when it is a structured error
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

// UserMessage is the text shown to the end user
func (e *UpstreamHTTPError) UserMessage() string {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return "API Key 无效，请检查配置"
	case http.StatusTooManyRequests:
		return "请求过于频繁，请稍后重试"
	default:
		return fmt.Sprintf("生成失败 (%d): %s", e.StatusCode, truncateRunes(e.Message, maxUserMessageRune))
	}
}

// StreamReadError wraps a transport failure while requesting or reading the stream
type StreamReadError struct {
	Op  string // "request" or "read"
	Err error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("stream %s: %v", e.Op, e.Err)
}

func (e *StreamReadError) Unwrap() error {
	return e.Err
}

// UserMessage maps any relay error to end-user text
func UserMessage(err error) string {
	var httpErr *UpstreamHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.UserMessage()
	}
	if errors.Is(err, ErrStalled) {
		return "上游响应超时，请重试"
	}
	var readErr *StreamReadError
	if errors.As(err, &readErr) {
		if readErr.Op == "request" {
			return "无法连接到模型服务，请检查 Base URL 或网络"
		}
		return "读取模型响应失败，请重试"
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func newUpstreamHTTPError(resp *http.Response) *UpstreamHTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	raw := strings.TrimSpace(string(body))

	msg := extractErrorMessage(body)
	if msg == "" {
		msg = raw
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &UpstreamHTTPError{StatusCode: resp.StatusCode, Body: raw, Message: msg}
}

// extractErrorMessage understands {"error":{"message":..}}, {"error":".."} and {"message":".."}
func extractErrorMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if len(payload.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if err := json.Unmarshal(payload.Error, &flat); err == nil && flat != "" {
			return flat
		}
	}
	return payload.Message
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
