package models

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError via errors.Is
var ErrValidation = errors.New("validation failed")

// ValidationReason classifies a rejected field
type ValidationReason string

const (
	ReasonMissing ValidationReason = "missing"
	ReasonUnknown ValidationReason = "unknown"
)

// ValidationError is returned before any upstream call is made
type ValidationError struct {
	Field  string
	Value  string
	Reason ValidationReason
}

func (e *ValidationError) Error() string {
	if e.Reason == ReasonMissing {
		return fmt.Sprintf("缺少必要参数: %s", e.Field)
	}
	switch e.Field {
	case "relationship":
		return fmt.Sprintf("无效的关系类型: %s", e.Value)
	case "style":
		return fmt.Sprintf("无效的风格: %s", e.Value)
	case "length":
		return fmt.Sprintf("无效的长度: %s", e.Value)
	default:
		return fmt.Sprintf("无效的参数 %s: %s", e.Field, e.Value)
	}
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
