package domain

import (
	"errors"
	"fmt"
)

// 错误分类
// Validation / Resolution / Classification 会中止当前样本；
// Delivery / Notification 只记录日志，不向调用方传播
var (
	ErrValidation     = errors.New("validation error")
	ErrResolution     = errors.New("resolution failure")
	ErrClassification = errors.New("classification failure")
	ErrDelivery       = errors.New("delivery failure")
	ErrNotification   = errors.New("notification failure")
)

// ValidationError 上报数据缺失或格式错误
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Field)
}

// Is 使 errors.Is(err, ErrValidation) 成立
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewMissingFieldError 缺少必填字段
func NewMissingFieldError(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "Missing key"}
}

// NewInvalidFieldError 字段值无法解析
func NewInvalidFieldError(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "Invalid value for key"}
}
