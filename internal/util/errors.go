package util

import (
	"errors"
	"fmt"
	"strings"
)

// 错误分类，controller 据此映射 HTTP 状态码
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
)

// AppError 携带分类与可供调用方修正输入的细节
type AppError struct {
	Kind    error
	Message string
	Fields  map[string]string
}

func (e *AppError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

func (e *AppError) Unwrap() error {
	return e.Kind
}

func NewValidationError(message string, fields map[string]string) *AppError {
	return &AppError{Kind: ErrValidation, Message: message, Fields: fields}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: ErrNotFound, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: ErrForbidden, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{Kind: ErrConflict, Message: message}
}

var (
	ErrExamNotFound     = NewNotFoundError("exam not found")
	ErrAttemptNotFound  = NewNotFoundError("attempt not found")
	ErrQuestionNotFound = NewNotFoundError("question not found")
	ErrMaterialNotFound = NewNotFoundError("material not found")
	ErrTopicNotFound    = NewNotFoundError("topic not found")
	ErrCourseNotFound   = NewNotFoundError("course not found")
	ErrMistakeNotFound  = NewNotFoundError("mistake entry not found")

	ErrPermissionDenied = NewForbiddenError("permission denied")
	ErrNotEnrolled      = NewForbiddenError("learner is not enrolled in this course")
	ErrExamInactive     = NewForbiddenError("exam is not active")
	ErrWindowClosed     = NewForbiddenError("exam is outside its availability window")

	ErrOpenExamExists    = NewConflictError("an open or pending self-created exam already exists")
	ErrPoolTooSmall      = NewConflictError("question pool too small for requested count")
	ErrMistakeBankEmpty  = NewConflictError("mistake bank has no unresolved questions")
	ErrAttemptSubmitted  = NewConflictError("attempt already submitted")
	ErrIncompletePath    = NewConflictError("question taxonomy path is incomplete")
	ErrQuestionNotInExam = NewConflictError("question does not belong to this attempt")
)

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
