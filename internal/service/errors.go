package service

import "errors"

// Ошибки сервисов, проверяются через errors.Is
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrBusy       = errors.New("resource busy, retry later")
	ErrValidation = errors.New("validation failed")
)
