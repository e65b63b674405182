// Package lock сериализует операции бронирования по ключу (врач, ячейка).
package lock

import (
	"context"
	"errors"
)

// ErrTimeout ожидание блокировки превысило лимит
var ErrTimeout = errors.New("lock wait timeout")

// Locker выдаёт взаимоисключающую блокировку по ключу.
// release нужно вызвать ровно один раз, повторные вызовы игнорируются.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
