package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/appointment_service/internal/lock"
	"github.com/Freeeeeet/appointment_service/internal/metrics"
	"github.com/Freeeeeet/appointment_service/internal/model"
)

// relockAttempts сколько раз повторяем захват, если запись сменила ячейку до блокировки
const relockAttempts = 3

// errMoved запись переехала в другую ячейку между чтением и захватом блокировки
var errMoved = errors.New("moved to another bucket before lock")

// lockKey ключ блокировки для пары (врач, ячейка)
func lockKey(doctorID int64, bucket model.Bucket) string {
	return fmt.Sprintf("booking:%d:%s", doctorID, bucket)
}

// acquireKeys берёт блокировки по всем ключам в отсортированном порядке
func acquireKeys(ctx context.Context, locker lock.Locker, m *metrics.BookingMetrics, operation string, keys ...string) (func(), error) {
	unique := make(map[string]struct{}, len(keys))
	sorted := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := unique[key]; ok {
			continue
		}
		unique[key] = struct{}{}
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	started := time.Now()
	releases := make([]func(), 0, len(sorted))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, key := range sorted {
		release, err := locker.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			if errors.Is(err, lock.ErrTimeout) {
				return nil, fmt.Errorf("%w: %s", ErrBusy, key)
			}
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		releases = append(releases, release)
	}
	m.ObserveLockWait(operation, time.Since(started))

	return releaseAll, nil
}

// slotsInBucket слоты из той же ячейки, что и at
func slotsInBucket(policy model.BucketPolicy, slots []*model.AgendaSlot, at time.Time) []*model.AgendaSlot {
	var matched []*model.AgendaSlot
	for _, slot := range slots {
		if policy.Same(slot.SlotTime, at) {
			matched = append(matched, slot)
		}
	}
	return matched
}

// scheduledInBucket активные приёмы из той же ячейки, кроме exceptID
func scheduledInBucket(policy model.BucketPolicy, appointments []*model.Appointment, at time.Time, exceptID int64) []*model.Appointment {
	var matched []*model.Appointment
	for _, a := range appointments {
		if a.ID == exceptID || !a.IsScheduled() {
			continue
		}
		if policy.Same(a.StartDate, at) {
			matched = append(matched, a)
		}
	}
	return matched
}
