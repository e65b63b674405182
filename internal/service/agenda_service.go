package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/appointment_service/internal/lock"
	"github.com/Freeeeeet/appointment_service/internal/metrics"
	"github.com/Freeeeeet/appointment_service/internal/model"
	"github.com/Freeeeeet/appointment_service/internal/repository"
	"go.uber.org/zap"
)

// AgendaService управляет слотами врачей и их доступностью
type AgendaService struct {
	store   repository.Store
	locker  lock.Locker
	buckets model.BucketPolicy
	metrics *metrics.BookingMetrics
	logger  *zap.Logger
}

func NewAgendaService(
	store repository.Store,
	locker lock.Locker,
	buckets model.BucketPolicy,
	metrics *metrics.BookingMetrics,
	logger *zap.Logger,
) *AgendaService {
	return &AgendaService{
		store:   store,
		locker:  locker,
		buckets: buckets,
		metrics: metrics,
		logger:  logger,
	}
}

// CreateSlot создаёт слот, если у врача ещё нет слота в этой ячейке (доступность не важна)
func (s *AgendaService) CreateSlot(ctx context.Context, doctorID int64, slotTime time.Time, isAvailable bool) (*model.AgendaSlot, error) {
	bucket := s.buckets.Of(slotTime)

	release, err := acquireKeys(ctx, s.locker, s.metrics, "create_slot", lockKey(doctorID, bucket))
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.store.Agendas().GetByDoctorID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("get doctor slots: %w", err)
	}

	if len(slotsInBucket(s.buckets, existing, slotTime)) > 0 {
		return nil, fmt.Errorf("%w: doctor %d already has a slot at %s", ErrConflict, doctorID, bucket)
	}

	slot, err := s.store.Agendas().Create(ctx, &model.AgendaSlot{
		DoctorID:    doctorID,
		SlotTime:    slotTime,
		IsAvailable: isAvailable,
	})
	if err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.logger.Info("Slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("doctor_id", doctorID),
		zap.Time("slot_time", slotTime),
		zap.Bool("is_available", isAvailable))

	return slot, nil
}

// ListAll получает все слоты
func (s *AgendaService) ListAll(ctx context.Context) ([]*model.AgendaSlot, error) {
	slots, err := s.store.Agendas().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("get slots: %w", err)
	}
	return slots, nil
}

// ListByDoctor получает все слоты врача
func (s *AgendaService) ListByDoctor(ctx context.Context, doctorID int64) ([]*model.AgendaSlot, error) {
	slots, err := s.store.Agendas().GetByDoctorID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("get doctor slots: %w", err)
	}
	return slots, nil
}

// GetSlot получает слот по ID
func (s *AgendaService) GetSlot(ctx context.Context, slotID int64) (*model.AgendaSlot, error) {
	slot, err := s.store.Agendas().GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: slot %d", ErrNotFound, slotID)
	}
	return slot, nil
}

// FindAvailable свободные слоты врача в ячейке момента at
func (s *AgendaService) FindAvailable(ctx context.Context, doctorID int64, at time.Time) ([]*model.AgendaSlot, error) {
	return s.findAvailable(ctx, s.store, doctorID, at)
}

func (s *AgendaService) findAvailable(ctx context.Context, store repository.Store, doctorID int64, at time.Time) ([]*model.AgendaSlot, error) {
	slots, err := store.Agendas().GetByDoctorID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("get doctor slots: %w", err)
	}

	var available []*model.AgendaSlot
	for _, slot := range slotsInBucket(s.buckets, slots, at) {
		if slot.IsAvailable {
			available = append(available, slot)
		}
	}
	return available, nil
}

// Book занимает первый свободный слот в ячейке at.
// Если подходящего слота нет, возвращает nil без ошибки.
func (s *AgendaService) Book(ctx context.Context, doctorID int64, at time.Time) (*model.AgendaSlot, error) {
	release, err := acquireKeys(ctx, s.locker, s.metrics, "book_slot", lockKey(doctorID, s.buckets.Of(at)))
	if err != nil {
		return nil, err
	}
	defer release()

	return s.book(ctx, s.store, doctorID, at)
}

func (s *AgendaService) book(ctx context.Context, store repository.Store, doctorID int64, at time.Time) (*model.AgendaSlot, error) {
	available, err := s.findAvailable(ctx, store, doctorID, at)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, nil
	}

	slot := available[0]
	slot.IsAvailable = false

	updated, err := store.Agendas().Update(ctx, slot.ID, slot)
	if err != nil {
		return nil, fmt.Errorf("book slot: %w", err)
	}
	if updated == nil {
		return nil, nil
	}

	s.logger.Info("Slot booked",
		zap.Int64("slot_id", updated.ID),
		zap.Int64("doctor_id", doctorID))

	return updated, nil
}

// Release снова делает слот свободным
func (s *AgendaService) Release(ctx context.Context, slotID int64) (*model.AgendaSlot, error) {
	return s.release(ctx, s.store, slotID)
}

func (s *AgendaService) release(ctx context.Context, store repository.Store, slotID int64) (*model.AgendaSlot, error) {
	slot, err := store.Agendas().GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: slot %d", ErrNotFound, slotID)
	}

	slot.IsAvailable = true

	updated, err := store.Agendas().Update(ctx, slotID, slot)
	if err != nil {
		return nil, fmt.Errorf("release slot: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: slot %d", ErrNotFound, slotID)
	}

	s.logger.Info("Slot released",
		zap.Int64("slot_id", slotID),
		zap.Int64("doctor_id", slot.DoctorID))

	return updated, nil
}

// UpdateSlot частично обновляет слот. Перенос в занятую ячейку запрещён.
// Слот перечитывается под блокировкой текущей и новой ячейки.
func (s *AgendaService) UpdateSlot(ctx context.Context, slotID int64, patch model.SlotPatch) (*model.AgendaSlot, error) {
	for attempt := 0; attempt < relockAttempts; attempt++ {
		seen, err := s.GetSlot(ctx, slotID)
		if err != nil {
			return nil, err
		}

		keys := []string{lockKey(seen.DoctorID, s.buckets.Of(seen.SlotTime))}
		if patch.SlotTime != nil {
			keys = append(keys, lockKey(seen.DoctorID, s.buckets.Of(*patch.SlotTime)))
		}

		release, err := acquireKeys(ctx, s.locker, s.metrics, "update_slot", keys...)
		if err != nil {
			return nil, err
		}
		updated, err := s.updateSlot(ctx, seen, patch)
		release()

		if errors.Is(err, errMoved) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("Slot updated",
			zap.Int64("slot_id", slotID),
			zap.Time("slot_time", updated.SlotTime),
			zap.Bool("is_available", updated.IsAvailable))

		return updated, nil
	}
	return nil, fmt.Errorf("%w: slot %d keeps moving", ErrBusy, slotID)
}

func (s *AgendaService) updateSlot(ctx context.Context, seen *model.AgendaSlot, patch model.SlotPatch) (*model.AgendaSlot, error) {
	var updated *model.AgendaSlot
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		slot, err := tx.Agendas().GetByID(ctx, seen.ID)
		if err != nil {
			return fmt.Errorf("get slot: %w", err)
		}
		if slot == nil {
			return fmt.Errorf("%w: slot %d", ErrNotFound, seen.ID)
		}
		if slot.DoctorID != seen.DoctorID || !s.buckets.Same(slot.SlotTime, seen.SlotTime) {
			return errMoved
		}

		if patch.SlotTime != nil && !s.buckets.Same(*patch.SlotTime, slot.SlotTime) {
			existing, err := tx.Agendas().GetByDoctorID(ctx, slot.DoctorID)
			if err != nil {
				return fmt.Errorf("get doctor slots: %w", err)
			}
			for _, other := range slotsInBucket(s.buckets, existing, *patch.SlotTime) {
				if other.ID != slot.ID {
					return fmt.Errorf("%w: doctor %d already has a slot at %s", ErrConflict, slot.DoctorID, s.buckets.Of(*patch.SlotTime))
				}
			}
		}

		patch.Apply(slot)

		updated, err = tx.Agendas().Update(ctx, slot.ID, slot)
		if err != nil {
			return fmt.Errorf("update slot: %w", err)
		}
		if updated == nil {
			return fmt.Errorf("%w: slot %d", ErrNotFound, slot.ID)
		}
		return nil
	})
	return updated, err
}

// DeleteSlot удаляет слот без проверки связанных приёмов
func (s *AgendaService) DeleteSlot(ctx context.Context, slotID int64) error {
	if err := s.store.Agendas().Delete(ctx, slotID); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	s.logger.Info("Slot deleted", zap.Int64("slot_id", slotID))
	return nil
}
