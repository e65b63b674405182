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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var bookingTracer = otel.Tracer("appointment_service.internal.service")

// BookingRequest запрос пациента на приём
type BookingRequest struct {
	DoctorID    int64
	PatientID   int64
	StartDate   time.Time
	PatientName string
}

// BookingService бронирует слоты врачей и отменяет приёмы
type BookingService struct {
	store    repository.Store
	agenda   *AgendaService
	locker   lock.Locker
	buckets  model.BucketPolicy
	notifier *BookingNotifier
	metrics  *metrics.BookingMetrics
	logger   *zap.Logger
}

func NewBookingService(
	store repository.Store,
	agenda *AgendaService,
	locker lock.Locker,
	buckets model.BucketPolicy,
	notifier *BookingNotifier,
	metrics *metrics.BookingMetrics,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		store:    store,
		agenda:   agenda,
		locker:   locker,
		buckets:  buckets,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// CreateBooking проверяет доступность и конфликты, затем в одной транзакции
// занимает слот и создаёт приём. Уведомление уходит после коммита.
func (s *BookingService) CreateBooking(ctx context.Context, req BookingRequest) (*model.Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.create", trace.WithAttributes(
		attribute.Int64("booking.doctor_id", req.DoctorID),
		attribute.Int64("booking.patient_id", req.PatientID),
	))
	defer span.End()

	bucket := s.buckets.Of(req.StartDate)

	release, err := acquireKeys(ctx, s.locker, s.metrics, "create_booking", lockKey(req.DoctorID, bucket))
	if err != nil {
		s.fail(span, "create_booking", err)
		return nil, err
	}

	var created *model.Appointment
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		slot, err := s.reserve(ctx, tx, req.DoctorID, req.StartDate, 0)
		if err != nil {
			return err
		}

		appointment := &model.Appointment{
			DoctorID:  req.DoctorID,
			PatientID: req.PatientID,
			Status:    model.AppointmentStatusScheduled,
			SlotID:    &slot.ID,
		}
		appointment.Reschedule(req.StartDate)

		created, err = tx.Appointments().Create(ctx, appointment)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	release()

	if err != nil {
		s.fail(span, "create_booking", err)
		return nil, err
	}

	s.metrics.ObserveBooking("booked")
	s.logger.Info("Appointment booked",
		zap.Int64("appointment_id", created.ID),
		zap.Int64("doctor_id", created.DoctorID),
		zap.Int64("patient_id", created.PatientID),
		zap.Int64("slot_id", *created.SlotID),
		zap.Time("start_date", created.StartDate),
	)

	s.notifier.BookingCreated(*created, req.PatientName)

	return created, nil
}

// reserve проверяет что в ячейке есть свободный слот и нет активного приёма, и занимает слот
func (s *BookingService) reserve(ctx context.Context, tx repository.Store, doctorID int64, at time.Time, exceptAppointmentID int64) (*model.AgendaSlot, error) {
	bucket := s.buckets.Of(at)

	available, err := s.agenda.findAvailable(ctx, tx, doctorID, at)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: doctor %d has no availability at %s", ErrNotFound, doctorID, bucket)
	}

	appointments, err := tx.Appointments().GetByDoctorID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("get doctor appointments: %w", err)
	}
	if len(scheduledInBucket(s.buckets, appointments, at, exceptAppointmentID)) > 0 {
		return nil, fmt.Errorf("%w: doctor %d already has an appointment at %s", ErrConflict, doctorID, bucket)
	}

	slot, err := s.agenda.book(ctx, tx, doctorID, at)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: doctor %d has no availability at %s", ErrNotFound, doctorID, bucket)
	}
	return slot, nil
}

// bookedSlot ищет слот, занятый приёмом: по SlotID, а для старых записей по ячейке
func (s *BookingService) bookedSlot(ctx context.Context, tx repository.Store, appointment *model.Appointment) (*model.AgendaSlot, error) {
	if appointment.SlotID != nil {
		slot, err := tx.Agendas().GetByID(ctx, *appointment.SlotID)
		if err != nil {
			return nil, fmt.Errorf("get slot: %w", err)
		}
		if slot == nil || slot.IsAvailable || slot.DoctorID != appointment.DoctorID {
			return nil, nil
		}
		return slot, nil
	}

	slots, err := tx.Agendas().GetByDoctorID(ctx, appointment.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("get doctor slots: %w", err)
	}
	for _, slot := range slotsInBucket(s.buckets, slots, appointment.StartDate) {
		if !slot.IsAvailable {
			return slot, nil
		}
	}
	return nil, nil
}

// CancelBooking отменяет приём и освобождает слот. Если занятый слот не найден,
// приём остаётся как есть.
func (s *BookingService) CancelBooking(ctx context.Context, appointmentID int64) error {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel", trace.WithAttributes(
		attribute.Int64("booking.appointment_id", appointmentID),
	))
	defer span.End()

	for attempt := 0; attempt < relockAttempts; attempt++ {
		seen, err := s.GetAppointment(ctx, appointmentID)
		if err != nil {
			s.failCancel(span, err)
			return err
		}

		release, err := acquireKeys(ctx, s.locker, s.metrics, "cancel_booking", s.keyOf(seen))
		if err != nil {
			s.failCancel(span, err)
			return err
		}
		cancelled, err := s.cancel(ctx, seen)
		release()

		if errors.Is(err, errMoved) {
			continue
		}
		if err != nil {
			s.failCancel(span, err)
			return err
		}

		if !cancelled {
			s.metrics.ObserveCancellation("noop")
			s.logger.Warn("Cancellation skipped, no booked slot found",
				zap.Int64("appointment_id", appointmentID),
				zap.Int64("doctor_id", seen.DoctorID),
				zap.String("status", string(seen.Status)))
			return nil
		}

		s.metrics.ObserveCancellation("cancelled")
		s.logger.Info("Appointment cancelled",
			zap.Int64("appointment_id", appointmentID),
			zap.Int64("doctor_id", seen.DoctorID))
		return nil
	}

	err := fmt.Errorf("%w: appointment %d keeps moving", ErrBusy, appointmentID)
	s.failCancel(span, err)
	return err
}

func (s *BookingService) cancel(ctx context.Context, seen *model.Appointment) (bool, error) {
	cancelled := false
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		current, err := s.reread(ctx, tx, seen)
		if err != nil {
			return err
		}
		if !current.IsScheduled() {
			return nil
		}

		slot, err := s.bookedSlot(ctx, tx, current)
		if err != nil {
			return err
		}
		if slot == nil {
			return nil
		}

		current.Status = model.AppointmentStatusCancelled
		if _, err := tx.Appointments().Update(ctx, current.ID, current); err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		if _, err := s.agenda.release(ctx, tx, slot.ID); err != nil {
			return err
		}

		cancelled = true
		return nil
	})
	return cancelled, err
}

// UpdateAppointment частично обновляет приём. Перенос активного приёма на другое
// время или к другому врачу проходит те же проверки, что и новое бронирование.
// Блокируется всегда текущая ячейка приёма, а при переносе ещё и новая.
func (s *BookingService) UpdateAppointment(ctx context.Context, appointmentID int64, patch model.AppointmentPatch) (*model.Appointment, error) {
	for attempt := 0; attempt < relockAttempts; attempt++ {
		seen, err := s.GetAppointment(ctx, appointmentID)
		if err != nil {
			return nil, err
		}

		target := *seen
		patch.Apply(&target)

		release, err := acquireKeys(ctx, s.locker, s.metrics, "update_appointment", s.keyOf(seen), s.keyOf(&target))
		if err != nil {
			return nil, err
		}
		updated, rescheduled, err := s.updateAppointment(ctx, seen, patch)
		release()

		if errors.Is(err, errMoved) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("Appointment updated",
			zap.Int64("appointment_id", appointmentID),
			zap.Int64("doctor_id", updated.DoctorID),
			zap.Time("start_date", updated.StartDate),
			zap.String("status", string(updated.Status)),
			zap.Bool("rescheduled", rescheduled))

		return updated, nil
	}
	return nil, fmt.Errorf("%w: appointment %d keeps moving", ErrBusy, appointmentID)
}

func (s *BookingService) updateAppointment(ctx context.Context, seen *model.Appointment, patch model.AppointmentPatch) (*model.Appointment, bool, error) {
	var (
		updated     *model.Appointment
		rescheduled bool
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		current, err := s.reread(ctx, tx, seen)
		if err != nil {
			return err
		}

		next := *current
		patch.Apply(&next)

		moving := patch.MovesTime(current)
		releaseOld := current.IsScheduled() && (moving || !next.IsScheduled())
		reserveNew := next.IsScheduled() && (moving || !current.IsScheduled())

		if releaseOld {
			slot, err := s.bookedSlot(ctx, tx, current)
			if err != nil {
				return err
			}
			if slot != nil {
				if _, err := s.agenda.release(ctx, tx, slot.ID); err != nil {
					return err
				}
			}
			next.SlotID = nil
		}

		if reserveNew {
			slot, err := s.reserve(ctx, tx, next.DoctorID, next.StartDate, current.ID)
			if err != nil {
				return err
			}
			next.SlotID = &slot.ID
		}

		updated, err = tx.Appointments().Update(ctx, current.ID, &next)
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		if updated == nil {
			return fmt.Errorf("%w: appointment %d", ErrNotFound, current.ID)
		}
		rescheduled = reserveNew
		return nil
	})
	return updated, rescheduled, err
}

// reread перечитывает приём под блокировкой ячейки, в которой он был при первом чтении
func (s *BookingService) reread(ctx context.Context, tx repository.Store, seen *model.Appointment) (*model.Appointment, error) {
	current, err := tx.Appointments().GetByID(ctx, seen.ID)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("%w: appointment %d", ErrNotFound, seen.ID)
	}
	if s.keyOf(current) != s.keyOf(seen) {
		return nil, errMoved
	}
	return current, nil
}

func (s *BookingService) keyOf(appointment *model.Appointment) string {
	return lockKey(appointment.DoctorID, s.buckets.Of(appointment.StartDate))
}

// ListAppointments получает все приёмы
func (s *BookingService) ListAppointments(ctx context.Context) ([]*model.Appointment, error) {
	appointments, err := s.store.Appointments().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("get appointments: %w", err)
	}
	return appointments, nil
}

// GetAppointment получает приём по ID
func (s *BookingService) GetAppointment(ctx context.Context, appointmentID int64) (*model.Appointment, error) {
	appointment, err := s.store.Appointments().GetByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if appointment == nil {
		return nil, fmt.Errorf("%w: appointment %d", ErrNotFound, appointmentID)
	}
	return appointment, nil
}

// ListByDoctor получает приёмы врача
func (s *BookingService) ListByDoctor(ctx context.Context, doctorID int64) ([]*model.Appointment, error) {
	appointments, err := s.store.Appointments().GetByDoctorID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("get doctor appointments: %w", err)
	}
	return appointments, nil
}

// ListByPatient получает приёмы пациента
func (s *BookingService) ListByPatient(ctx context.Context, patientID int64) ([]*model.Appointment, error) {
	appointments, err := s.store.Appointments().GetByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("get patient appointments: %w", err)
	}
	return appointments, nil
}

func (s *BookingService) fail(span trace.Span, operation string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	outcome := outcomeOf(err)
	s.metrics.ObserveBooking(outcome)
	s.logger.Warn("Booking rejected",
		zap.String("operation", operation),
		zap.String("outcome", outcome),
		zap.Error(err))
}

func (s *BookingService) failCancel(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	outcome := outcomeOf(err)
	s.metrics.ObserveCancellation(outcome)
	s.logger.Warn("Cancellation failed", zap.String("outcome", outcome), zap.Error(err))
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "error"
	}
}
