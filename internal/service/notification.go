package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/appointment_service/internal/directory"
	"github.com/Freeeeeet/appointment_service/internal/model"
	"github.com/Freeeeeet/appointment_service/internal/notify"
	"go.uber.org/zap"
)

const bookingEmailSubject = "Agendamento de Consulta Realizado"

// DoctorDirectory источник контактов врача
type DoctorDirectory interface {
	GetDoctorByID(ctx context.Context, doctorID int64) (*directory.Doctor, error)
}

// TaskDispatcher фоновый исполнитель уведомлений
type TaskDispatcher interface {
	Dispatch(name string, task notify.Task) bool
}

// BookingNotifier сообщает врачу о новом приёме.
// Ошибки только логируются и никогда не влияют на бронирование.
type BookingNotifier struct {
	directory  DoctorDirectory
	sender     notify.Sender
	dispatcher TaskDispatcher
	location   *time.Location
	logger     *zap.Logger
}

func NewBookingNotifier(
	directory DoctorDirectory,
	sender notify.Sender,
	dispatcher TaskDispatcher,
	location *time.Location,
	logger *zap.Logger,
) *BookingNotifier {
	if location == nil {
		location = time.UTC
	}
	return &BookingNotifier{
		directory:  directory,
		sender:     sender,
		dispatcher: dispatcher,
		location:   location,
		logger:     logger,
	}
}

// BookingCreated ставит уведомление в очередь
func (n *BookingNotifier) BookingCreated(appointment model.Appointment, patientName string) {
	if n == nil {
		return
	}

	queued := n.dispatcher.Dispatch("booking_created", func(ctx context.Context) error {
		return n.send(ctx, appointment, patientName)
	})
	if !queued {
		n.logger.Warn("Booking notification skipped",
			zap.Int64("appointment_id", appointment.ID),
			zap.Int64("doctor_id", appointment.DoctorID))
	}
}

func (n *BookingNotifier) send(ctx context.Context, appointment model.Appointment, patientName string) error {
	doctor, err := n.directory.GetDoctorByID(ctx, appointment.DoctorID)
	if err != nil {
		return fmt.Errorf("get doctor contacts: %w", err)
	}

	msg := bookingMessage(doctor, patientName, appointment.StartDate.In(n.location))
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send booking notification: %w", err)
	}

	n.logger.Info("Booking notification sent",
		zap.Int64("appointment_id", appointment.ID),
		zap.Int64("doctor_id", appointment.DoctorID))
	return nil
}

func bookingMessage(doctor *directory.Doctor, patientName string, start time.Time) notify.Message {
	body := fmt.Sprintf("Olá, Dr. %s!\n\nVocê tem uma nova consulta marcada!\nPaciente: %s.\nData e horário: %s às %s horas.",
		doctor.Name,
		patientName,
		start.Format("02/01/2006"),
		start.Format("15:04"),
	)

	return notify.Message{
		To:      doctor.Email,
		ToName:  doctor.Name,
		Subject: bookingEmailSubject,
		Body:    body,
	}
}
