package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/appointment_service/internal/model"
	"github.com/Freeeeeet/appointment_service/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

// AgendaStore хранилище слотов
type AgendaStore interface {
	GetAll(ctx context.Context) ([]*model.AgendaSlot, error)
	GetByID(ctx context.Context, id int64) (*model.AgendaSlot, error)
	GetByDoctorID(ctx context.Context, doctorID int64) ([]*model.AgendaSlot, error)
	Create(ctx context.Context, slot *model.AgendaSlot) (*model.AgendaSlot, error)
	Update(ctx context.Context, id int64, slot *model.AgendaSlot) (*model.AgendaSlot, error)
	Delete(ctx context.Context, id int64) error
}

// AppointmentStore хранилище приёмов
type AppointmentStore interface {
	GetAll(ctx context.Context) ([]*model.Appointment, error)
	GetByID(ctx context.Context, id int64) (*model.Appointment, error)
	GetByDoctorID(ctx context.Context, doctorID int64) ([]*model.Appointment, error)
	GetByPatientID(ctx context.Context, patientID int64) ([]*model.Appointment, error)
	Create(ctx context.Context, appointment *model.Appointment) (*model.Appointment, error)
	Update(ctx context.Context, id int64, appointment *model.Appointment) (*model.Appointment, error)
	Delete(ctx context.Context, id int64) error
}

// Store объединяет хранилища и даёт транзакционную область.
// Внутри InTx нужно работать только через переданный tx.
type Store interface {
	Agendas() AgendaStore
	Appointments() AppointmentStore
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type txBeginner interface {
	base.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore реализация Store поверх pgx
type PostgresStore struct {
	db           txBeginner
	agendas      *AgendaRepository
	appointments *AppointmentRepository
}

// NewPostgresStore создаёт хранилище поверх пула (или pgxmock в тестах)
func NewPostgresStore(db txBeginner) *PostgresStore {
	return &PostgresStore{
		db:           db,
		agendas:      NewAgendaRepository(db),
		appointments: NewAppointmentRepository(db),
	}
}

func (s *PostgresStore) Agendas() AgendaStore {
	return s.agendas
}

func (s *PostgresStore) Appointments() AppointmentStore {
	return s.appointments
}

// InTx выполняет fn в транзакции, коммитит если fn вернула nil
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txStore := &PostgresStore{
		db:           tx,
		agendas:      s.agendas.WithTx(tx),
		appointments: s.appointments.WithTx(tx),
	}

	if err := fn(txStore); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
