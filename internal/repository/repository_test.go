package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/appointment_service/internal/model"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	slotColumns        = []string{"id", "doctor_id", "slot_time", "is_available", "created_at", "updated_at"}
	appointmentColumns = []string{"id", "doctor_id", "patient_id", "start_date", "end_date", "status", "slot_id", "created_at", "updated_at"}
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestAgendaRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewAgendaRepository(mock)

	at := time.Date(2024, 11, 24, 15, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO agenda_slots \(doctor_id, slot_time, is_available\) VALUES \(\$1, \$2, \$3\) RETURNING id`).
		WithArgs(int64(7), at, true).
		WillReturnRows(pgxmock.NewRows(slotColumns).AddRow(int64(1), int64(7), at, true, now, now))

	slot, err := repo.Create(context.Background(), &model.AgendaSlot{DoctorID: 7, SlotTime: at, IsAvailable: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), slot.ID)
	assert.Equal(t, int64(7), slot.DoctorID)
	assert.True(t, slot.IsAvailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAgendaRepository_GetByIDNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewAgendaRepository(mock)

	mock.ExpectQuery(`SELECT id, doctor_id, slot_time, is_available, created_at, updated_at FROM agenda_slots WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	slot, err := repo.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, slot)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAgendaRepository_GetByDoctorID(t *testing.T) {
	mock := newMock(t)
	repo := NewAgendaRepository(mock)

	at := time.Date(2024, 11, 24, 15, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`FROM agenda_slots WHERE doctor_id = \$1 ORDER BY id`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(slotColumns).
			AddRow(int64(1), int64(7), at, true, now, now).
			AddRow(int64(2), int64(7), at.Add(time.Hour), false, now, now))

	slots, err := repo.GetByDoctorID(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, int64(1), slots[0].ID)
	assert.False(t, slots[1].IsAvailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAgendaRepository_UpdateMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewAgendaRepository(mock)

	at := time.Date(2024, 11, 24, 15, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE agenda_slots SET doctor_id = \$1, slot_time = \$2, is_available = \$3, updated_at = now\(\) WHERE id = \$4`).
		WithArgs(int64(7), at, false, int64(9)).
		WillReturnError(pgx.ErrNoRows)

	slot, err := repo.Update(context.Background(), 9, &model.AgendaSlot{DoctorID: 7, SlotTime: at})
	require.NoError(t, err)
	assert.Nil(t, slot)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAgendaRepository_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewAgendaRepository(mock)

	mock.ExpectExec(`DELETE FROM agenda_slots WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_GetByPatientID(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)

	start := time.Date(2024, 11, 24, 15, 0, 0, 0, time.UTC)
	now := time.Now()
	slotID := int64(5)

	mock.ExpectQuery(`FROM appointments WHERE patient_id = \$1 ORDER BY id`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(appointmentColumns).
			AddRow(int64(1), int64(7), int64(3), start, start.Add(time.Hour), "scheduled", &slotID, now, now))

	appointments, err := repo.GetByPatientID(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Equal(t, model.AppointmentStatusScheduled, appointments[0].Status)
	require.NotNil(t, appointments[0].SlotID)
	assert.Equal(t, int64(5), *appointments[0].SlotID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTxCommits(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)

	start := time.Date(2024, 11, 24, 15, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(int64(7), int64(3), start, start.Add(time.Hour), "scheduled", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(appointmentColumns).
			AddRow(int64(1), int64(7), int64(3), start, start.Add(time.Hour), "scheduled", (*int64)(nil), now, now))
	mock.ExpectQuery(`UPDATE agenda_slots`).
		WithArgs(int64(7), start, false, int64(5)).
		WillReturnRows(pgxmock.NewRows(slotColumns).AddRow(int64(5), int64(7), start, false, now, now))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx Store) error {
		appt := &model.Appointment{DoctorID: 7, PatientID: 3, Status: model.AppointmentStatusScheduled}
		appt.Reschedule(start)
		if _, err := tx.Appointments().Create(context.Background(), appt); err != nil {
			return err
		}
		_, err := tx.Agendas().Update(context.Background(), 5, &model.AgendaSlot{DoctorID: 7, SlotTime: start})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTxRollsBackOnError(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)

	start := time.Date(2024, 11, 24, 15, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO appointments`).
		WillReturnRows(pgxmock.NewRows(appointmentColumns).
			AddRow(int64(1), int64(7), int64(3), start, start.Add(time.Hour), "scheduled", (*int64)(nil), now, now))
	mock.ExpectQuery(`UPDATE agenda_slots`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx Store) error {
		appt := &model.Appointment{DoctorID: 7, PatientID: 3, Status: model.AppointmentStatusScheduled}
		appt.Reschedule(start)
		if _, err := tx.Appointments().Create(context.Background(), appt); err != nil {
			return err
		}
		_, err := tx.Agendas().Update(context.Background(), 5, &model.AgendaSlot{DoctorID: 7, SlotTime: start})
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}
