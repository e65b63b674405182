package repository

import (
	"context"

	"github.com/Freeeeeet/appointment_service/internal/model"
	"github.com/Freeeeeet/appointment_service/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type appointmentMapper struct{}

func (appointmentMapper) Table() string {
	return "appointments"
}

func (appointmentMapper) Columns() []string {
	return []string{"doctor_id", "patient_id", "start_date", "end_date", "status", "slot_id"}
}

func (appointmentMapper) Values(a *model.Appointment) []any {
	return []any{a.DoctorID, a.PatientID, a.StartDate, a.EndDate, string(a.Status), a.SlotID}
}

func (appointmentMapper) Scan(row pgx.Row) (*model.Appointment, error) {
	var (
		a      model.Appointment
		status string
	)
	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.StartDate,
		&a.EndDate,
		&status,
		&a.SlotID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = model.AppointmentStatus(status)
	return &a, nil
}

type AppointmentRepository struct {
	*base.Repository[model.Appointment]
}

func NewAppointmentRepository(db base.DBTX) *AppointmentRepository {
	return &AppointmentRepository{Repository: base.NewRepository[model.Appointment](db, appointmentMapper{}, "appointment")}
}

// WithTx возвращает репозиторий, работающий внутри транзакции
func (r *AppointmentRepository) WithTx(tx pgx.Tx) *AppointmentRepository {
	return &AppointmentRepository{Repository: r.WithDB(tx)}
}

// GetByDoctorID получает все приёмы врача
func (r *AppointmentRepository) GetByDoctorID(ctx context.Context, doctorID int64) ([]*model.Appointment, error) {
	return r.FindBy(ctx, "doctor_id", doctorID)
}

// GetByPatientID получает все приёмы пациента
func (r *AppointmentRepository) GetByPatientID(ctx context.Context, patientID int64) ([]*model.Appointment, error) {
	return r.FindBy(ctx, "patient_id", patientID)
}

// Delete удаляет приём, отсутствие записи не ошибка
func (r *AppointmentRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.Repository.Delete(ctx, id)
	return err
}
