package repository

import (
	"context"

	"github.com/Freeeeeet/appointment_service/internal/model"
	"github.com/Freeeeeet/appointment_service/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type agendaMapper struct{}

func (agendaMapper) Table() string {
	return "agenda_slots"
}

func (agendaMapper) Columns() []string {
	return []string{"doctor_id", "slot_time", "is_available"}
}

func (agendaMapper) Values(slot *model.AgendaSlot) []any {
	return []any{slot.DoctorID, slot.SlotTime, slot.IsAvailable}
}

func (agendaMapper) Scan(row pgx.Row) (*model.AgendaSlot, error) {
	var slot model.AgendaSlot
	err := row.Scan(
		&slot.ID,
		&slot.DoctorID,
		&slot.SlotTime,
		&slot.IsAvailable,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

type AgendaRepository struct {
	*base.Repository[model.AgendaSlot]
}

func NewAgendaRepository(db base.DBTX) *AgendaRepository {
	return &AgendaRepository{Repository: base.NewRepository[model.AgendaSlot](db, agendaMapper{}, "agenda slot")}
}

// WithTx возвращает репозиторий, работающий внутри транзакции
func (r *AgendaRepository) WithTx(tx pgx.Tx) *AgendaRepository {
	return &AgendaRepository{Repository: r.WithDB(tx)}
}

// GetByDoctorID получает все слоты врача
func (r *AgendaRepository) GetByDoctorID(ctx context.Context, doctorID int64) ([]*model.AgendaSlot, error) {
	return r.FindBy(ctx, "doctor_id", doctorID)
}

// Delete удаляет слот, отсутствие слота не ошибка
func (r *AgendaRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.Repository.Delete(ctx, id)
	return err
}
