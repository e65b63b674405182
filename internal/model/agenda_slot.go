package model

import "time"

// AgendaSlot час приёма, объявленный врачом
type AgendaSlot struct {
	ID          int64     `json:"id"`
	DoctorID    int64     `json:"doctorId"`
	SlotTime    time.Time `json:"date"`
	IsAvailable bool      `json:"isAvailable"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SlotPatch частичное обновление слота, nil поля не трогаются
type SlotPatch struct {
	SlotTime    *time.Time
	IsAvailable *bool
}

// Apply применяет патч к слоту
func (p SlotPatch) Apply(slot *AgendaSlot) {
	if p.SlotTime != nil {
		slot.SlotTime = *p.SlotTime
	}
	if p.IsAvailable != nil {
		slot.IsAvailable = *p.IsAvailable
	}
}
