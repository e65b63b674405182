package model

import "time"

// AppointmentDuration фиксированная длительность приёма
const AppointmentDuration = time.Hour

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

type Appointment struct {
	ID        int64             `json:"id"`
	DoctorID  int64             `json:"doctorId"`
	PatientID int64             `json:"patientId"`
	StartDate time.Time         `json:"startDate"`
	EndDate   time.Time         `json:"endDate"`
	Status    AppointmentStatus `json:"status"`
	SlotID    *int64            `json:"slotId,omitempty"` // nil у записей, созданных до появления связи со слотом
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// IsScheduled проверяет что приём активен
func (a *Appointment) IsScheduled() bool {
	return a.Status == AppointmentStatusScheduled
}

// Reschedule переносит начало приёма и пересчитывает окончание
func (a *Appointment) Reschedule(start time.Time) {
	a.StartDate = start
	a.EndDate = start.Add(AppointmentDuration)
}

// AppointmentPatch частичное обновление приёма
type AppointmentPatch struct {
	StartDate *time.Time
	DoctorID  *int64
	PatientID *int64
	Status    *AppointmentStatus
}

// MovesTime проверяет меняет ли патч время или врача приёма
func (p AppointmentPatch) MovesTime(a *Appointment) bool {
	if p.StartDate != nil && !p.StartDate.Equal(a.StartDate) {
		return true
	}
	return p.DoctorID != nil && *p.DoctorID != a.DoctorID
}

// Apply применяет патч к приёму
func (p AppointmentPatch) Apply(a *Appointment) {
	if p.StartDate != nil {
		a.Reschedule(*p.StartDate)
	}
	if p.DoctorID != nil {
		a.DoctorID = *p.DoctorID
	}
	if p.PatientID != nil {
		a.PatientID = *p.PatientID
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
}
