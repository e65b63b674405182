package controller

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/appointment_service/internal/model"
	"github.com/Freeeeeet/appointment_service/internal/service"
)

type createAppointmentRequest struct {
	DoctorID  int64      `json:"doctorId" validate:"required,gt=0"`
	PatientID int64      `json:"patientId" validate:"required,gt=0"`
	StartDate *time.Time `json:"startDate" validate:"required"`
}

type updateAppointmentRequest struct {
	DoctorID  *int64     `json:"doctorId" validate:"omitempty,gt=0"`
	PatientID *int64     `json:"patientId" validate:"omitempty,gt=0"`
	StartDate *time.Time `json:"startDate"`
	Status    *string    `json:"status" validate:"omitempty,oneof=scheduled cancelled"`
}

// CreateAppointment POST /appointment, имя пациента берётся из токена
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	_, claims, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req createAppointmentRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	appointment, err := h.booking.CreateBooking(r.Context(), service.BookingRequest{
		DoctorID:    req.DoctorID,
		PatientID:   req.PatientID,
		StartDate:   *req.StartDate,
		PatientName: claims.Name,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, appointment)
}

// ListAppointments GET /appointment
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	appointments, err := h.booking.ListAppointments(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(appointments))
}

// ListDoctorAppointments GET /appointment/doctor/{doctorId}
func (h *Handler) ListDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	doctorID, err := pathID(r, "doctorId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	appointments, err := h.booking.ListByDoctor(r.Context(), doctorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(appointments))
}

// ListPatientAppointments GET /appointment/patient/{patientId}
func (h *Handler) ListPatientAppointments(w http.ResponseWriter, r *http.Request) {
	patientID, err := pathID(r, "patientId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	appointments, err := h.booking.ListByPatient(r.Context(), patientID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(appointments))
}

// GetAppointment GET /appointment/{appointmentId}
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := pathID(r, "appointmentId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	appointment, err := h.booking.GetAppointment(r.Context(), appointmentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointment)
}

// UpdateAppointment PUT /appointment/{appointmentId}
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := pathID(r, "appointmentId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req updateAppointmentRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	patch := model.AppointmentPatch{
		StartDate: req.StartDate,
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
	}
	if req.Status != nil {
		status := model.AppointmentStatus(*req.Status)
		patch.Status = &status
	}

	appointment, err := h.booking.UpdateAppointment(r.Context(), appointmentID, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointment)
}

// CancelAppointment DELETE /appointment/{appointmentId} отменяет приём, запись не удаляется
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := pathID(r, "appointmentId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.booking.CancelBooking(r.Context(), appointmentID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
