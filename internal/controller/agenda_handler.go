package controller

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/appointment_service/internal/model"
)

type createSlotRequest struct {
	Date        *time.Time `json:"date" validate:"required"`
	IsAvailable *bool      `json:"isAvailable" validate:"required"`
}

type updateSlotRequest struct {
	Date        *time.Time `json:"date"`
	IsAvailable *bool      `json:"isAvailable"`
}

// CreateSlot POST /agenda, врач берётся из токена
func (h *Handler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	doctorID, _, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req createSlotRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	slot, err := h.agenda.CreateSlot(r.Context(), doctorID, *req.Date, *req.IsAvailable)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, slot)
}

// ListSlots GET /agenda
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.agenda.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(slots))
}

// ListDoctorSlots GET /agenda/doctor/{doctorId}
func (h *Handler) ListDoctorSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	slots, err := h.agenda.ListByDoctor(r.Context(), doctorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(slots))
}

// GetSlot GET /agenda/{agendaId}
func (h *Handler) GetSlot(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r, "agendaId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	slot, err := h.agenda.GetSlot(r.Context(), slotID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// UpdateSlot PUT /agenda/doctor/{agendaId}
func (h *Handler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req updateSlotRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	slot, err := h.agenda.UpdateSlot(r.Context(), slotID, model.SlotPatch{
		SlotTime:    req.Date,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// DeleteSlot DELETE /agenda/{agendaId}
func (h *Handler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r, "agendaId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.agenda.DeleteSlot(r.Context(), slotID); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// nonNil чтобы пустой список сериализовался как [] а не null
func nonNil[T any](items []*T) []*T {
	if items == nil {
		return []*T{}
	}
	return items
}
