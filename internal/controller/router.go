package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RouterConfig зависимости роутера
type RouterConfig struct {
	Handler   *Handler
	JWTSecret string
	Metrics   http.Handler
	Logger    *zap.Logger
}

// NewRouter собирает chi роутер со всеми маршрутами
func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handler

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	doctor := RequireRole(RoleDoctor)
	patient := RequireRole(RolePatient)

	r.Route("/agenda", func(r chi.Router) {
		r.Use(JWTAuth(cfg.JWTSecret))

		r.With(doctor).Post("/", h.CreateSlot)
		r.Get("/", h.ListSlots)
		// один и тот же сегмент: doctorId для GET и agendaId для PUT
		r.With(doctor).Get("/doctor/{id}", h.ListDoctorSlots)
		r.With(doctor).Put("/doctor/{id}", h.UpdateSlot)
		r.With(doctor).Get("/{agendaId}", h.GetSlot)
		r.With(doctor).Delete("/{agendaId}", h.DeleteSlot)
	})

	r.Route("/appointment", func(r chi.Router) {
		r.Use(JWTAuth(cfg.JWTSecret))

		r.With(patient).Post("/", h.CreateAppointment)
		r.With(patient).Get("/", h.ListAppointments)
		r.With(doctor).Get("/doctor/{doctorId}", h.ListDoctorAppointments)
		r.With(patient).Get("/patient/{patientId}", h.ListPatientAppointments)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RolePatient, RoleDoctor))
			r.Get("/{appointmentId}", h.GetAppointment)
			r.Put("/{appointmentId}", h.UpdateAppointment)
		})
		r.With(patient).Delete("/{appointmentId}", h.CancelAppointment)
	})

	return r
}
