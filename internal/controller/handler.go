package controller

import (
	"fmt"
	"net/http"

	"github.com/Freeeeeet/appointment_service/internal/service"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handler HTTP обработчики слотов и приёмов
type Handler struct {
	agenda   *service.AgendaService
	booking  *service.BookingService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(agenda *service.AgendaService, booking *service.BookingService, logger *zap.Logger) *Handler {
	return &Handler{
		agenda:   agenda,
		booking:  booking,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Health проверка живости
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// currentUser ID и claims пользователя из токена
func currentUser(r *http.Request) (int64, *Claims, error) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return 0, nil, errNoClaims
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", service.ErrValidation, err)
	}
	return id, claims, nil
}
