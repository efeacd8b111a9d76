package handlers

import (
	"careportal/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const msgCheckUnavailable = "Unable to check availability right now"

// ValidationHandler serves the live form-validation endpoints.
type ValidationHandler struct {
	availability *services.AvailabilityChecker
	logger       *zap.Logger
}

// NewValidationHandler creates a new ValidationHandler.
func NewValidationHandler(availability *services.AvailabilityChecker, logger *zap.Logger) *ValidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidationHandler{
		availability: availability,
		logger:       logger.Named("validation_handler"),
	}
}

// RegisterRoutes registers the AJAX validation routes.
func (h *ValidationHandler) RegisterRoutes(router fiber.Router) {
	ajax := router.Group("/ajax")
	ajax.Post("/check-username", h.HandleCheckUsername)
	ajax.Post("/check-email", h.HandleCheckEmail)
	ajax.Post("/validate-password", h.HandleValidatePassword)
}

// AvailabilityResponse is the body returned by the availability checks.
type AvailabilityResponse struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
	Type      string `json:"type"`
}

// PasswordResponse is the body returned by the password check.
type PasswordResponse struct {
	Valid    bool     `json:"valid"`
	Message  string   `json:"message"`
	Strength string   `json:"strength"`
	Issues   []string `json:"issues"`
	Type     string   `json:"type"`
}

// HandleCheckUsername reports whether a username can still be registered.
func (h *ValidationHandler) HandleCheckUsername(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username" form:"username"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(AvailabilityResponse{Message: msgInvalidBody, Type: "error"})
	}

	result, err := h.availability.CheckUsername(c.UserContext(), body.Username)
	if err != nil {
		h.logger.Error("username availability check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(AvailabilityResponse{Message: msgCheckUnavailable, Type: "error"})
	}
	return c.JSON(availabilityResponse(result))
}

// HandleCheckEmail reports whether an email can still be registered.
func (h *ValidationHandler) HandleCheckEmail(c *fiber.Ctx) error {
	var body struct {
		Email string `json:"email" form:"email"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(AvailabilityResponse{Message: msgInvalidBody, Type: "error"})
	}

	result, err := h.availability.CheckEmail(c.UserContext(), body.Email)
	if err != nil {
		h.logger.Error("email availability check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(AvailabilityResponse{Message: msgCheckUnavailable, Type: "error"})
	}
	return c.JSON(availabilityResponse(result))
}

// HandleValidatePassword scores a candidate password.
func (h *ValidationHandler) HandleValidatePassword(c *fiber.Ctx) error {
	var body struct {
		Password string `json:"password" form:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(PasswordResponse{Message: msgInvalidBody, Issues: []string{}, Type: "error"})
	}

	score := services.ScorePassword(body.Password)
	resp := PasswordResponse{
		Valid:    score.Valid,
		Message:  score.Message,
		Strength: string(score.Strength),
		Issues:   score.Issues,
	}
	// Medium passwords are accepted, so they report success
	switch {
	case score.Empty:
		resp.Type = "error"
	case score.Valid && score.Strength != services.StrengthWeak:
		resp.Type = "success"
	default:
		resp.Type = "warning"
	}
	return c.JSON(resp)
}

func availabilityResponse(a services.Availability) AvailabilityResponse {
	resp := AvailabilityResponse{Available: a.Available, Message: a.Message, Type: "error"}
	if a.Available {
		resp.Type = "success"
	}
	return resp
}
