package handlers

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/delta-silence/ticket-intake/internal/api/dto"
	"github.com/delta-silence/ticket-intake/internal/domain"
	"github.com/delta-silence/ticket-intake/internal/service"
	apperrors "github.com/delta-silence/ticket-intake/pkg/util/errorutil"
)

// TicketCreator is the service operation behind the submission endpoint.
type TicketCreator interface {
	CreateTicket(ctx context.Context, input service.TicketCreateInput) (*domain.Ticket, error)
}

// TicketsHandler serves ticket submissions.
type TicketsHandler struct {
	service  TicketCreator
	validate *validator.Validate
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService TicketCreator) *TicketsHandler {
	return &TicketsHandler{service: ticketService, validate: validator.New()}
}

// CreateTicket POST /api/create-ticket. Registered for every method so other
// methods get a 405 from here.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return apperrors.NewMethodNotAllowed("Only POST allowed")
	}

	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Missing fields")
	}
	if err := h.validate.Struct(req); err != nil {
		return apperrors.NewValidationError("Missing fields")
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), service.TicketCreateInput{
		Topic:       req.Topic,
		Username:    req.Username,
		Subject:     req.Subject,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.CreateTicketResponse{Success: true, Key: ticket.Key})
}
