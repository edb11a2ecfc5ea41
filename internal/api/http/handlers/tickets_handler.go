package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	lifecycle *service.LifecycleService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.LifecycleService) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle}
}

// Create handles POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.TicketOpenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.lifecycle.Open(c.UserContext(), actor, service.TicketOpenInput{
		TypeID:      req.TypeID,
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{"ticket": dto.NewTicketResponse(ticket)},
	})
}

// List handles GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	tickets, err := h.lifecycle.ListVisible(c.UserContext(), actor, statuses, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{"tickets": dto.NewTicketList(tickets)},
	})
}

// Get handles GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	ticket, messages, err := h.lifecycle.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"ticket":   dto.NewTicketResponse(ticket),
			"messages": dto.NewMessageList(messages),
		},
	})
}

// Update handles PATCH /tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.TicketUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketUpdateInput{Title: req.Title, Description: req.Description}
	if req.Status != nil {
		status := domain.TicketStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		input.Status = &status
	}

	ticket, err := h.lifecycle.Update(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{"ticket": dto.NewTicketResponse(ticket)},
	})
}

// Assign handles POST /tickets/:id/assign. The acting helper claims the
// ticket; of two racing claims exactly one succeeds and the other receives
// a conflict.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	ticket, err := h.lifecycle.Assign(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{"ticket": dto.NewTicketResponse(ticket)},
	})
}

// Close handles POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	ticket, err := h.lifecycle.Close(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{"ticket": dto.NewTicketResponse(ticket)},
	})
}

// AddMessage handles POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.MessageCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	message, err := h.lifecycle.AddMessage(c.UserContext(), actor, c.Params("id"), req.Body, req.AttachmentPath)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{"message": dto.NewMessageResponse(message)},
	})
}

func parseStatuses(raw string) ([]domain.TicketStatus, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]domain.TicketStatus, 0, len(parts))
	for _, part := range parts {
		status := domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part)))
		if !domain.ValidStatus(status) {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": part})
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
