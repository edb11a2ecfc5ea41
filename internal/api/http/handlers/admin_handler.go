package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/cache"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AdminHandler exposes fleet metrics and ticket type administration. All
// routes are admin-gated at the router.
type AdminHandler struct {
	metrics     *service.MetricsService
	slaMonitor  *service.SLAMonitor
	ticketTypes repository.TicketTypeRepository
	typeCache   *cache.TicketTypeCache
}

// NewAdminHandler constructs handler.
func NewAdminHandler(metrics *service.MetricsService, slaMonitor *service.SLAMonitor, ticketTypes repository.TicketTypeRepository, typeCache *cache.TicketTypeCache) *AdminHandler {
	return &AdminHandler{
		metrics:     metrics,
		slaMonitor:  slaMonitor,
		ticketTypes: ticketTypes,
		typeCache:   typeCache,
	}
}

// Metrics handles GET /admin/metrics. Serves the latest snapshot, computing
// one on demand when the periodic job has not produced any yet.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	snapshot, err := h.metrics.Latest(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"snapshot": snapshot}})
}

// RunSLAScan handles POST /admin/sla/run as a manual trigger of the
// periodic deadline scan.
func (h *AdminHandler) RunSLAScan(c *fiber.Ctx) error {
	if err := h.slaMonitor.RunOnce(c.UserContext()); err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"scanned": true}})
}

// ListTicketTypes handles GET /admin/ticket-types.
func (h *AdminHandler) ListTicketTypes(c *fiber.Ctx) error {
	types, err := h.ticketTypes.List(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ticket_types": dto.NewTicketTypeList(types)}})
}

// CreateTicketType handles POST /admin/ticket-types.
func (h *AdminHandler) CreateTicketType(c *fiber.Ctx) error {
	var req dto.TicketTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return apperrors.NewValidationError("name required", nil)
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	ticketType := &domain.TicketType{
		Name:   name,
		Active: active,
	}
	if req.PriorityLevel != nil {
		ticketType.PriorityLevel = *req.PriorityLevel
	}
	if req.SLAMinutes != nil {
		ticketType.SLAMinutes = *req.SLAMinutes
	}
	if err := h.ticketTypes.Create(c.UserContext(), ticketType); err != nil {
		return apperrors.MapError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{"ticket_type": dto.NewTicketTypeResponse(ticketType)},
	})
}

// UpdateTicketType handles PATCH /admin/ticket-types/:id. A successful
// write invalidates the cached entry so readers observe the change
// immediately rather than after TTL expiry.
func (h *AdminHandler) UpdateTicketType(c *fiber.Ctx) error {
	id := c.Params("id")
	existing, err := h.ticketTypes.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("ticket type", map[string]any{"type_id": id})
		}
		return apperrors.MapError(err)
	}

	var req dto.TicketTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		existing.Name = name
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}
	if req.PriorityLevel != nil {
		existing.PriorityLevel = *req.PriorityLevel
	}
	if req.SLAMinutes != nil {
		// 0 is a legal value: it resets the type to the default deadline
		// budget.
		existing.SLAMinutes = *req.SLAMinutes
	}

	if err := h.ticketTypes.Update(c.UserContext(), existing); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("ticket type", map[string]any{"type_id": id})
		}
		return apperrors.MapError(err)
	}
	if h.typeCache != nil {
		h.typeCache.Invalidate(c.UserContext(), id)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{"ticket_type": dto.NewTicketTypeResponse(existing)},
	})
}
