package handlers_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
)

func newTicketTypeApp(t *testing.T) (*fiber.App, *memory.TicketTypeRepository, *domain.TicketType) {
	t.Helper()

	types := memory.NewTicketTypeRepository()
	ticketType := &domain.TicketType{Name: "incident", Active: true, PriorityLevel: 2, SLAMinutes: 240}
	require.NoError(t, types.Create(context.Background(), ticketType))

	h := handlers.NewAdminHandler(nil, nil, types, nil)
	app := fiber.New()
	app.Patch("/admin/ticket-types/:id", h.UpdateTicketType)
	return app, types, ticketType
}

func TestUpdateTicketTypeAllowsExplicitZero(t *testing.T) {
	app, types, ticketType := newTicketTypeApp(t)

	req := httptest.NewRequest("PATCH", "/admin/ticket-types/"+ticketType.ID,
		strings.NewReader(`{"sla_minutes":0,"priority_level":0}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	stored, err := types.GetByID(context.Background(), ticketType.ID)
	require.NoError(t, err)
	// 0 sla_minutes means the default deadline budget applies downstream.
	require.Zero(t, stored.SLAMinutes)
	require.Zero(t, stored.PriorityLevel)
	require.Equal(t, "incident", stored.Name)
}

func TestUpdateTicketTypeLeavesOmittedFieldsAlone(t *testing.T) {
	app, types, ticketType := newTicketTypeApp(t)

	req := httptest.NewRequest("PATCH", "/admin/ticket-types/"+ticketType.ID,
		strings.NewReader(`{"active":false}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	stored, err := types.GetByID(context.Background(), ticketType.ID)
	require.NoError(t, err)
	require.False(t, stored.Active)
	require.Equal(t, 240, stored.SLAMinutes)
	require.Equal(t, 2, stored.PriorityLevel)
}
