package http_test

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

func newTestApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	app.Get("/guarded", handler)
	return app
}

func TestErrorMiddlewareWritesDomainEnvelope(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error {
		return apperrors.NewForbidden("only the requester may close")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
	require.NoError(t, err)
	require.Equal(t, 403, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.Equal(t, apperrors.CodeForbidden, envelope.Error.Code)
	require.Equal(t, "only the requester may close", envelope.Error.Message)
}

func TestErrorMiddlewareAdvertisesRetryOnTransient(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error {
		return apperrors.NewTransient("store unavailable", nil)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
	require.NoError(t, err)
	require.Equal(t, 503, resp.StatusCode)
	require.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestErrorMiddlewareRecoversPanics(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error {
		panic("handler blew up")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
	require.NoError(t, err)
	require.Equal(t, 500, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), apperrors.CodeInternal)
}
