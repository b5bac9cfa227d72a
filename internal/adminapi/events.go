package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wadesk/wadesk/internal/instance"
	"github.com/wadesk/wadesk/internal/webserver"
)

func registerEventRoutes() {
	// Registered outside /api: the gateway posts delivery events here.
	webserver.PubPOST("/webhook/:instance", postGatewayEvent)
}

// postGatewayEvent receives push notifications from the gateway and hands
// them to the reconciler. Always answers 200 so the gateway never retries
// against us; a bad payload is our problem, not the gateway's.
func postGatewayEvent(c echo.Context) error {
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		zap.L().Warn("adminapi: unreadable gateway event", zap.Error(err))
		return c.NoContent(http.StatusOK)
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if _, ok := payload["instance"]; !ok {
		payload["instance"] = c.Param("instance")
	}

	ev, err := instance.DecodePushEvent(payload)
	if err != nil {
		zap.L().Warn("adminapi: undecodable gateway event",
			zap.String("instance", c.Param("instance")),
			zap.Error(err))
		return c.NoContent(http.StatusOK)
	}

	GetAppContext(c).Reconciler().Ingest(ev)
	return c.NoContent(http.StatusOK)
}
