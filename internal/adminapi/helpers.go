// Package adminapi implements the dashboard-facing REST handlers.
package adminapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"gorm.io/gorm"

	"github.com/wadesk/wadesk/internal/app"
	"github.com/wadesk/wadesk/internal/gateway"
	"github.com/wadesk/wadesk/internal/instance"
	"github.com/wadesk/wadesk/internal/webserver"
)

// ok writes the standard success envelope.
func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"code": 0,
		"data": data,
	})
}

// fail writes the standard error envelope.
func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, map[string]interface{}{
		"code":    code,
		"message": message,
		"detail":  detail,
	})
}

// paged writes a paginated list envelope.
func paged(c echo.Context, items interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"code": 0,
		"data": map[string]interface{}{
			"items":     items,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// GetDB returns the request-scoped database handle.
func GetDB(c echo.Context) *gorm.DB {
	return c.Get(webserver.ContextKeyDB).(*gorm.DB)
}

// GetAppContext returns the request-scoped application context.
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(webserver.ContextKeyAppCtx).(app.AppContext)
}

func parsePagination(c echo.Context) (page, pageSize int) {
	page = cast.ToInt(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize = cast.ToInt(c.QueryParam("page_size"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	return page, pageSize
}

// failGateway maps the gateway error taxonomy onto HTTP statuses.
func failGateway(c echo.Context, err error) error {
	switch gateway.KindOf(err) {
	case gateway.KindNotConfigured:
		return fail(c, http.StatusServiceUnavailable, "GATEWAY_NOT_CONFIGURED", "Gateway is not configured", nil)
	case gateway.KindTimeout:
		return fail(c, http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "Gateway did not respond in time", err.Error())
	case gateway.KindNotFound:
		return fail(c, http.StatusNotFound, "GATEWAY_NOT_FOUND", "Gateway has no such instance", err.Error())
	case gateway.KindNetwork, gateway.KindHTTP, gateway.KindCorrupt:
		return fail(c, http.StatusBadGateway, "GATEWAY_ERROR", "Gateway request failed", err.Error())
	}
	if errors.Is(err, instance.ErrNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Instance not found", nil)
	}
	return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Operation failed", err.Error())
}
