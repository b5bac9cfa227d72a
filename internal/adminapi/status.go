package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wadesk/wadesk/internal/domain"
	"github.com/wadesk/wadesk/internal/webserver"
	"github.com/wadesk/wadesk/pkg/metrics"
)

var startedAt = time.Now()

func registerStatusRoutes() {
	webserver.ApiGET("/status", getStatus)
	webserver.ApiGET("/status/metrics/:name", getStatusMetric)
}

func getStatus(c echo.Context) error {
	db := GetDB(c)
	ctx := c.Request().Context()

	var total, open int64
	db.Model(&domain.Instance{}).Count(&total)
	db.Model(&domain.Instance{}).Where("status = ?", domain.StatusOpen).Count(&open)

	cfg, err := GetAppContext(c).InstanceRepo().ActiveConfig(ctx)
	configured := err == nil && cfg.Configured()

	return ok(c, map[string]interface{}{
		"uptime_seconds":     int64(time.Since(startedAt).Seconds()),
		"instances_total":    total,
		"instances_open":     open,
		"gateway_configured": configured,
	})
}

// getStatusMetric returns raw datapoints for one metric over the last hours
// (default 6) for dashboard charts.
func getStatusMetric(c echo.Context) error {
	name := c.Param("name")
	end := time.Now().Unix()
	start := end - 6*3600

	points, err := metrics.Select(name, start, end)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "QUERY_ERROR", "Failed to query metric", err.Error())
	}
	return ok(c, map[string]interface{}{"metric": name, "points": points})
}
