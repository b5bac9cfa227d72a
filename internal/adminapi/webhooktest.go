package adminapi

import (
	"net/http"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"

	"github.com/wadesk/wadesk/internal/webserver"
)

func registerWebhookRoutes() {
	webserver.ApiPOST("/webhook/test", postWebhookTest)
	webserver.ApiGET("/webhook/tests", listWebhookTests)
	webserver.ApiGET("/webhook/tests/summary", getWebhookTestSummary)
	webserver.ApiGET("/webhook/tests/export", exportWebhookTests)
}

// postWebhookTest fires a test delivery. A failed delivery is still HTTP 200
// here: the result object carries the outcome.
func postWebhookTest(c echo.Context) error {
	var payload struct {
		URL     string                 `json:"url"`
		Method  string                 `json:"method"`
		Headers map[string]string      `json:"headers"`
		Body    map[string]interface{} `json:"body"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.URL == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "url is required", nil)
	}

	tester := GetAppContext(c).WebhookTester()
	result := tester.Test(c.Request().Context(), payload.Method, payload.URL, payload.Headers, payload.Body)
	return ok(c, result)
}

func listWebhookTests(c echo.Context) error {
	tester := GetAppContext(c).WebhookTester()
	return ok(c, map[string]interface{}{"tests": tester.History()})
}

func getWebhookTestSummary(c echo.Context) error {
	tester := GetAppContext(c).WebhookTester()
	return ok(c, tester.Summarize())
}

// exportWebhookTests downloads the retained history as CSV.
func exportWebhookTests(c echo.Context) error {
	tester := GetAppContext(c).WebhookTester()
	data, err := gocsv.MarshalString(tester.History())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_FAILED", "Failed to export history", err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="webhook_tests.csv"`)
	return c.Blob(http.StatusOK, "text/csv", []byte(data))
}
