package adminapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wadesk/wadesk/internal/instance"
	"github.com/wadesk/wadesk/internal/webserver"
)

func registerInstanceRoutes() {
	webserver.ApiGET("/instances", listInstances)
	webserver.ApiPOST("/instances", postCreateInstance)
	webserver.ApiGET("/instances/:name", getInstance)
	webserver.ApiDELETE("/instances/:name", deleteInstance)
	webserver.ApiGET("/instances/:name/qr", getInstanceQR)
	webserver.ApiPOST("/instances/:name/connect", postConnectInstance)
	webserver.ApiPOST("/instances/:name/disconnect", postDisconnectInstance)
	webserver.ApiPOST("/instances/:name/send/text", postSendText)
	webserver.ApiPOST("/instances/:name/send/media", postSendMedia)
}

func listInstances(c echo.Context) error {
	page, pageSize := parsePagination(c)
	repo := GetAppContext(c).InstanceRepo()

	items, total, err := repo.List(c.Request().Context(), page, pageSize)
	if err != nil {
		zap.L().Warn("adminapi: list instances failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list instances", err.Error())
	}
	return paged(c, items, total, page, pageSize)
}

func postCreateInstance(c echo.Context) error {
	var payload struct {
		Name    string `json:"name"`
		Company string `json:"company"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.Name == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "name is required", nil)
	}

	mgr := GetAppContext(c).InstanceManager()
	inst, err := mgr.Create(c.Request().Context(), payload.Name, payload.Company)
	if err != nil {
		if errors.Is(err, instance.ErrNameTaken) {
			return fail(c, http.StatusConflict, "NAME_TAKEN", "Instance name already in use", nil)
		}
		return failGateway(c, err)
	}
	return ok(c, inst)
}

func getInstance(c echo.Context) error {
	repo := GetAppContext(c).InstanceRepo()
	inst, err := repo.GetByName(c.Request().Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, instance.ErrNotFound) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Instance not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "QUERY_ERROR", "Failed to load instance", err.Error())
	}
	return ok(c, inst)
}

// getInstanceQR returns the stored QR payload. The frontend renders it
// directly as an image source.
func getInstanceQR(c echo.Context) error {
	repo := GetAppContext(c).InstanceRepo()
	inst, err := repo.GetByName(c.Request().Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, instance.ErrNotFound) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Instance not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "QUERY_ERROR", "Failed to load instance", err.Error())
	}
	return ok(c, map[string]interface{}{
		"code":   inst.QrCode,
		"has_qr": inst.QrCode != "",
		"status": inst.Status,
	})
}

func postConnectInstance(c echo.Context) error {
	mgr := GetAppContext(c).InstanceManager()
	inst, err := mgr.Connect(c.Request().Context(), c.Param("name"))
	if err != nil {
		return failGateway(c, err)
	}
	return ok(c, inst)
}

func postDisconnectInstance(c echo.Context) error {
	mgr := GetAppContext(c).InstanceManager()
	inst, err := mgr.Disconnect(c.Request().Context(), c.Param("name"))
	if err != nil {
		return failGateway(c, err)
	}
	return ok(c, inst)
}

func deleteInstance(c echo.Context) error {
	mgr := GetAppContext(c).InstanceManager()
	remoteRemoved, err := mgr.Delete(c.Request().Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, instance.ErrNotFound) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Instance not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete instance", err.Error())
	}
	return ok(c, map[string]interface{}{
		"removed":        true,
		"remote_removed": remoteRemoved,
	})
}

func postSendText(c echo.Context) error {
	var payload struct {
		Number string `json:"number"`
		Text   string `json:"text"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.Number == "" || payload.Text == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "number and text are required", nil)
	}

	mgr := GetAppContext(c).InstanceManager()
	if err := mgr.SendText(c.Request().Context(), c.Param("name"), payload.Number, payload.Text); err != nil {
		return failGateway(c, err)
	}
	return ok(c, map[string]interface{}{"sent": true})
}

func postSendMedia(c echo.Context) error {
	var payload struct {
		Number    string `json:"number"`
		MediaURL  string `json:"media_url"`
		MediaType string `json:"media_type"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.Number == "" || payload.MediaURL == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "number and media_url are required", nil)
	}
	if payload.MediaType == "" {
		payload.MediaType = "image"
	}

	mgr := GetAppContext(c).InstanceManager()
	if err := mgr.SendMedia(c.Request().Context(), c.Param("name"), payload.Number, payload.MediaURL, payload.MediaType); err != nil {
		return failGateway(c, err)
	}
	return ok(c, map[string]interface{}{"sent": true})
}
