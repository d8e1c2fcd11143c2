package http

import (
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/settings"
)

func getSettings(store *settings.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, store.Snapshot())
	}
}

func updateSettings(store *settings.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req model.AutoMessageSettings
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		updated, err := store.Update(c.Request().Context(), req)
		if err != nil {
			if vErr := req.Validate(); vErr != nil {
				return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": vErr.Error()})
			}
			log.Errorf("settings update failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, updated)
	}
}

type templateReq struct {
	Template string `json:"template"`
}

func updateTemplate(store *settings.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		tr, ok := model.ParseTriggerType(c.Param("trigger"))
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid trigger type"})
		}

		var req templateReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		if err := store.UpdateTemplate(c.Request().Context(), tr, req.Template); err != nil {
			log.Errorf("template update failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"updated": true,
			"trigger": tr.String(),
		})
	}
}
