package http

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/nkarimi/automsg-engine/internal/escalation"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/repository"
)

func listEscalations(repo repository.EscalationsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var status model.EscalationStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			st, ok := model.ParseEscalationStatus(raw)
			if !ok {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			}
			status = st
		}

		limit := 100
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}

		rows, err := repo.List(c.Request().Context(), status, limit)
		if err != nil {
			log.Errorf("list escalations failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(rows),
			"results": rows,
		})
	}
}

type escalationStatusReq struct {
	Status string `json:"status"`
}

func updateEscalationStatus(router *escalation.Router) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req escalationStatusReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		status, ok := model.ParseEscalationStatus(req.Status)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status"})
		}

		found, err := router.UpdateStatus(c.Request().Context(), c.Param("id"), status)
		if err != nil {
			log.Errorf("escalation status update failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if !found {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"updated": true,
			"status":  status.String(),
		})
	}
}
