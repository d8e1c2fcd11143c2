package http

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/repository"
)

func listScheduled(repo repository.ScheduledRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 100
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}

		rows, err := repo.List(c.Request().Context(), limit)
		if err != nil {
			log.Errorf("list scheduled failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(rows),
			"results": rows,
		})
	}
}

// cancelScheduled is idempotent: cancelling an already-cancelled or sent entry
// is a no-op, not an error. A sent message is never un-sent.
func cancelScheduled(repo repository.ScheduledRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")

		cancelled, err := repo.Cancel(c.Request().Context(), id, "operator_cancelled")
		if err != nil {
			log.Errorf("cancel scheduled failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		if !cancelled {
			m, err := repo.Get(c.Request().Context(), id)
			if err != nil {
				log.Errorf("get scheduled failed: %v", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
			}
			if m == nil {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
			}
			// Already sent, cancelled, or mid-fire: report the current state.
			return c.JSON(http.StatusOK, map[string]any{
				"cancelled": m.Status == model.ScheduledCancelled,
				"status":    m.Status.String(),
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"cancelled": true,
			"status":    model.ScheduledCancelled.String(),
		})
	}
}
