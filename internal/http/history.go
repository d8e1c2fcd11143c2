package http

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/repository"
	"github.com/nkarimi/automsg-engine/internal/util"
)

func listHistory(repo repository.HistoryRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}

		rows, err := repo.List(c.Request().Context(), limit)
		if err != nil {
			log.Errorf("list history failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(rows),
			"results": rows,
		})
	}
}

// listHistoryReport serves the filterable long-retention view from ClickHouse.
func listHistoryReport(repo repository.CHHistoryRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var customerID int64
		if v := c.QueryParam("customer_id"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				customerID = n
			}
		}

		var tr model.TriggerType
		if raw := strings.TrimSpace(c.QueryParam("trigger")); raw != "" {
			if t, ok := model.ParseTriggerType(raw); ok {
				tr = t
			}
		}

		phone := util.NormalizePhone(strings.TrimSpace(c.QueryParam("phone")))

		rows, err := repo.ListByFilter(c.Request().Context(), customerID, phone, tr, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
