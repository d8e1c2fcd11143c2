package http

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/nkarimi/automsg-engine/internal/repository"
	"github.com/nkarimi/automsg-engine/internal/sla"
)

// listOverdue exposes conversations awaiting a human past their SLA deadline.
// Overdue is computed against request time, never read from a stored flag.
func listOverdue(repo repository.ConversationsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 100
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}

		now := time.Now()
		rows, err := repo.ListOverdue(c.Request().Context(), now, limit)
		if err != nil {
			log.Errorf("list overdue failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		type overdueRow struct {
			ID          string `json:"id"`
			CustomerID  int64  `json:"customer_id"`
			Status      string `json:"status"`
			SLADeadline string `json:"sla_deadline"`
			OverdueFor  string `json:"overdue_for"`
		}
		results := make([]overdueRow, 0, len(rows))
		for _, conv := range rows {
			if !sla.IsOverdue(conv, now) {
				continue
			}
			results = append(results, overdueRow{
				ID:          conv.ID,
				CustomerID:  conv.CustomerID,
				Status:      conv.Status.String(),
				SLADeadline: conv.SLADeadline.Format(time.RFC3339),
				OverdueFor:  (-sla.Remaining(conv, now)).Round(time.Second).String(),
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(results),
			"results": results,
		})
	}
}
