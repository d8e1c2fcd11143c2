package http

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/nkarimi/automsg-engine/internal/engine"
	"github.com/nkarimi/automsg-engine/internal/lock"
	"github.com/nkarimi/automsg-engine/internal/model"
)

// handleEvent is the ingest point for the surrounding CRM: conversation,
// order, and ticket events flow in here and come out as zero or one scheduled
// auto-message (and possibly an escalation record).
func handleEvent(eng *engine.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		var ev model.Event
		if err := c.Bind(&ev); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		if !ev.Kind.Valid() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid event kind"})
		}
		if ev.CustomerID <= 0 || ev.ConversationID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "customer_id and conversation_id required"})
		}

		out, err := eng.HandleEvent(c.Request().Context(), ev)
		if err != nil {
			if errors.Is(err, lock.ErrBusy) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "customer busy, retry"})
			}
			log.Errorf("event handling failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "event failed"})
		}

		return c.JSON(http.StatusAccepted, out)
	}
}
