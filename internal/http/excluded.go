package http

import (
	"net/http"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/repository"
	"github.com/nkarimi/automsg-engine/internal/util"
)

func listExcluded(repo repository.ExcludedRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		rows, err := repo.List(c.Request().Context())
		if err != nil {
			log.Errorf("list excluded numbers failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(rows),
			"results": rows,
		})
	}
}

type excludedReq struct {
	Phone         string `json:"phone"`
	Tag           string `json:"tag"`
	Reason        string `json:"reason"`
	IsTemporary   bool   `json:"is_temporary"`
	ExpiresInDays int    `json:"expires_in_days"` // required when is_temporary
}

func addExcluded(repo repository.ExcludedRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req excludedReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		phone := util.NormalizePhone(strings.TrimSpace(req.Phone))
		if phone == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "phone required"})
		}

		tag, ok := model.ParseExclusionTag(req.Tag)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tag"})
		}

		entry := model.ExcludedNumber{
			Phone:       phone,
			Tag:         tag,
			Reason:      strings.TrimSpace(req.Reason),
			IsTemporary: req.IsTemporary,
		}
		if req.IsTemporary {
			if req.ExpiresInDays < 1 {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "expires_in_days required for temporary entries"})
			}
			exp := time.Now().AddDate(0, 0, req.ExpiresInDays)
			entry.ExpiresAt = &exp
		}

		if err := repo.Upsert(c.Request().Context(), entry); err != nil {
			log.Errorf("add excluded number failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"excluded": true,
			"phone":    phone,
			"tag":      tag.String(),
		})
	}
}

func removeExcluded(repo repository.ExcludedRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		phone := util.NormalizePhone(strings.TrimSpace(c.Param("phone")))

		removed, err := repo.Remove(c.Request().Context(), phone)
		if err != nil {
			log.Errorf("remove excluded number failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if !removed {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}

		return c.JSON(http.StatusOK, map[string]any{"removed": true, "phone": phone})
	}
}
