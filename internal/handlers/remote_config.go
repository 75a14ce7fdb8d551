package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/remoteconfig"
)

type colorStore interface {
	Colors(ctx context.Context) (remoteconfig.ColorConfig, error)
	SetColors(ctx context.Context, cfg remoteconfig.ColorConfig) error
}

/*
GET /api/remote-config/colors
- defaults when unset or unreadable
*/
func GetColorConfig(store colorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/remote-config/colors"

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cfg, err := store.Colors(ctx)
		if err != nil {
			logger.WithError(err).WithField("route", route).Warn("color config unavailable, serving defaults")
		}
		c.JSON(http.StatusOK, cfg)
	}
}

/*
POST /admin/api/remote-config/colors
- accepts strict or loosely written JSON and stores it normalised
*/
func SetColorConfig(store colorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/remote-config/colors"

		raw, err := c.GetRawData()
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}

		cfg, err := remoteconfig.ParseColorConfig(string(raw))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := store.SetColors(ctx, cfg); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logger.Info("color config updated")
		c.JSON(http.StatusOK, cfg)
	}
}
