package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsegate/pulsegate/internal/errs"
)

// writeError maps service errors onto HTTP responses. Cooldowns carry the
// remaining wait so the host can render a countdown.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrNotRegistered), errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrNoConsent), errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrNoDevices), errors.Is(err, errs.ErrDeviceNotWorn), errors.Is(err, errs.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		var ce *errs.CooldownError
		if errors.As(err, &ce) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":         ce.Error(),
				"axis":          string(ce.Axis),
				"remaining_sec": int(ce.Remaining.Seconds()),
			})
			return
		}
		var cfg *errs.ConfigError
		if errors.As(err, &cfg) {
			c.JSON(http.StatusBadRequest, gin.H{"error": cfg.Error(), "field": cfg.Field})
			return
		}
		var ext *errs.ExternalError
		if errors.As(err, &ext) {
			c.JSON(http.StatusBadGateway, gin.H{"error": ext.Error(), "upstream_status": ext.Status})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
