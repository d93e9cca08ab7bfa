package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter assembles the gin engine. Health and metrics are open; everything
// under /v1 requires the host's bearer token.
func NewRouter(h *Handler, jwtKey []byte, logger *zap.Logger, metrics http.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(Recovery(logger), RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := r.Group("/v1", BearerAuth(jwtKey))
	comm := v1.Group("/communities/:community")

	comm.POST("/registrations", h.Setup)
	comm.GET("/registrations/:person", h.GetRegistration)
	comm.DELETE("/registrations/:person", h.Unregister)
	comm.PUT("/registrations/:person/worn", h.SetWorn)

	comm.POST("/registrations/:person/devices", h.AddDevice)
	comm.GET("/registrations/:person/devices", h.ListDevices)
	comm.DELETE("/registrations/:person/devices/:ref", h.RemoveDevice)

	comm.POST("/registrations/:person/consent", h.Grant)
	comm.GET("/registrations/:person/consent", h.ListConsent)
	comm.DELETE("/registrations/:person/consent", h.Revoke)
	comm.DELETE("/registrations/:person/consent/all", h.RevokeAll)

	comm.PUT("/registrations/:person/cooldown", h.SetCooldown)
	comm.GET("/registrations/:person/cooldown", h.GetCooldown)

	comm.POST("/consent/check", h.CanControl)
	comm.POST("/consent/targets", h.ControllableTargets)

	comm.POST("/actions", h.DispatchAction)
	comm.POST("/messages", h.HandleMessage)

	comm.POST("/registrations/:person/triggers", h.CreateTrigger)
	comm.GET("/registrations/:person/triggers", h.ListTriggers)
	comm.DELETE("/registrations/:person/triggers/:id", h.DeleteTrigger)
	comm.PUT("/registrations/:person/triggers/:id/enabled", h.SetTriggerEnabled)

	comm.POST("/reminders", h.CreateReminder)
	comm.GET("/reminders", h.ListReminders)
	comm.GET("/reminders/:id", h.GetReminder)
	comm.DELETE("/reminders/:id", h.CancelReminder)

	comm.GET("/audit", h.ListAudit)

	comm.GET("/controllers/:controller/prefs", h.ResolvePrefs)
	comm.PUT("/controllers/:controller/prefs", h.SetPrefs)

	return r
}
