package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

const healthPath = "/healthz"

type handler struct {
	app *App
}

// NewHandler returns the JSON api of the app.
func NewHandler(app *App) http.Handler {
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	h := &handler{app: app}

	r := gin.New()
	r.MaxMultipartMemory = maxMemory
	r.Use(RequestTime(), gin.Recovery())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "route not found", Code: CodeNotFound})
	})

	r.GET(healthPath, h.health)

	v1 := r.Group("/v1")
	v1.Use(Authenticate(app.Auth))
	{
		v1.POST("/locks", h.acquireLock)
		v1.GET("/locks/:resource_type/:resource_id", h.inspectLock)
		v1.DELETE("/locks/:resource_type/:resource_id", h.releaseLock)

		v1.POST("/directories", h.createDirectory)
		v1.GET("/directories/:id/permissions", h.directoryPermission)
		v1.PATCH("/directories/:id", h.updateDirectory)
		v1.DELETE("/directories/:id", h.deleteDirectory)

		v1.GET("/documents/:id/permissions", h.documentPermission)
		v1.PATCH("/documents/:id", h.updateDocument)
		v1.DELETE("/documents/:id", h.deleteDocument)

		v1.POST("/summaries", h.submitSummary)
		v1.POST("/summaries/upload", h.uploadSummary)
		v1.GET("/summaries/:id", h.summaryDetails)
		v1.GET("/summaries/:id/status", h.summaryStatus)
		v1.POST("/summaries/:id/cancel", h.cancelSummary)

		v1.POST("/shares", h.createShare)
		v1.GET("/shares/:id/users", h.listShareUsers)
		v1.POST("/shares/:id/users", h.addShareUser)
		v1.PATCH("/shares/:id/users/:user_id", h.updateShareUser)
		v1.DELETE("/shares/:id/users/:user_id", h.removeShareUser)
		v1.GET("/shares/:id/history", h.shareHistory)
		v1.GET("/shares/:id/updates", h.shareUpdates)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
	})

	return c.Handler(r)
}

func (h *handler) health(c *gin.Context) {
	sqlDB, err := h.app.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err == nil && h.app.Redis != nil {
		err = h.app.Redis.Ping(c.Request.Context()).Err()
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
