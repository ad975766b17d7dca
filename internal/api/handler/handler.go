package handler

import (
	"net/http"
	"time"

	"nagarpalika/backend/internal/config"
	"nagarpalika/backend/internal/hub"
	"nagarpalika/backend/internal/lifecycle"
	"nagarpalika/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// Handler translates HTTP and websocket traffic into lifecycle and hub calls.
type Handler struct {
	Reports   *lifecycle.Service
	Hub       *hub.ManagerService
	Directory *config.Directory
	Images    ImageStore
}

func NewHandler(reports *lifecycle.Service, h *hub.ManagerService, dir *config.Directory, images ImageStore) *Handler {
	return &Handler{Reports: reports, Hub: h, Directory: dir, Images: images}
}

// RegisterRoutes mounts every endpoint on r. uploadDir may be empty.
func (h *Handler) RegisterRoutes(r *gin.Engine, auth *Auth, limiter *RateLimiter, uploadDir string) {
	r.GET("/health", h.Health)
	r.GET("/ws", auth.Optional(), h.ServeWebSocket)
	if uploadDir != "" {
		r.Static("/uploads", uploadDir)
	}

	api := r.Group("/api")
	{
		api.GET("/departments", h.ListDepartments)

		reports := api.Group("/reports")
		{
			reports.GET("", auth.Optional(), h.ListReports)
			reports.GET("/:id", h.GetReport)
			reports.POST("", auth.Authenticate(), limiter.Middleware(), h.CreateReport)
			reports.PUT("/:id/status", auth.Authenticate(), Authorize(models.RoleAuthority, models.RoleAdmin), h.UpdateStatus)
		}
	}
}

// Health reports liveness and registry size.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"realtime":  h.Hub.Stats(),
	})
}

// ListDepartments returns the jurisdiction directory.
func (h *Handler) ListDepartments(c *gin.Context) {
	c.JSON(http.StatusOK, h.Directory.All())
}
