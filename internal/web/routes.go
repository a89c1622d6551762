package web

import (
	"io/fs"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/changeboard/internal/access"
)

const actorKey = "actor"

// actorMiddleware identifies the caller from the trusted proxy header.
func actorMiddleware(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := access.ResolveActor(s.db, c.GetHeader(s.cfg.Server.UserHeader))
		if err != nil {
			log.Printf("web: resolve actor: %v", err)
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) access.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(access.Actor); ok {
			return a
		}
	}
	return access.Actor{}
}

// requireAdmin rejects callers without the admin role.
func requireAdmin(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).IsAdmin() {
			s.renderError(c, http.StatusForbidden, "Administrator access is required.", nil)
			return
		}
		c.Next()
	}
}

// registerRoutes sets up all routes on the Gin router.
func registerRoutes(router *gin.Engine, s *server) {
	// Embedded static assets (served from assets/ subdir of the embed.FS).
	staticFS, _ := fs.Sub(assetsFS, "assets")
	router.StaticFS("/static", http.FS(staticFS))

	// Pages.
	router.GET("/", handleIndex(s))
	router.GET("/bcr", handleBcrList(s))
	router.GET("/bcr/workflow", handleWorkflow(s))
	router.GET("/bcr/submit", handleSubmitForm(s))
	router.POST("/bcr/submit", handleSubmit(s))
	router.GET("/bcr/submit/confirmation/:number", handleConfirmation(s))
	router.GET("/bcr/:number", handleBcrDetail(s))
	router.POST("/bcr/:number/status", handleStatusUpdate(s))
	router.POST("/bcr/:number/edit", handleBcrEdit(s))
	router.POST("/bcr/:number/delete", requireAdmin(s), handleBcrDelete(s))

	users := router.Group("/access", requireAdmin(s))
	users.GET("/users", handleUsers(s))
	users.POST("/users", handleCreateUser(s))
	users.POST("/users/:id/deactivate", handleDeactivateUser(s))
	users.POST("/users/:id/activate", handleActivateUser(s))
	users.POST("/users/:id/delete", handleDeleteUser(s))

	// JSON API.
	api := router.Group("/api/v1")
	api.GET("/health", handleHealth(s))
	api.GET("/status", handleStatus(s))
	api.GET("/items", handleItems(s))
	api.GET("/items/:number", handleItem(s))

	router.GET("/api/events", handleSSE(s))

	router.NoRoute(func(c *gin.Context) {
		s.renderError(c, http.StatusNotFound, "The page you asked for does not exist.", nil)
	})
}
