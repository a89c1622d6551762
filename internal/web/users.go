package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/changeboard/internal/access"
)

func handleUsers(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := access.List(s.db)
		if err != nil {
			s.fail(c, "Could not list users.", err)
			return
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":  "users",
			"title": "Users",
			"actor": actorFrom(c),
			"users": users,
			"roles": access.Roles,
		})
	}
}

func handleCreateUser(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := access.Register(s.db, access.RegisterInput{
			Name:     c.PostForm("name"),
			Email:    c.PostForm("email"),
			Password: c.PostForm("password"),
			Role:     c.PostForm("role"),
		})
		if err != nil {
			s.fail(c, "The user was not created.", err)
			return
		}
		c.Redirect(http.StatusSeeOther, "/access/users")
	}
}

// userAction wraps a per-user mutation that takes the acting user's id.
func userAction(s *server, message string, fn func(actorID, id uint) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			s.renderError(c, http.StatusBadRequest, "User id must be a number.", err)
			return
		}
		if err := fn(actorFrom(c).ID, uint(id)); err != nil {
			s.fail(c, message, err)
			return
		}
		c.Redirect(http.StatusSeeOther, "/access/users")
	}
}

func handleDeactivateUser(s *server) gin.HandlerFunc {
	return userAction(s, "The user was not deactivated.", func(actorID, id uint) error {
		return access.Deactivate(s.db, actorID, id)
	})
}

func handleActivateUser(s *server) gin.HandlerFunc {
	return userAction(s, "The user was not activated.", func(_, id uint) error {
		return access.Activate(s.db, id)
	})
}

func handleDeleteUser(s *server) gin.HandlerFunc {
	return userAction(s, "The user was not deleted.", func(actorID, id uint) error {
		return access.Delete(s.db, actorID, id)
	})
}
