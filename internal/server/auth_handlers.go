// file: internal/server/auth_handlers.go
// version: 2.0.0
// guid: 1457df2f-af76-46cb-a2f4-c9f6f275f93a

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/mediashare/internal/logging"
	servermiddleware "github.com/jdfalk/mediashare/internal/server/middleware"
)

type loginPage struct {
	Error string
}

func (s *Server) showLogin(c *gin.Context) {
	if servermiddleware.Authenticated(c, s.pin, s.sessions) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", loginPage{})
}

func (s *Server) submitLogin(c *gin.Context) {
	if !s.pin.Enabled() {
		c.Redirect(http.StatusFound, "/")
		return
	}
	if !s.pin.Check(c.PostForm("pin")) {
		logging.Warn().Str("client_ip", c.ClientIP()).Msg("rejected login attempt")
		c.HTML(http.StatusUnauthorized, "login.html", loginPage{Error: "Incorrect PIN"})
		return
	}

	token, err := s.sessions.Issue()
	if err != nil {
		logErrorWithContext(c, http.StatusInternalServerError, "failed to issue session: "+err.Error())
		c.HTML(http.StatusInternalServerError, "login.html", loginPage{Error: "Could not start a session"})
		return
	}
	s.sessions.SetCookie(c, token)
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) logout(c *gin.Context) {
	s.sessions.ClearCookie(c)
	c.Redirect(http.StatusFound, "/login")
}
