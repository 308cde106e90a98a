package server

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
)

// home renders the application view when the token query parameter checks
// out, otherwise bounces to the login form.
func (s *Server) home(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return c.Redirect(http.StatusFound, "/login")
	}
	if _, err := s.gate.VerifyToken(token); err != nil {
		return c.Redirect(http.StatusFound, "/login")
	}
	return s.render(c, http.StatusOK, "app.html", map[string]string{"Token": token})
}

func (s *Server) loginForm(c echo.Context) error {
	return s.render(c, http.StatusOK, "login.html", nil)
}

// login validates the submitted form credentials and redirects into the app
// with a freshly issued token. Failures re-render the form with a uniform
// error message.
func (s *Server) login(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	token, err := s.gate.IssueToken(username, password)
	if err != nil {
		return s.render(c, http.StatusUnauthorized, "login.html", map[string]string{"Error": "Invalid credentials"})
	}
	return c.Redirect(http.StatusFound, "/?token="+url.QueryEscape(token))
}
