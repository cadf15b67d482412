package identity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/hms/internal/platform/apperr"
	"github.com/medicore/hms/internal/platform/auth"
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	svc      *Service
	sessions *auth.SessionManager
}

func NewAuthHandler(svc *Service, sessions *auth.SessionManager) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions}
}

// RegisterRoutes mounts the auth endpoints. register, login and logout must
// be listed as public paths so they are reachable without a session.
func (h *AuthHandler) RegisterRoutes(api *echo.Group) {
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)
	api.GET("/user", h.CurrentUser)
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Role != "" && req.Role != auth.RoleStaff && !auth.HasAnyRole(c.Request().Context(), auth.RoleAdmin) {
		return echo.NewHTTPError(http.StatusForbidden, "only admins may assign roles")
	}
	u, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}
	u, err := h.svc.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return apperr.HTTP(err)
	}

	token, sess, err := h.sessions.Issue(c.Request().Context(),
		auth.Principal{UserID: u.ID, Username: u.Username, Role: u.Role},
		c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return apperr.HTTP(err)
	}
	h.sessions.SetCookie(c, token, sess.ExpiresAt)
	return c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: sess.ExpiresAt, User: u})
}

// Logout revokes the current session, if any, and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	if sid, err := uuid.Parse(auth.SessionIDFromContext(c.Request().Context())); err == nil {
		if err := h.sessions.Revoke(c.Request().Context(), sid); err != nil {
			return apperr.HTTP(err)
		}
	}
	h.sessions.ClearCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) CurrentUser(c echo.Context) error {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}
