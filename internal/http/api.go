package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"noteful-auth/internal/apperr"
	"noteful-auth/internal/credentials"
	"noteful-auth/internal/health"
	"noteful-auth/internal/service"
	"noteful-auth/internal/token"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users  service.UserService
	health *health.Service
	logger logrus.FieldLogger
}

func NewHandler(users service.UserService, readiness *health.Service, logger logrus.FieldLogger) *Handler {
	return &Handler{
		users:  users,
		health: readiness,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), errorBoundary(h.logger), corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/users", h.register)
		api.GET("/users/:id", h.requireToken, h.getUser)
		api.POST("/login", h.login)
		api.POST("/refresh", h.refresh)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		api.GET("/ready", h.ready)
	}
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AuthToken string `json:"authToken"`
}

func tokenToResponse(tok token.Token) TokenResponse {
	return TokenResponse{AuthToken: tok.Value}
}

func (h *Handler) register(c *gin.Context) {
	body, err := decodeObject(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), credentials.RegistrationInput{
		Username: credentials.FieldFrom(body, "username"),
		Password: credentials.FieldFrom(body, "password"),
		Fullname: credentials.FieldFrom(body, "fullname"),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Location", c.Request.URL.Path+"/"+user.ID)
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	body, err := decodeObject(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	// non-string values fall through as "" and fail like any bad credential
	username, _ := body["username"].(string)
	password, _ := body["password"].(string)

	tok, err := h.users.Login(c.Request.Context(), username, password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tokenToResponse(tok))
}

func (h *Handler) refresh(c *gin.Context) {
	tok, err := h.users.Refresh(c.Request.Context(), bearerToken(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tokenToResponse(tok))
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) ready(c *gin.Context) {
	if err := h.health.Ready(c.Request.Context()); err != nil {
		h.logger.WithError(err).Warn("readiness check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": http.StatusText(http.StatusServiceUnavailable)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// decodeObject reads the request body as a JSON object. An empty body decodes
// to an empty object so that missing fields are reported individually.
func decodeObject(c *gin.Context) (map[string]any, error) {
	body := map[string]any{}
	if err := c.ShouldBindJSON(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, apperr.Wrap(apperr.KindMalformedBody, "Malformed request body", err)
	}
	if body == nil {
		// a literal null body
		return map[string]any{}, nil
	}
	return body, nil
}
