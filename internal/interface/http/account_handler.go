package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-identity/internal/application"
	"github.com/oksasatya/go-account-identity/internal/domain/apperror"
	"github.com/oksasatya/go-account-identity/internal/interface/middleware"
	"github.com/oksasatya/go-account-identity/pkg/response"
	"github.com/oksasatya/go-account-identity/pkg/validation"
)

type AccountHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
}

func NewAccountHandler(svc *application.Service, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{Svc: svc, Logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register binds the raw payload; field validation happens in the service so
// that every caller gets the same rules.
func (h *AccountHandler) Register(c *gin.Context) {
	var req application.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	out, err := h.Svc.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, out, "account registered", nil)
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	out, err := h.Svc.Login(c.Request.Context(), application.LoginInput{Username: req.Username, Password: req.Password})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, out, "login successful", nil)
}

func (h *AccountHandler) ConfirmToken(c *gin.Context) {
	msg, err := h.Svc.ConfirmToken(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, msg, nil)
}

// CurrentUser must sit behind middleware.Auth.
func (h *AccountHandler) CurrentUser(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c.Request.Context())
	if !ok {
		response.Error[any](c, http.StatusUnauthorized, "no authorization token, access denied", nil)
		return
	}
	out, err := h.Svc.GetCurrentUser(c.Request.Context(), p.Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, out, "current user", nil)
}

func (h *AccountHandler) fail(c *gin.Context, err error) {
	if apperror.KindOf(err) == apperror.KindUnexpected {
		h.Logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("request failed")
	}
	middleware.AbortWithError(c, err)
}
