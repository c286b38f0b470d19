package modules

import (
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-account-identity/internal/application"
	handlers "github.com/oksasatya/go-account-identity/internal/interface/http"
	"github.com/oksasatya/go-account-identity/internal/interface/middleware"
)

// AccountModule serves the account routes under /api/user.
// Public: POST /register, POST /login, GET /confirm
// Protected: GET /current-user
type AccountModule struct {
	Handler *handlers.AccountHandler
	Guard   *application.AccessGuard
}

func NewAccountModule(h *handlers.AccountHandler, guard *application.AccessGuard) *AccountModule {
	return &AccountModule{Handler: h, Guard: guard}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	user := rg.Group("/user")
	user.POST("/register", m.Handler.Register)
	user.POST("/login", m.Handler.Login)
	user.GET("/confirm", m.Handler.ConfirmToken)

	user.GET("/current-user", middleware.Auth(m.Guard), m.Handler.CurrentUser)
}
