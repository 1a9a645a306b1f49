package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"linebot-relay-go/internal/middleware"
	"linebot-relay-go/internal/repository"
	"linebot-relay-go/pkg/token"
)

// RouterDeps 汇集路由所需的处理器与鉴权依赖。
type RouterDeps struct {
	Webhook    *WebhookHandler
	Auth       *AuthHandler
	Admin      *AdminHandler
	JWTManager *token.JWTManager
	Blacklist  repository.TokenBlacklist
}

// NewRouter 注册所有路由并返回 gin 引擎。
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger("/api/v1/admin/login"), gin.Recovery())

	r.POST("/callback", deps.Webhook.Callback)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/admin/login", deps.Auth.Login)

		admin := apiV1.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware(deps.JWTManager, deps.Blacklist))
		{
			admin.POST("/logout", deps.Auth.Logout)

			rules := admin.Group("/prompt-rules")
			{
				rules.GET("", deps.Admin.ListPromptRules)
				rules.POST("", deps.Admin.CreatePromptRule)
				rules.PUT("/:id", deps.Admin.UpdatePromptRule)
				rules.DELETE("/:id", deps.Admin.DeletePromptRule)
			}

			keywords := admin.Group("/skip-keywords")
			{
				keywords.GET("", deps.Admin.ListSkipKeywords)
				keywords.POST("", deps.Admin.CreateSkipKeyword)
				keywords.DELETE("/:id", deps.Admin.DeleteSkipKeyword)
			}

			admin.GET("/turns", deps.Admin.SearchTurns)
		}
	}
	return r
}
