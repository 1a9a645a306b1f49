// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"linebot-relay-go/internal/repository"
	"linebot-relay-go/pkg/log"
	"linebot-relay-go/pkg/token"
)

// ContextAdminClaims 是存放管理员声明的 gin 上下文键。
const ContextAdminClaims = "adminClaims"

// AdminAuthMiddleware 校验 Authorization 头中的管理员 token，并将声明存入上下文。
// blacklist 为 nil 时不检查登出状态。
func AdminAuthMiddleware(jwtManager *token.JWTManager, blacklist repository.TokenBlacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权头"})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的授权头格式"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}

		if blacklist != nil {
			revoked, err := blacklist.Contains(c.Request.Context(), tokenString)
			if err != nil {
				log.Errorf("AdminAuthMiddleware: blacklist lookup failed: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token 已失效"})
				return
			}
		}

		c.Set(ContextAdminClaims, claims)
		c.Next()
	}
}

// AdminClaims 从上下文中取出管理员声明。
func AdminClaims(c *gin.Context) (*token.AdminClaims, bool) {
	v, ok := c.Get(ContextAdminClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*token.AdminClaims)
	return claims, ok
}
