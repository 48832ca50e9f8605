package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/pkg/jwt"
	"github.com/qs3c/regflow_go_server/internal/pkg/response"
)

const (
	UserIDKey = "userID"
	RoleKey   = "viewerRole"
)

// Auth JWT 认证中间件。
// 浏览器的 websocket 无法设置请求头，因此也接受 ?token= 查询参数。
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "Token is invalid or expired")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, model.ParseViewerRole(claims.Role))
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, true
		}
		response.AuthError(c, "Missing credentials")
		return "", false
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		response.AuthError(c, "Malformed Authorization header")
		return "", false
	}
	return tokenString, true
}

// RequireRole 仅允许指定角色访问
func RequireRole(roles ...model.ViewerRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.PermissionError(c, "Role "+roleLabel(role)+" cannot perform this action")
		c.Abort()
	}
}

func roleLabel(r model.ViewerRole) string {
	if r == model.RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}

// GetRole 从上下文获取页面角色，未认证时为 RoleUnknown
func GetRole(c *gin.Context) model.ViewerRole {
	v, exists := c.Get(RoleKey)
	if !exists {
		return model.RoleUnknown
	}
	role, _ := v.(model.ViewerRole)
	return role
}
