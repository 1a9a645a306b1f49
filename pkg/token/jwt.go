// Package token 提供管理后台使用的 JSON Web Token 签发与校验。
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTManager 负责管理 JWT 的生成和验证。
type JWTManager struct {
	secretKey      []byte        // 签名和验证 token 的密钥
	accessTokenDur time.Duration // access token 的有效期
}

// AdminClaims 是管理员 token 中携带的自定义声明。
type AdminClaims struct {
	AdminID  uint   `json:"adminId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager 实例。
// accessTokenExpireHours 小于等于 0 时按 24 小时处理。
func NewJWTManager(secret string, accessTokenExpireHours int) *JWTManager {
	if accessTokenExpireHours <= 0 {
		accessTokenExpireHours = 24
	}
	return &JWTManager{
		secretKey:      []byte(secret),
		accessTokenDur: time.Hour * time.Duration(accessTokenExpireHours),
	}
}

// GenerateToken 为管理员签发一个新的 access token。
func (m *JWTManager) GenerateToken(adminID uint, username string) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		AdminID:  adminID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenDur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.secretKey)
}

// VerifyToken 校验 token 字符串，成功时返回其中的声明。
func (m *JWTManager) VerifyToken(tokenString string) (*AdminClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := tok.Claims.(*AdminClaims); ok && tok.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
