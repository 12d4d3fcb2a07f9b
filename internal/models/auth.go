package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the token payload issued by the surrounding application. This
// service only consumes it to scope sync operations to the caller's account.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
