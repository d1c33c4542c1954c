package auth

import (
	"context"
	"fmt"
	"time"
)

// TokenBlacklist 定义了 Token 黑名单的存储操作接口
type TokenBlacklist interface {
	// Add revokes jti until originalTokenExpTime.
	Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// RevokeToken validates tokenString and puts its id on the blacklist.
func RevokeToken(ctx context.Context, tokenString, jwtKey string, blacklist TokenBlacklist) (*Claims, error) {
	claims, err := ValidateToken(ctx, tokenString, jwtKey, nil)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: no expiry", ErrInvalidToken)
	}
	if err := blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}
	return claims, nil
}
