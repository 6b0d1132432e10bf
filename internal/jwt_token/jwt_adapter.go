package jwttoken

import (
	"podium/internal/platform/middleware"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
)

func ToMiddlewareClaims(claims *Claims) (*middleware.AdminClaims, error) {
	adminID, err := id.ParseAdminID(claims.AdminID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return &middleware.AdminClaims{AdminID: adminID, Role: claims.Role}, nil
}

// JWTServiceAdapter satisfies middleware.AdminTokenValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.AdminClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
