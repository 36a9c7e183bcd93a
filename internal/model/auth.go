package model

import "github.com/golang-jwt/jwt/v5"

// GuestClaims is the JWT payload for an anonymous player session.
type GuestClaims struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}
