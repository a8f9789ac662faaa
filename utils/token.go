package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

type JwtCustomClaim struct {
	ID       int      `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Kind     string   `json:"kind"`
	Jti      string   `json:"jti,omitempty"`
	jwt.StandardClaims
}

const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

var jwtSecret = []byte(getJwtSecret())

func getJwtSecret() string {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return "Majestic-Secret"
	}
	return secret
}

func accessLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 8
	}
	return time.Duration(hours) * time.Hour
}

func refreshLifespan() time.Duration {
	days, err := strconv.Atoi(os.Getenv("REFRESH_TOKEN_DAY_LIFESPAN"))
	if err != nil || days <= 0 {
		days = 14
	}
	return time.Duration(days) * 24 * time.Hour
}

func RefreshTokenLifespan() time.Duration {
	return refreshLifespan()
}

func JwtGenerate(userID int, username string, roles []string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		ID:       userID,
		Username: username,
		Roles:    roles,
		Kind:     TokenKindAccess,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(accessLifespan()).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})
	return t.SignedString(jwtSecret)
}

func JwtGenerateRefresh(userID int, username string, jti string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		ID:       userID,
		Username: username,
		Kind:     TokenKindRefresh,
		Jti:      jti,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(refreshLifespan()).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})
	return t.SignedString(jwtSecret)
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return jwtSecret, nil
	})
}

// JwtValidateRefresh parses a refresh token and returns its claims.
// Access tokens are rejected so a stolen short-lived token cannot mint new ones.
func JwtValidateRefresh(token string) (*JwtCustomClaim, error) {
	parsed, err := JwtValidate(token)
	if err != nil || !parsed.Valid {
		return nil, errors.New("invalid refresh token")
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || claims.Kind != TokenKindRefresh || claims.Jti == "" {
		return nil, errors.New("invalid token kind")
	}
	return claims, nil
}
