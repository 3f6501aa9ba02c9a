package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var JWT_SECRET string

// SetJWTSecret is called once at startup from config.
func SetJWTSecret(secret string) {
	JWT_SECRET = secret
}

// SignJWT issues an HS256 token with sub/role/iat/exp claims.
func SignJWT(subject int64, role string, ttl time.Duration) (string, error) {
	if JWT_SECRET == "" {
		return "", errors.New("JWT_SECRET not set")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(subject, 10),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
		"role": role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(JWT_SECRET))
}

// VerifyJWTToken parses and validates a token and returns its claims.
func VerifyJWTToken(tokenString string) (jwt.MapClaims, error) {
	if JWT_SECRET == "" {
		return nil, errors.New("JWT_SECRET not set")
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(JWT_SECRET), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ClaimSubject extracts the numeric subject id.
func ClaimSubject(claims jwt.MapClaims) (int64, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid subject")
	}
	return id, nil
}

func ClaimRole(claims jwt.MapClaims) string {
	role, _ := claims["role"].(string)
	return role
}
