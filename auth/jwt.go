package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateToken signe un token porteur pour un appelant donné.
// Utilisé par cmd/tokenctl ; le serveur ne fait qu'extraire l'identité.
func GenerateToken(secret string, caller string, expirationMinutes int) (string, error) {
	claims := jwt.MapClaims{
		"sub": caller,
		"exp": time.Now().Add(time.Duration(expirationMinutes) * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ExtractCaller lit l'identité de l'appelant (claim "sub") dans le bearer token.
// L'identité est un attribut opaque : aucune autorisation n'est décidée ici.
func ExtractCaller(r *http.Request, secret string) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
		return "", errors.New("no bearer token")
	}
	tokenString := strings.TrimPrefix(auth, "Bearer ")
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid or expired token")
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		caller, _ := claims["sub"].(string)
		if caller == "" {
			return "", errors.New("token has no subject")
		}
		return caller, nil
	}
	return "", errors.New("invalid token claims")
}
