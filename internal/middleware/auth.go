package middleware

import (
	"errors"
	"net/http"
	"strings"

	"mesapos/internal/apierror"
	"mesapos/internal/model"
	"mesapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey = "claims"
	ActorKey  = "actor"
)

// JWTClaims are the custom claims embedded in every access token. Tokens are
// issued by the auth service; this API only verifies them.
type JWTClaims struct {
	UserID     string `json:"user_id"`
	Rol        string `json:"rol"`
	SucursalID string `json:"sucursal_id"`
	jwt.RegisteredClaims
}

// ErrRolDesconocido is returned for well-signed tokens carrying an unknown role.
var ErrRolDesconocido = errors.New("rol desconocido")

// ParseToken verifies an HMAC-signed token and returns its claims.
func ParseToken(secret, tokenStr string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if !model.Rol(claims.Rol).Valido() {
		return nil, ErrRolDesconocido
	}
	return claims, nil
}

// JWTAuth validates the Bearer token on every protected route and stores the
// resolved service.Actor in the context.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticacion requerida"))
			return
		}

		claims, err := ParseToken(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token invalido o expirado"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(ActorKey, ActorFromClaims(claims))
		c.Next()
	}
}

// ActorFromClaims maps verified claims to the caller identity used by services.
func ActorFromClaims(claims *JWTClaims) service.Actor {
	id, _ := uuid.Parse(claims.UserID)
	return service.Actor{ID: id, Rol: model.Rol(claims.Rol)}
}

// RequireRole rejects requests whose JWT role is not in the allowed list.
// Services enforce the same gates; this only fails fast.
func RequireRole(roles ...model.Rol) gin.HandlerFunc {
	allowed := make(map[model.Rol]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		a, ok := GetActor(c)
		if !ok || !allowed[a.Rol] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Permisos insuficientes"))
			return
		}
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}

// GetActor returns the caller resolved by JWTAuth.
func GetActor(c *gin.Context) (service.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return service.Actor{}, false
	}
	a, ok := v.(service.Actor)
	return a, ok
}
