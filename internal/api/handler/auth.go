package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"nagarpalika/backend/internal/models"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

// Claims is the token payload issued by the auth service.
type Claims struct {
	Role       models.Role `json:"role"`
	Department string      `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// Auth verifies HS256 bearer tokens.
type Auth struct {
	secret         []byte
	allowAnonymous bool
}

func NewAuth(secret string, allowAnonymous bool) *Auth {
	return &Auth{secret: []byte(secret), allowAnonymous: allowAnonymous}
}

// SignToken issues a token for id. Used by the admin CLI and tests; the
// public API never issues credentials.
func (a *Auth) SignToken(id models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:       id.Role,
		Department: id.DepartmentCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "nagarpalika",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates tokenString and returns the identity it carries.
func (a *Auth) Parse(tokenString string) (*models.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, models.ErrUnauthorized
	}
	if claims.Subject == "" {
		return nil, models.ErrUnauthorized
	}

	role := claims.Role
	if role == "" {
		role = models.RoleCitizen
	}
	return &models.Identity{UserID: claims.Subject, Role: role, DepartmentCode: claims.Department}, nil
}

// Authenticate requires a valid bearer token. With anonymous access enabled a
// request without a token proceeds as an anonymous citizen.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if errors.Is(err, errNoToken) && a.allowAnonymous {
			c.Set(identityKey, &models.Identity{Role: models.RoleCitizen})
			c.Next()
			return
		}
		if err != nil {
			abortWithError(c, models.ErrUnauthorized, err.Error())
			return
		}

		id, err := a.Parse(tokenString)
		if err != nil {
			abortWithError(c, models.ErrUnauthorized, "Invalid token or expired")
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// Optional attaches the identity when a token is present. A bad token is still rejected.
func (a *Auth) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if errors.Is(err, errNoToken) {
			c.Next()
			return
		}
		if err != nil {
			abortWithError(c, models.ErrUnauthorized, err.Error())
			return
		}
		id, err := a.Parse(tokenString)
		if err != nil {
			abortWithError(c, models.ErrUnauthorized, "Invalid token or expired")
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// Authorize lets through only identities holding one of roles.
func Authorize(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := IdentityFrom(c)
		if id == nil || id.UserID == "" {
			abortWithError(c, models.ErrUnauthorized, "Not authorized")
			return
		}
		if !id.HasRole(roles...) {
			abortWithError(c, models.ErrForbidden, "User role "+string(id.Role)+" is not authorized to access this route")
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity set by the auth middleware, or nil.
func IdentityFrom(c *gin.Context) *models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*models.Identity)
	return id
}

var errNoToken = errors.New("Authorization token missing")

// bearerToken reads the Authorization header, or the token query parameter
// that browsers use for websocket upgrades.
func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if q := c.Query("token"); q != "" {
			return q, nil
		}
		return "", errNoToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("Invalid authorization header format")
	}
	return parts[1], nil
}

func abortWithError(c *gin.Context, err error, message string) {
	status := http.StatusUnauthorized
	if errors.Is(err, models.ErrForbidden) {
		status = http.StatusForbidden
	}
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
