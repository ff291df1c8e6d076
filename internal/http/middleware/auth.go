package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"detailhub/internal/domain"
)

const actorKey = "actor"

const (
	AdminSecretHeader = "X-Admin-Secret"
	CronSecretHeader  = "X-Cron-Secret"
)

// Claims is the bearer token payload. Subject carries the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth resolves an Authorization bearer token into the request actor.
// Requests without a token pass through anonymously; a bad token is rejected.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || len(key) == 0 {
			abortUnauthorized(c, "invalid authorization header")
			return
		}
		actor, err := ParseToken(key, strings.TrimSpace(token))
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// ParseToken validates an HS256 token and maps it to an Actor.
func ParseToken(key []byte, token string) (domain.Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Actor{}, err
	}
	if claims.Subject == "" {
		return domain.Actor{}, errors.New("token has no subject")
	}
	role := domain.ActorRole(strings.ToUpper(strings.TrimSpace(claims.Role)))
	switch role {
	case domain.RoleCustomer, domain.RoleProvider, domain.RoleAdmin:
	default:
		return domain.Actor{}, errors.New("token role not allowed")
	}
	return domain.Actor{ID: claims.Subject, Role: role}, nil
}

// AdminSecret admits admin bearer tokens or a request carrying the admin
// secret, checked against its bcrypt hash.
func AdminSecret(hash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a, ok := ActorFrom(c); ok && a.Role == domain.RoleAdmin {
			c.Next()
			return
		}
		if !secretMatches(hash, c.GetHeader(AdminSecretHeader)) {
			abortUnauthorized(c, "admin credentials required")
			return
		}
		c.Set(actorKey, domain.Actor{ID: "admin_secret", Role: domain.RoleAdmin})
		c.Next()
	}
}

// CronSecret admits the scheduler. The actor becomes system_cron.
func CronSecret(hash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !secretMatches(hash, c.GetHeader(CronSecretHeader)) {
			abortUnauthorized(c, "cron secret required")
			return
		}
		c.Set(actorKey, domain.SystemActor(domain.SystemCronActorID))
		c.Next()
	}
}

// RequireActor rejects anonymous requests.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ActorFrom(c); !ok {
			abortUnauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}

func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	a, ok := v.(domain.Actor)
	return a, ok
}

func secretMatches(hash, secret string) bool {
	if hash == "" || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":      msg,
		"code":       "unauthorized",
		"request_id": GetRequestID(c),
	})
}
