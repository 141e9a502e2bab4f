package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var ErrInvalidToken = errors.New("auth: invalid token")

type Authorizer interface {
	SignJWT(secret string, claim jwt.Claims) (string, error)
	VerifyJWT(token []string, out jwt.Claims) (*jwt.Token, error)
	CreateAccessToken(userID string) (string, *JWTClaimUser, error)
	ParseAccessToken(token string) (*JWTClaimUser, error)
	Cookie(key, token string, duration time.Duration) *fasthttp.Cookie
}

type authorizer struct {
	JWTSecret string
	TTL       time.Duration
	Domain    string
	Secure    bool

	now func() time.Time
}

const (
	COOKIE_AUTH = "chatsync-auth"
	ISSUER      = "chatsync"
)

type AuthorizerOptions struct {
	JWTSecret string
	TTL       time.Duration
	Domain    string
	Secure    bool
}

func New(opt AuthorizerOptions) Authorizer {
	if opt.TTL <= 0 {
		opt.TTL = 7 * 24 * time.Hour
	}

	return &authorizer{
		JWTSecret: opt.JWTSecret,
		TTL:       opt.TTL,
		Domain:    opt.Domain,
		Secure:    opt.Secure,
		now:       time.Now,
	}
}

// CreateAccessToken signs a session token for userID. Every token gets a
// fresh id so it can be revoked on its own.
func (a *authorizer) CreateAccessToken(userID string) (string, *JWTClaimUser, error) {
	now := a.now()

	claim := &JWTClaimUser{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ISSUER,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.TTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := a.SignJWT(a.JWTSecret, claim)
	if err != nil {
		zap.S().Errorw("access_token, sign",
			"error", err,
			"user_id", userID,
		)

		return "", nil, err
	}

	return token, claim, nil
}

// ParseAccessToken verifies token and returns its claims. Expired tokens and
// tokens missing a user or token id are rejected.
func (a *authorizer) ParseAccessToken(token string) (*JWTClaimUser, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("%w: found %d segments when 3 were expected", ErrInvalidToken, len(segments))
	}

	claim := &JWTClaimUser{}
	if _, err := a.VerifyJWT(segments, claim); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	if claim.UserID == "" || claim.ID == "" {
		return nil, fmt.Errorf("%w: incomplete claims", ErrInvalidToken)
	}

	return claim, nil
}

// Cookie returns a cookie
func (a *authorizer) Cookie(key, token string, duration time.Duration) *fasthttp.Cookie {
	cookie := &fasthttp.Cookie{}
	cookie.SetKey(key)
	cookie.SetValue(token)
	cookie.SetExpire(a.now().Add(duration))
	cookie.SetHTTPOnly(true)
	cookie.SetDomain(a.Domain)
	cookie.SetPath("/")
	cookie.SetSecure(a.Secure)
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)

	return cookie
}
