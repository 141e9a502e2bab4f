package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/structures"
	"github.com/seventv/chatsync/internal/svc/auth"
	"github.com/seventv/chatsync/internal/svc/identity"
	"go.uber.org/zap"
)

var (
	ErrMissingName  = fmt.Errorf("%w: display name is required", identity.ErrMissingField)
	ErrUnauthorized = errors.New("session: not signed in")
)

type Profiles interface {
	Put(ctx context.Context, u structures.User) error
}

type Presence interface {
	SetOnline(ctx context.Context, userID string, online bool) error
	GoOffline(ctx context.Context, userID string)
}

type Options struct {
	Identity   instance.Identity
	Authorizer auth.Authorizer
	Profiles   Profiles
	Presence   Presence
}

// Session is what a successful sign-in hands back to the client.
type Session struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager signs users in and out. Revoked token ids are remembered until the
// token would have expired anyway.
type Manager struct {
	identity instance.Identity
	auth     auth.Authorizer
	profiles Profiles
	presence Presence
	revoked  *cache.Cache
	log      *zap.SugaredLogger
}

func New(opt Options) *Manager {
	return &Manager{
		identity: opt.Identity,
		auth:     opt.Authorizer,
		profiles: opt.Profiles,
		presence: opt.Presence,
		revoked:  cache.New(time.Hour, 10*time.Minute),
		log:      zap.S().Named("session"),
	}
}

// Register creates the credential, publishes the profile and marks the new
// user online before returning a token.
func (m *Manager) Register(ctx context.Context, email, password, name string) (Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, ErrMissingName
	}

	id, err := m.identity.Register(ctx, email, password)
	if err != nil {
		return Session{}, err
	}

	if err := m.profiles.Put(ctx, structures.User{
		ID:    id,
		Name:  name,
		Email: identity.NormalizeEmail(email),
	}); err != nil {
		m.log.Errorw("profile write failed after registration",
			"user_id", id,
			"error", err,
		)

		return Session{}, err
	}

	return m.signIn(ctx, id)
}

func (m *Manager) Login(ctx context.Context, email, password string) (Session, error) {
	id, err := m.identity.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}

	return m.signIn(ctx, id)
}

func (m *Manager) signIn(ctx context.Context, userID string) (Session, error) {
	if err := m.presence.SetOnline(ctx, userID, true); err != nil {
		return Session{}, err
	}

	token, claim, err := m.auth.CreateAccessToken(userID)
	if err != nil {
		return Session{}, err
	}

	m.log.Infow("signed in",
		"user_id", userID,
	)

	return Session{
		UserID:    userID,
		Token:     token,
		ExpiresAt: claim.ExpiresAt.Time,
	}, nil
}

func (m *Manager) claim(token string) (*auth.JWTClaimUser, bool) {
	claim, err := m.auth.ParseAccessToken(token)
	if err != nil {
		return nil, false
	}

	if _, revoked := m.revoked.Get(claim.ID); revoked {
		return nil, false
	}

	return claim, true
}

// CurrentID returns the user a token belongs to, if it is valid and was not
// logged out.
func (m *Manager) CurrentID(ctx context.Context, token string) (string, bool) {
	claim, ok := m.claim(token)
	if !ok {
		return "", false
	}

	return claim.UserID, true
}

// Logout revokes token and marks its user offline. The offline write is best
// effort: the session ends even if it fails.
func (m *Manager) Logout(ctx context.Context, token string) error {
	claim, ok := m.claim(token)
	if !ok {
		return ErrUnauthorized
	}

	ttl := cache.DefaultExpiration
	if claim.ExpiresAt != nil {
		ttl = time.Until(claim.ExpiresAt.Time)
	}

	m.revoked.Set(claim.ID, struct{}{}, ttl)
	m.presence.GoOffline(ctx, claim.UserID)

	m.log.Infow("signed out",
		"user_id", claim.UserID,
	)

	return nil
}
