package identity

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/common/sync_map"
	"golang.org/x/crypto/bcrypt"
)

// MockInstance keeps credentials in memory. It backs the memory identity mode
// and tests.
type MockInstance struct {
	byEmail *sync_map.Map[string, Credential]
	down    atomic.Bool
}

func NewMock() *MockInstance {
	return &MockInstance{
		byEmail: &sync_map.Map[string, Credential]{},
	}
}

func (i *MockInstance) SetConnected(connected bool) {
	i.down.Store(!connected)
}

func (i *MockInstance) Register(ctx context.Context, email string, password string) (string, error) {
	email = NormalizeEmail(email)
	if err := validate(email, password); err != nil {
		return "", err
	}

	if err := i.Ping(ctx); err != nil {
		return "", err
	}

	cred, err := newCredential(uuid.NewString(), email, password, bcrypt.MinCost)
	if err != nil {
		return "", err
	}

	if _, loaded := i.byEmail.LoadOrStore(email, cred); loaded {
		return "", ErrEmailTaken
	}

	return cred.ID, nil
}

func (i *MockInstance) Login(ctx context.Context, email string, password string) (string, error) {
	if err := i.Ping(ctx); err != nil {
		return "", err
	}

	cred, ok := i.byEmail.Load(NormalizeEmail(email))
	if !ok {
		return "", ErrInvalidCredentials
	}

	if err := cred.Check(password); err != nil {
		return "", err
	}

	return cred.ID, nil
}

func (i *MockInstance) Ping(ctx context.Context) error {
	if i.down.Load() {
		return instance.ErrDisconnected
	}

	return ctx.Err()
}
