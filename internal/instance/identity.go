package instance

import "context"

// Identity issues user ids for credentials. It knows nothing about profiles,
// presence or sessions.
type Identity interface {
	Register(ctx context.Context, email string, password string) (string, error)
	Login(ctx context.Context, email string, password string) (string, error)
	Ping(ctx context.Context) error
}
