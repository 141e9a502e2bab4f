package identity

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

var (
	ErrMissingField       = errors.New("identity: email and password are required")
	ErrWeakPassword       = errors.New("identity: password is too short")
	ErrEmailTaken         = errors.New("identity: email is already registered")
	ErrInvalidCredentials = errors.New("identity: invalid email or password")
)

// Credential is one registered login, stored in the credentials collection.
type Credential struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash []byte    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

// Check compares password against the stored hash.
func (c Credential) Check(password string) error {
	if err := bcrypt.CompareHashAndPassword(c.PasswordHash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validate(email, password string) error {
	if email == "" || password == "" {
		return ErrMissingField
	}

	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}

	return nil
}

func newCredential(id, email, password string, cost int) (Credential, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return Credential{}, err
	}

	return Credential{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}, nil
}
