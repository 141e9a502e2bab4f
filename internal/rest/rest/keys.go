package rest

type Key string

const (
	AuthUserKey  Key = "CURRENT_USER"
	AuthTokenKey Key = "CURRENT_TOKEN"

	UserIDKey Key = "user.id"
)
