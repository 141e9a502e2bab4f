package structures

// User is a directory entry. Online is never stored with the record; it is
// merged from presence at read time.
type User struct {
	ID        string `json:"uid"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"profileImageUrl"`
	Online    bool   `json:"-"`
}

// Encode serializes the directory record, without presence.
func (u User) Encode() ([]byte, error) {
	return codec.Marshal(u)
}

// DecodeUser reads a directory record stored under key. Missing or mistyped
// fields are left empty and a missing uid takes the key. Records that are not
// objects are rejected.
func DecodeUser(key string, raw []byte) (User, bool) {
	m, ok := fields(raw)
	if !ok {
		return User{}, false
	}

	u := User{
		ID:        str(m, "uid"),
		Name:      str(m, "name"),
		Email:     str(m, "email"),
		AvatarURL: str(m, "profileImageUrl"),
	}

	if u.ID == "" {
		u.ID = key
	}

	return u, true
}

// Presence is the online flag of one user as pushed to gateway clients.
type Presence struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// EncodeOnline serializes a presence flag.
func EncodeOnline(online bool) []byte {
	if online {
		return []byte("true")
	}

	return []byte("false")
}

// DecodeOnline reads a presence flag. Absent or undecodable values are offline.
func DecodeOnline(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}

	var v bool
	if err := codec.Unmarshal(raw, &v); err != nil {
		return false
	}

	return v
}
