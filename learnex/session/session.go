// learnex/session/session.go
package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"learnex/learnex/storage"
	"learnex/learnex/types"
)

// ErrSessionIncomplete means the cached identity is missing or unusable. The
// chat view treats this as fatal: the user must re-login, there is no
// degraded mode.
var ErrSessionIncomplete = errors.New("session incomplete: cached identity missing")

// Identity is the logged-in user as cached at login time.
type Identity struct {
	ID    string     `json:"_id"`
	Name  string     `json:"name"`
	Role  types.Role `json:"role"`
	Token string     `json:"-"`
}

// Load reads the cached identity from the local store. The `user` key holds
// the JSON profile, `token` the bearer token; `userRole` and `userName` are
// denormalized fallbacks written by older logins.
func Load(store *storage.Local) (Identity, error) {
	var id Identity

	raw, err := store.Get(storage.KeyUser)
	if err != nil {
		return id, err
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &id); err != nil {
			return id, ErrSessionIncomplete
		}
	}
	if id.Role == "" {
		role, _ := store.Get(storage.KeyUserRole)
		id.Role = types.Role(role)
	}
	if id.Name == "" {
		id.Name, _ = store.Get(storage.KeyUserName)
	}
	id.Token, err = store.Get(storage.KeyToken)
	if err != nil {
		return id, err
	}

	if id.ID == "" {
		return id, ErrSessionIncomplete
	}
	return id, nil
}

// Save caches the identity, the analog of the login flow writing to local
// storage.
func Save(store *storage.Local, id Identity) error {
	profile, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := store.Set(storage.KeyUser, string(profile)); err != nil {
		return err
	}
	if err := store.Set(storage.KeyUserRole, string(id.Role)); err != nil {
		return err
	}
	if err := store.Set(storage.KeyUserName, id.Name); err != nil {
		return err
	}
	return store.Set(storage.KeyToken, id.Token)
}

// Logout clears the cached identity.
func Logout(store *storage.Local) error {
	return store.ClearSession()
}

// TokenExpired introspects the cached JWT's exp claim without verifying the
// signature; the client holds no signing key, this is a UX warning only.
func (id Identity) TokenExpired(now time.Time) bool {
	if id.Token == "" {
		return true
	}
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(id.Token, jwt.MapClaims{})
	if err != nil {
		return true
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
