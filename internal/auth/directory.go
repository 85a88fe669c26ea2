// internal/auth/directory.go
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jason-s-yu/wordrelay/internal/models"
)

var (
	// ErrInvalidCredentials covers both unknown names and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrBanned is returned for a correct login to a banned account.
	ErrBanned = errors.New("account is banned")
)

// Directory is the read-only set of accounts allowed to log in.
type Directory struct {
	mu     sync.RWMutex
	byID   map[int64]models.User
	byName map[string]models.User
}

// NewDirectory indexes users by id and by case-insensitive name.
func NewDirectory(users []models.User) (*Directory, error) {
	d := &Directory{
		byID:   make(map[int64]models.User, len(users)),
		byName: make(map[string]models.User, len(users)),
	}
	for _, u := range users {
		if u.ID <= 0 {
			return nil, fmt.Errorf("user %q: id must be positive", u.Name)
		}
		key := strings.ToLower(u.Name)
		if _, dup := d.byID[u.ID]; dup {
			return nil, fmt.Errorf("duplicate user id %d", u.ID)
		}
		if _, dup := d.byName[key]; dup {
			return nil, fmt.Errorf("duplicate user name %q", u.Name)
		}
		if u.Role == "" {
			u.Role = models.RoleUser
		}
		d.byID[u.ID] = u
		d.byName[key] = u
	}
	return d, nil
}

// LoadDirectory decodes a JSON array of users.
func LoadDirectory(r io.Reader) (*Directory, error) {
	var users []models.User
	if err := json.NewDecoder(r).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return NewDirectory(users)
}

// LoadDirectoryFile reads the user directory at path.
func LoadDirectoryFile(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDirectory(f)
}

// Authenticate checks a name and password pair.
func (d *Directory) Authenticate(name, password string) (models.User, error) {
	d.mu.RLock()
	u, ok := d.byName[strings.ToLower(name)]
	d.mu.RUnlock()
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}

	match, err := ComparePasswordAndHash(password, u.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	if !match {
		return models.User{}, ErrInvalidCredentials
	}
	if u.IsBanned() {
		return models.User{}, ErrBanned
	}
	u.Password = ""
	return u, nil
}

// Lookup returns the account with id, without its password hash.
func (d *Directory) Lookup(id int64) (models.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	u.Password = ""
	return u, ok
}
