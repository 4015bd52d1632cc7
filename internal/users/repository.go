package users

import (
	"fmt"
	"path/filepath"
	"strings"

	"voicecrm/internal/store"
)

type Repository struct {
	col *store.Collection[User, *User]
}

func Open(dataDir string) (*Repository, error) {
	col, err := store.Open[User, *User](filepath.Join(dataDir, "users.json"))
	if err != nil {
		return nil, err
	}
	return &Repository{col: col}, nil
}

func (r *Repository) Create(u User) (User, error) {
	if strings.TrimSpace(u.Email) == "" {
		return User{}, fmt.Errorf("%w: email is required", store.ErrValidation)
	}
	if u.PasswordHash == "" {
		return User{}, fmt.Errorf("%w: password hash is required", store.ErrValidation)
	}
	return r.col.Create(u)
}

func (r *Repository) Get(id string) (User, error) { return r.col.Get(id) }

// FindByEmail compares case-insensitively.
func (r *Repository) FindByEmail(email string) (User, error) {
	want := strings.ToLower(strings.TrimSpace(email))
	u, ok := r.col.FindOne(func(u User) bool { return strings.ToLower(u.Email) == want })
	if !ok {
		return User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *Repository) FindByAPIKey(key string) (User, error) {
	if key == "" {
		return User{}, store.ErrNotFound
	}
	u, ok := r.col.FindOne(func(u User) bool { return u.APIKey == key })
	if !ok {
		return User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *Repository) Update(id string, mutate func(*User)) (User, error) {
	return r.col.Update(id, mutate)
}
