package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Common validation errors
var (
	ErrEmptyLogin          = errors.New("login cannot be empty")
	ErrLoginTooLong        = errors.New("login must be at most 64 characters long")
	ErrEmptyName           = errors.New("name cannot be empty")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong     = errors.New("password must be at most 72 characters long")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
)

const (
	maxLoginLength    = 64
	minPasswordLength = 8
	// bcrypt ignores everything after 72 bytes
	maxPasswordLength = 72
)

// User represents a registered player of the quest board.
//
// Class is mutated only by calibration and Tags only by completion, which
// unions the tags of every completed task into it.
type User struct {
	ID             int64     `json:"id"`
	Login          string    `json:"login"`
	Name           string    `json:"name"`
	Password       string    `json:"-"` // Plaintext password, used temporarily during signup
	HashedPassword string    `json:"-"` // Never expose password hash in JSON
	Class          Rank      `json:"class"`
	IsAdmin        bool      `json:"is_admin"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewUser creates a new User with the given login, display name and
// plaintext password. New users start in class C with no tags.
//
// The caller is responsible for hashing the password before storing the user.
func NewUser(login, name, password string) (*User, error) {
	user := &User{
		Login:     strings.TrimSpace(login),
		Name:      strings.TrimSpace(name),
		Password:  password,
		Class:     RankC,
		Tags:      []string{},
		CreatedAt: time.Now().UTC(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}
	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.Login == "" {
		return ErrEmptyLogin
	}
	if utf8.RuneCountInString(u.Login) > maxLoginLength {
		return ErrLoginTooLong
	}
	if u.Name == "" {
		return ErrEmptyName
	}
	if !u.Class.Valid() {
		return ErrInvalidRank
	}

	if u.Password != "" {
		if len(u.Password) < minPasswordLength {
			return ErrPasswordTooShort
		}
		if len(u.Password) > maxPasswordLength {
			return ErrPasswordTooLong
		}
	} else if u.HashedPassword == "" {
		// one of them must be present
		return ErrEmptyHashedPassword
	}

	return nil
}
