package domain

import (
	"context"
	"time"
)

// User mirrors the users/{id} document. Fields the storefront does not know
// about are kept in Attributes.
type User struct {
	ID         string         `json:"id"`
	Email      string         `json:"email"`
	FirstName  string         `json:"firstName,omitempty"`
	LastName   string         `json:"lastName,omitempty"`
	Avatar     string         `json:"avatar,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty,remain"`
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Attributes != nil {
		c.Attributes = make(map[string]any, len(u.Attributes))
		for k, v := range u.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}

type AuthProvider string

const (
	AuthProviderFirebase AuthProvider = "firebase"
	AuthProviderLocal    AuthProvider = "local"
)

// Session identifies the signed-in account.
type Session struct {
	UserID   string       `json:"userId"`
	Email    string       `json:"email"`
	Provider AuthProvider `json:"provider"`
	IssuedAt time.Time    `json:"issuedAt"`
}

// Credentials are submitted on sign-in. Firebase sign-ins carry an ID token
// obtained by the client, local sign-ins carry email and password.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	IDToken  string `json:"idToken,omitempty"`
}

type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Credential is a locally stored email/password account.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type CredentialRepo interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	Store(ctx context.Context, credential Credential) error
}
