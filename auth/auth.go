// Package auth adds registry credentials to outgoing requests.
package auth

import (
	"fmt"
	"net/http"
)

// Authenticator adds credentials to a registry request.
type Authenticator interface {
	Authenticate(req *http.Request) error
}

// Type names an authentication scheme.
type Type string

const (
	TypeNone   Type = "none"
	TypeAPIKey Type = "apikey"
	TypeBearer Type = "bearer"
	TypeBasic  Type = "basic"
)

// Headers carrying API key credentials.
const (
	APIKeyHeader    = "X-Api-Key"
	APISecretHeader = "X-Api-Secret"
)

// Credentials selects a scheme and holds the values it needs. Only the
// fields of the chosen scheme are read.
type Credentials struct {
	Type     Type
	Key      string
	Secret   string
	Token    string
	Username string
	Password string
}

// New returns the authenticator for c, or nil for TypeNone.
func New(c Credentials) (Authenticator, error) {
	switch c.Type {
	case "", TypeNone:
		return nil, nil
	case TypeAPIKey:
		if c.Key == "" {
			return nil, fmt.Errorf("apikey authentication requires a key")
		}
		return &APIKeyAuthenticator{key: c.Key, secret: c.Secret}, nil
	case TypeBearer:
		if c.Token == "" {
			return nil, fmt.Errorf("bearer authentication requires a token")
		}
		return &BearerAuthenticator{token: c.Token}, nil
	case TypeBasic:
		if c.Username == "" {
			return nil, fmt.Errorf("basic authentication requires a username")
		}
		return &BasicAuthenticator{username: c.Username, password: c.Password}, nil
	}
	return nil, fmt.Errorf("unknown authentication type %q", c.Type)
}

// APIKeyAuthenticator sends a key and secret pair the way the Origami
// repository data API expects them.
type APIKeyAuthenticator struct {
	key    string
	secret string
}

// NewAPIKeyAuthenticator creates an API key authenticator.
func NewAPIKeyAuthenticator(key, secret string) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{key: key, secret: secret}
}

func (a *APIKeyAuthenticator) Authenticate(req *http.Request) error {
	req.Header.Set(APIKeyHeader, a.key)
	if a.secret != "" {
		req.Header.Set(APISecretHeader, a.secret)
	}
	return nil
}

// BearerAuthenticator sends Authorization: Bearer.
type BearerAuthenticator struct {
	token string
}

// NewBearerAuthenticator creates a bearer token authenticator.
func NewBearerAuthenticator(token string) *BearerAuthenticator {
	return &BearerAuthenticator{token: token}
}

func (a *BearerAuthenticator) Authenticate(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+a.token)
	return nil
}

// BasicAuthenticator sends HTTP basic credentials.
type BasicAuthenticator struct {
	username string
	password string
}

// NewBasicAuthenticator creates a basic auth authenticator.
func NewBasicAuthenticator(username, password string) *BasicAuthenticator {
	return &BasicAuthenticator{username: username, password: password}
}

func (a *BasicAuthenticator) Authenticate(req *http.Request) error {
	req.SetBasicAuth(a.username, a.password)
	return nil
}
