package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		header  string
		want    string
		wantErr bool
	}{
		{name: "none", creds: Credentials{Type: TypeNone}},
		{name: "empty type", creds: Credentials{}},
		{name: "apikey", creds: Credentials{Type: TypeAPIKey, Key: "k1", Secret: "s1"}, header: APIKeyHeader, want: "k1"},
		{name: "bearer", creds: Credentials{Type: TypeBearer, Token: "t0k"}, header: "Authorization", want: "Bearer t0k"},
		{name: "basic", creds: Credentials{Type: TypeBasic, Username: "origami", Password: "pw"}, header: "Authorization", want: "Basic b3JpZ2FtaTpwdw=="},
		{name: "apikey without key", creds: Credentials{Type: TypeAPIKey}, wantErr: true},
		{name: "bearer without token", creds: Credentials{Type: TypeBearer}, wantErr: true},
		{name: "basic without user", creds: Credentials{Type: TypeBasic, Password: "pw"}, wantErr: true},
		{name: "unknown", creds: Credentials{Type: "kerberos"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.creds)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.header == "" {
				assert.Nil(t, a)
				return
			}

			req := httptest.NewRequest("GET", "https://origami-repo.example.com/packages/o-grid", nil)
			require.NoError(t, a.Authenticate(req))
			assert.Equal(t, tt.want, req.Header.Get(tt.header))
		})
	}
}

func TestAPIKeyAuthenticator_Secret(t *testing.T) {
	req := httptest.NewRequest("GET", "https://origami-repo.example.com/packages/o-grid", nil)
	require.NoError(t, NewAPIKeyAuthenticator("key", "secret").Authenticate(req))
	assert.Equal(t, "key", req.Header.Get(APIKeyHeader))
	assert.Equal(t, "secret", req.Header.Get(APISecretHeader))

	req = httptest.NewRequest("GET", "https://origami-repo.example.com/packages/o-grid", nil)
	require.NoError(t, NewAPIKeyAuthenticator("key", "").Authenticate(req))
	assert.Empty(t, req.Header.Get(APISecretHeader))
}

func TestBearerAndBasic(t *testing.T) {
	req := httptest.NewRequest("GET", "https://origami-repo.example.com/", nil)
	require.NoError(t, NewBearerAuthenticator("abc").Authenticate(req))
	assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))

	req = httptest.NewRequest("GET", "https://origami-repo.example.com/", nil)
	require.NoError(t, NewBasicAuthenticator("u", "p").Authenticate(req))
	user, pass, ok := req.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
}
