package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communityevents/internal/domain"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTIssuer_Issue(t *testing.T) {
	secret := "test-secret"
	issuer := NewJWTIssuer(secret, 24*time.Hour)

	token, err := issuer.Issue(&domain.Principal{
		UserID: "user-123",
		Email:  "u@example.com",
		Roles:  []domain.Role{domain.RoleAdmin, domain.RoleStaff},
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Parse and verify claims
	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	claims, ok := parsed.Claims.(*jwtClaims)
	require.True(t, ok)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "u@example.com", claims.Email)
	assert.Equal(t, []string{"admin", "staff"}, claims.Roles)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestJWTIssuer_Issue_RequiresSubject(t *testing.T) {
	issuer := NewJWTIssuer("s", time.Hour)
	_, err := issuer.Issue(&domain.Principal{Email: "u@example.com"})
	require.Error(t, err)
	_, err = issuer.Issue(nil)
	require.Error(t, err)
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	issuer := NewJWTIssuer("shared", time.Hour)
	verifier := NewJWTVerifier("shared")

	token, err := issuer.Issue(&domain.Principal{UserID: "staff-1", Email: "s@example.com", Roles: []domain.Role{domain.RoleStaff}})
	require.NoError(t, err)

	p, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", p.UserID)
	assert.Equal(t, "s@example.com", p.Email)
	assert.Equal(t, []domain.Role{domain.RoleStaff}, p.Roles)
	assert.True(t, p.Can(domain.CapReadRegistrations))
	assert.False(t, p.Can(domain.CapManageEvents))
}

func TestJWTVerifier_Rejects(t *testing.T) {
	secret := []byte("shared")
	verifier := NewJWTVerifier("shared")
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "garbage",
			token: "not-a-jwt",
		},
		{
			name: "wrong secret",
			token: sign(t, jwt.SigningMethodHS256, []byte("other"), jwtClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: future},
			}),
		},
		{
			name: "expired",
			token: sign(t, jwt.SigningMethodHS256, secret, jwtClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
			}),
		},
		{
			name: "no expiry",
			token: sign(t, jwt.SigningMethodHS256, secret, jwtClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "u"},
			}),
		},
		{
			name: "other algorithm",
			token: sign(t, jwt.SigningMethodHS512, secret, jwtClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: future},
			}),
		},
		{
			name: "missing subject",
			token: sign(t, jwt.SigningMethodHS256, secret, jwtClaims{
				RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future},
			}),
		},
		{
			name: "unknown role",
			token: sign(t, jwt.SigningMethodHS256, secret, jwtClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: future},
				Roles:            []string{"admin", "superuser"},
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := verifier.Verify(tt.token)
			require.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestJWTVerifier_NormalizesRoleCase(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, []byte("shared"), jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Roles:            []string{" Admin "},
	})
	p, err := NewJWTVerifier("shared").Verify(token)
	require.NoError(t, err)
	assert.True(t, p.Can(domain.CapManageEvents))
}
