package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrclass/internal/apperr"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "qrclass-test"
)

func TestAuthenticateRoundTrip(t *testing.T) {
	pair, err := Issue("stu_1", RoleStudent, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	ident, err := Authenticate(pair.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "stu_1", ident.ID)
	assert.Equal(t, RoleStudent, ident.Role)
}

func TestAuthenticateFailsClosed(t *testing.T) {
	pair, err := Issue("ins_1", RoleInstructor, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
		key   string
		iss   string
	}{
		{"missing token", "", testKey, testIssuer},
		{"garbage token", "not.a.jwt", testKey, testIssuer},
		{"wrong key", pair.AccessToken, "other-key", testIssuer},
		{"wrong issuer", pair.AccessToken, testKey, "someone-else"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Authenticate(tc.token, tc.key, tc.iss)
			assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
		})
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	pair, err := Issue("stu_2", RoleStudent, testIssuer, testKey, -time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Authenticate(pair.AccessToken, testKey, testIssuer)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestAuthenticateRejectsUnknownRole(t *testing.T) {
	// A token minted with a role outside the closed set must not resolve.
	pair, err := Issue("x_1", Role("superuser"), testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Authenticate(pair.AccessToken, testKey, testIssuer)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"admin", "instructor", "student"} {
		role, err := ParseRole(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, role.String())
	}
	_, err := ParseRole("Instructor")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}
