package security

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"motorent/internal/domain/identity"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := TokenVerifier{Secret: []byte("s3cret"), Issuer: "identity"}
	raw, err := v.Issue(identity.Identity{UserID: "u-1", Role: identity.RoleLister}, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "u-1", got.UserID)
	require.Equal(t, identity.RoleLister, got.Role)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v := TokenVerifier{Secret: []byte("s3cret")}

	other := TokenVerifier{Secret: []byte("other")}
	raw, err := other.Issue(identity.Identity{UserID: "u-1", Role: identity.RoleTaker}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, err := v.Issue(identity.Identity{UserID: "u-1", Role: identity.RoleTaker}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = v.Verify(badRole)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRandomTokenGenerator(t *testing.T) {
	a, err := RandomTokenGenerator{Size: 8}.NewToken()
	require.NoError(t, err)
	b, err := RandomTokenGenerator{Size: 8}.NewToken()
	require.NoError(t, err)
	require.Len(t, a, 11)
	require.NotEqual(t, a, b)
}
