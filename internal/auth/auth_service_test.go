package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) ([]byte, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privDER := x509.MarshalPKCS1PrivateKey(key)
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privDER}),
		pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
}

func TestTokenPairCarriesPrincipal(t *testing.T) {
	priv, pub := testKeys(t)
	svc, err := NewAuthService(priv, pub, time.Minute, time.Hour)
	require.NoError(t, err)

	pair, err := svc.GenerateTokenPair(Principal{UserID: 42, IsAdmin: true, MustChangePassword: true})
	require.NoError(t, err)

	access, err := svc.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(42), access.UserID)
	assert.Equal(t, "access", access.TokenType)
	assert.True(t, access.IsAdmin)
	assert.True(t, access.MustChangePassword)

	refresh, err := svc.ValidateToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refresh.TokenType)
	assert.NotEmpty(t, refresh.ID)
	assert.False(t, refresh.IsAdmin)
}

func TestValidateTokenRejectsForeignKey(t *testing.T) {
	priv, pub := testKeys(t)
	otherPriv, otherPub := testKeys(t)
	svc, err := NewAuthService(priv, pub, time.Minute, time.Hour)
	require.NoError(t, err)
	other, err := NewAuthService(otherPriv, otherPub, time.Minute, time.Hour)
	require.NoError(t, err)

	pair, err := other.GenerateTokenPair(Principal{UserID: 1})
	require.NoError(t, err)
	_, err = svc.ValidateToken(pair.AccessToken)
	assert.Error(t, err)
	_, err = svc.ValidateToken("")
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("correct horse", ""))
	assert.False(t, CheckPasswordHash("correct horse", "not-a-bcrypt-hash"))
}

func TestPasswordLengthLimits(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
	assert.True(t, IsPasswordError(err))

	_, err = HashPassword(strings.Repeat("a", MaxPasswordLength+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	assert.NoError(t, ValidatePassword("密码密码密码密码"))
	assert.ErrorIs(t, ValidatePassword("密码密码"), ErrPasswordTooShort)
}

func TestGeneratePassword(t *testing.T) {
	first, err := GeneratePassword()
	require.NoError(t, err)
	second, err := GeneratePassword()
	require.NoError(t, err)

	assert.Len(t, first, 32)
	assert.NotEqual(t, first, second)
	assert.NoError(t, ValidatePassword(first))
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	priv, pub := testKeys(t)
	svc, err := NewAuthService(priv, pub, -time.Minute, time.Hour)
	require.NoError(t, err)

	pair, err := svc.GenerateTokenPair(Principal{UserID: 3})
	require.NoError(t, err)
	_, err = svc.ValidateToken(pair.AccessToken)
	assert.Error(t, err)
	_, err = svc.ValidateToken(pair.RefreshToken)
	assert.NoError(t, err)
}
