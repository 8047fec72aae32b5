package auth

import (
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTOTPManager(t *testing.T) *TOTPManager {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	tm, err := NewTOTPManager(key, "Mithaq")
	require.NoError(t, err)
	return tm
}

func TestNewTOTPManager_InvalidKeyLength(t *testing.T) {
	for _, length := range []int{0, 16, 24, 31, 33} {
		tm, err := NewTOTPManager(make([]byte, length), "Mithaq")
		assert.Error(t, err)
		assert.Nil(t, tm)
	}
}

func TestTOTPManager_Enroll(t *testing.T) {
	tm := newTestTOTPManager(t)

	e, err := tm.Enroll("guardian@example.com")

	require.NoError(t, err)
	assert.NotEmpty(t, e.Secret)
	assert.Len(t, e.Nonce, 12)
	assert.True(t, strings.HasPrefix(e.QRCodeDataURL, "data:image/png;base64,"))

	plain, err := tm.DecryptSecret(e.EncryptedSecret, e.Nonce)
	require.NoError(t, err)
	assert.Equal(t, e.Secret, string(plain))
}

func TestTOTPManager_Verify(t *testing.T) {
	tm := newTestTOTPManager(t)
	e, err := tm.Enroll("guardian@example.com")
	require.NoError(t, err)

	now := time.Now()
	code, err := totp.GenerateCode(e.Secret, now)
	require.NoError(t, err)

	t.Run("valid code", func(t *testing.T) {
		assert.NoError(t, tm.Verify(e.EncryptedSecret, e.Nonce, code, nil, now))
	})

	t.Run("wrong code", func(t *testing.T) {
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		assert.ErrorIs(t, tm.Verify(e.EncryptedSecret, e.Nonce, wrong, nil, now), ErrInvalidCode)
	})

	t.Run("replay inside window", func(t *testing.T) {
		last := now.Add(-30 * time.Second)
		assert.ErrorIs(t, tm.Verify(e.EncryptedSecret, e.Nonce, code, &last, now), ErrCodeReplay)
	})

	t.Run("previous use outside window", func(t *testing.T) {
		last := now.Add(-5 * time.Minute)
		assert.NoError(t, tm.Verify(e.EncryptedSecret, e.Nonce, code, &last, now))
	})
}

func TestTOTPManager_DecryptWithOtherKeyFails(t *testing.T) {
	a := newTestTOTPManager(t)
	b := newTestTOTPManager(t)

	enc, nonce, err := a.EncryptSecret([]byte("JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)

	_, err = b.DecryptSecret(enc, nonce)
	assert.Error(t, err)
}
