package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", 1)

	tok, err := m.GenerateToken(7, "root")
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	require.Equal(t, uint(7), claims.AdminID)
	require.Equal(t, "root", claims.Username)
}

func TestJWTManager_RejectsForeignSecret(t *testing.T) {
	tok, err := NewJWTManager("secret-a", 1).GenerateToken(1, "a")
	require.NoError(t, err)

	_, err = NewJWTManager("secret-b", 1).VerifyToken(tok)
	require.Error(t, err)
}
