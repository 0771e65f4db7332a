package jwt

import (
	"crypto/rsa"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manorfm/identityserver/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockStrategy struct {
	mock.Mock
}

func (m *mockStrategy) Sign(claims jwt.Claims) (string, error) {
	args := m.Called(claims)
	return args.String(0), args.Error(1)
}

func (m *mockStrategy) GetPublicKey() *rsa.PublicKey {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*rsa.PublicKey)
}

func (m *mockStrategy) GetKeyID() string {
	return m.Called().String(0)
}

func (m *mockStrategy) RotateKey() error {
	return m.Called().Error(0)
}

func (m *mockStrategy) GetLastRotation() time.Time {
	return m.Called().Get(0).(time.Time)
}

func TestCompositeStrategy(t *testing.T) {
	local, err := NewLocalStrategy(&domain.LocalConfig{KeyPath: filepath.Join(t.TempDir(), "key.pem")}, zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		name      string
		setupMock func(*mockStrategy)
		wantVault bool
		wantKeyID func(vault *mockStrategy) string
	}{
		{
			name: "uses vault while it works",
			setupMock: func(m *mockStrategy) {
				m.On("Sign", mock.Anything).Return("vault-token", nil)
				m.On("GetKeyID").Return("vault-1")
			},
			wantVault: true,
			wantKeyID: func(*mockStrategy) string { return "vault-1" },
		},
		{
			name: "falls back to local on failure",
			setupMock: func(m *mockStrategy) {
				m.On("Sign", mock.Anything).Return("", domain.ErrTokenGeneration)
			},
			wantVault: false,
			wantKeyID: func(*mockStrategy) string { return local.GetKeyID() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vault := new(mockStrategy)
			tt.setupMock(vault)
			composite := NewCompositeStrategy(vault, local, zap.NewNop())

			token, err := composite.Sign(jwt.MapClaims{"sub": "alice"})
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, tt.wantVault, composite.UsingVault())
			assert.Equal(t, tt.wantKeyID(vault), composite.GetKeyID())
		})
	}

	t.Run("try vault", func(t *testing.T) {
		vault := new(mockStrategy)
		vault.On("Sign", mock.Anything).Return("", domain.ErrTokenGeneration)
		vault.On("GetPublicKey").Return(local.GetPublicKey())
		composite := NewCompositeStrategy(vault, local, zap.NewNop())

		_, err := composite.Sign(jwt.MapClaims{})
		require.NoError(t, err)
		assert.False(t, composite.UsingVault())

		require.NoError(t, composite.TryVault())
		assert.True(t, composite.UsingVault())
	})

	t.Run("local only", func(t *testing.T) {
		composite := NewCompositeStrategy(nil, local, zap.NewNop())
		assert.False(t, composite.UsingVault())
		assert.Error(t, composite.TryVault())
		assert.Equal(t, local.GetKeyID(), composite.GetKeyID())
	})
}
