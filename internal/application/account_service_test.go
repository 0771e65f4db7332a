package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/memory"
	"github.com/manorfm/identityserver/internal/infrastructure/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) FindBySubjectID(ctx context.Context, subjectID string) (*domain.User, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserStore) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func testUser(t *testing.T, active bool) *domain.User {
	hash, err := password.HashPassword("wonderland")
	require.NoError(t, err)
	u := domain.NewUser("alice", hash, domain.Claims{
		domain.NewClaim(domain.ClaimEmail, "alice@example.com"),
		domain.NewClaim(domain.ClaimName, "Alice"),
	})
	u.SubjectID = "alice-sub"
	u.IsActive = active
	return u
}

func TestAccountService_ValidateCredentials(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		password  string
		setupMock func(*mockUserStore)
		wantErr   error
	}{
		{
			name:     "valid credentials",
			password: "wonderland",
			setupMock: func(m *mockUserStore) {
				m.On("FindByUsername", mock.Anything, "alice").Return(testUser(t, true), nil)
			},
		},
		{
			name:     "wrong password",
			password: "looking-glass",
			setupMock: func(m *mockUserStore) {
				m.On("FindByUsername", mock.Anything, "alice").Return(testUser(t, true), nil)
			},
			wantErr: domain.ErrInvalidCredentials,
		},
		{
			name:     "unknown user",
			password: "wonderland",
			setupMock: func(m *mockUserStore) {
				m.On("FindByUsername", mock.Anything, "alice").Return(nil, domain.ErrUserNotFound)
			},
			wantErr: domain.ErrInvalidCredentials,
		},
		{
			name:     "inactive user",
			password: "wonderland",
			setupMock: func(m *mockUserStore) {
				m.On("FindByUsername", mock.Anything, "alice").Return(testUser(t, false), nil)
			},
			wantErr: domain.ErrInvalidCredentials,
		},
		{
			name:     "store failure",
			password: "wonderland",
			setupMock: func(m *mockUserStore) {
				m.On("FindByUsername", mock.Anything, "alice").Return(nil, domain.ErrDatabaseQuery)
			},
			wantErr: domain.ErrDatabaseQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(mockUserStore)
			tt.setupMock(users)
			svc := NewAccountService(users, domain.NewManualClock(now), zap.NewNop())

			principal, err := svc.ValidateCredentials(context.Background(), "alice", tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, principal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice-sub", principal.SubjectID)
			assert.Equal(t, now, principal.AuthTime)
			assert.Equal(t, domain.LocalIdentityProvider, principal.IdentityProvider)
			assert.Equal(t, []string{domain.AuthenticationMethodPwd}, principal.AuthenticationMethods)
			users.AssertExpectations(t)
		})
	}
}

func TestAccountService_Register(t *testing.T) {
	ctx := context.Background()
	svc := NewAccountService(memory.NewUserStore(nil), domain.SystemClock{}, zap.NewNop())

	user, err := svc.Register(ctx, " bob ", "builder", nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
	assert.NoError(t, password.CheckPassword("builder", user.Password))

	_, err = svc.Register(ctx, "BOB", "other", nil)
	assert.True(t, errors.Is(err, domain.ErrDuplicateKey))

	_, err = svc.Register(ctx, "", "x", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	principal, err := svc.ValidateCredentials(ctx, "bob", "builder")
	require.NoError(t, err)
	assert.Equal(t, user.SubjectID, principal.SubjectID)
}

func TestProfileService(t *testing.T) {
	ctx := context.Background()
	users := new(mockUserStore)
	users.On("FindBySubjectID", mock.Anything, "alice-sub").Return(testUser(t, true), nil)
	users.On("FindBySubjectID", mock.Anything, "ghost").Return(nil, domain.ErrUserNotFound)
	svc := NewProfileService(users, zap.NewNop())

	t.Run("filters requested claim types", func(t *testing.T) {
		claims, err := svc.GetProfileData(ctx, &domain.ProfileDataRequest{
			Subject:             &domain.Principal{SubjectID: "alice-sub"},
			Caller:              domain.CallerUserInfo,
			RequestedClaimTypes: []string{domain.ClaimEmail, domain.ClaimPreferredUsername},
		})
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", claims.Value(domain.ClaimEmail))
		assert.Equal(t, "alice", claims.Value(domain.ClaimPreferredUsername))
		assert.Empty(t, claims.Value(domain.ClaimName))
	})

	t.Run("anonymous subject has no claims", func(t *testing.T) {
		claims, err := svc.GetProfileData(ctx, &domain.ProfileDataRequest{RequestedClaimTypes: []string{domain.ClaimEmail}})
		require.NoError(t, err)
		assert.Empty(t, claims)
	})

	t.Run("is active", func(t *testing.T) {
		active, err := svc.IsActive(ctx, &domain.Principal{SubjectID: "alice-sub"}, nil, domain.CallerAccessTokenValidation)
		require.NoError(t, err)
		assert.True(t, active)

		active, err = svc.IsActive(ctx, &domain.Principal{SubjectID: "ghost"}, nil, domain.CallerAccessTokenValidation)
		require.NoError(t, err)
		assert.False(t, active)
	})
}
