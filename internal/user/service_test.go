package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"boxbook/internal/auth"
)

const testSecret = "test-secret-key"

type MockUserRepo struct{ mock.Mock }

func (m *MockUserRepo) Create(ctx context.Context, name, email, passwordHash, role string) (*User, error) {
	args := m.Called(ctx, name, email, passwordHash, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepo) FindByID(ctx context.Context, id int) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func TestRegister(t *testing.T) {
	repo := new(MockUserRepo)
	svc := NewService(repo, testSecret)

	repo.On("EmailExists", mock.Anything, "alex@example.com").Return(false, nil)
	repo.On("Create", mock.Anything, "Alex", "alex@example.com", mock.AnythingOfType("string"), "member").
		Return(&User{ID: 1, Name: "Alex", Email: "alex@example.com", Role: "member"}, nil)

	u, access, refresh, err := svc.Register(context.Background(), RegisterRequest{
		Name: "Alex", Email: "alex@example.com", Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, u.ID)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)

	claims, err := auth.ValidateToken(access, testSecret)
	require.NoError(t, err)
	assert.Equal(t, 1, claims.UserID)
	assert.Equal(t, "member", claims.Role)

	repo.AssertExpectations(t)
}

func TestRegister_EmailTaken(t *testing.T) {
	repo := new(MockUserRepo)
	svc := NewService(repo, testSecret)

	repo.On("EmailExists", mock.Anything, "alex@example.com").Return(true, nil)

	_, _, _, err := svc.Register(context.Background(), RegisterRequest{
		Name: "Alex", Email: "alex@example.com", Password: "password123",
	})
	assert.ErrorIs(t, err, ErrEmailExists)
	repo.AssertNotCalled(t, "Create")
}

func TestLogin(t *testing.T) {
	repo := new(MockUserRepo)
	svc := NewService(repo, testSecret)

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	repo.On("FindByEmail", mock.Anything, "alex@example.com").
		Return(&User{ID: 1, Email: "alex@example.com", PasswordHash: hash, Role: "member"}, nil)

	u, access, refresh, err := svc.Login(context.Background(), LoginRequest{
		Email: "alex@example.com", Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, u.ID)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := new(MockUserRepo)
	svc := NewService(repo, testSecret)

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	repo.On("FindByEmail", mock.Anything, "alex@example.com").
		Return(&User{ID: 1, Email: "alex@example.com", PasswordHash: hash}, nil)

	_, _, _, err = svc.Login(context.Background(), LoginRequest{
		Email: "alex@example.com", Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	repo := new(MockUserRepo)
	svc := NewService(repo, testSecret)

	repo.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, ErrUserNotFound)

	_, _, _, err := svc.Login(context.Background(), LoginRequest{
		Email: "nobody@example.com", Password: "password123",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshToken(t *testing.T) {
	repo := new(MockUserRepo)
	svc := NewService(repo, testSecret)

	_, refresh, err := auth.GenerateTokens(1, "alex@example.com", "member", testSecret)
	require.NoError(t, err)

	repo.On("FindByID", mock.Anything, 1).
		Return(&User{ID: 1, Email: "alex@example.com", Role: "member"}, nil)

	access, u, err := svc.RefreshToken(context.Background(), refresh)
	require.NoError(t, err)
	assert.Equal(t, 1, u.ID)

	claims, err := auth.ValidateToken(access, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.TokenType)
}

func TestRefreshToken_RejectsAccessToken(t *testing.T) {
	repo := new(MockUserRepo)
	svc := NewService(repo, testSecret)

	access, _, err := auth.GenerateTokens(1, "alex@example.com", "member", testSecret)
	require.NoError(t, err)

	_, _, err = svc.RefreshToken(context.Background(), access)
	assert.Error(t, err)
	repo.AssertNotCalled(t, "FindByID")
}
