package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projecthub/pkg/rbac"
	"projecthub/pkg/util"
)

const testSecret = "test-secret"

func newAuth() (*AuthService, *memUsers) {
	users := newMemUsers()
	return NewAuthService(users, testSecret, 0, zap.NewNop()), users
}

func TestRegister_DefaultsToMember(t *testing.T) {
	svc, _ := newAuth()

	u, err := svc.Register(context.Background(), RegisterInput{Email: " Ada@Example.com ", Password: "longenough", Name: "Ada"})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, rbac.RoleMember, u.Role)
	assert.NotEqual(t, "longenough", u.PasswordHash)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newAuth()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "longenough"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.co", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.co", Password: "longenough"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "A@B.co", Password: "longenough"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestLogin(t *testing.T) {
	svc, _ := newAuth()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Email: "pm@example.com", Password: "longenough"})
	require.NoError(t, err)

	token, u, err := svc.Login(ctx, "pm@example.com", "longenough")
	require.NoError(t, err)
	claims, err := util.ParseJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, rbac.RoleMember, claims.Role)

	_, _, err = svc.Login(ctx, "pm@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody@example.com", "longenough")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUser_AdminOnly(t *testing.T) {
	svc, _ := newAuth()
	ctx := context.Background()
	in := RegisterInput{Email: "pm@example.com", Password: "longenough"}

	_, err := svc.CreateUser(ctx, Actor{UserID: 2, Role: rbac.RolePM}, in, rbac.RolePM)
	var denied *rbac.PermissionDeniedError
	assert.ErrorAs(t, err, &denied)

	_, err = svc.CreateUser(ctx, Actor{UserID: 1, Role: rbac.RoleAdmin}, in, "owner")
	assert.ErrorIs(t, err, ErrInvalidInput)

	u, err := svc.CreateUser(ctx, Actor{UserID: 1, Role: rbac.RoleAdmin}, in, rbac.RolePM)
	require.NoError(t, err)
	assert.Equal(t, rbac.RolePM, u.Role)

	me, err := svc.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, me.Email)

	_, err = svc.Me(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
