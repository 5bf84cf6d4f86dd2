package userservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/token"
	"laststock/internal/repository/memstore"
	"laststock/internal/service/userservice"
)

func newService() (*userservice.UserService, *token.Service) {
	tokens := token.NewService("segredo-de-teste", time.Hour)
	return userservice.NewService(memstore.NewUserRepository(), tokens, "Chefe@Fabrica.com", logger.NewNop()), tokens
}

// TestRegister_AssignsRoles testa o papel padrão e o admin inicial.
func TestRegister_AssignsRoles(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	staff, err := svc.Register(ctx, domain.UserRegistration{Email: "ana@fabrica.com", Name: "Ana", Password: "senha-forte"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, staff.Role)
	assert.NotEmpty(t, staff.ID)
	assert.NotEqual(t, "senha-forte", staff.PasswordHash)

	admin, err := svc.Register(ctx, domain.UserRegistration{Email: "chefe@fabrica.com", Password: "senha-forte"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
}

// TestRegister_Validation testa payloads inválidos e email duplicado.
func TestRegister_Validation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.UserRegistration{Email: "", Password: "senha-forte"})
	assert.True(t, apperror.IsCategory(err, "VALIDATION_ERROR"))

	_, err = svc.Register(ctx, domain.UserRegistration{Email: "sem-arroba", Password: "senha-forte"})
	assert.True(t, apperror.IsCategory(err, "VALIDATION_ERROR"))

	_, err = svc.Register(ctx, domain.UserRegistration{Email: "bia@fabrica.com", Password: "curta"})
	assert.True(t, apperror.IsCategory(err, "VALIDATION_ERROR"))

	_, err = svc.Register(ctx, domain.UserRegistration{Email: "bia@fabrica.com", Password: "senha-forte"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, domain.UserRegistration{Email: "BIA@fabrica.com", Password: "senha-forte"})
	assert.True(t, apperror.IsCategory(err, "CONFLICT"))
}

// TestLogin_IssuesTokenWithActor testa a emissão do token.
func TestLogin_IssuesTokenWithActor(t *testing.T) {
	svc, tokens := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, domain.UserRegistration{Email: "ana@fabrica.com", Name: "Ana", Password: "senha-forte"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, "Ana@Fabrica.com", "senha-forte")
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, "Ana", claims.Actor)
	assert.Equal(t, string(domain.RoleStaff), claims.Role)
}

// TestLogin_InvalidCredentials testa que email e senha errados respondem igual.
func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, domain.UserRegistration{Email: "ana@fabrica.com", Password: "senha-forte"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ana@fabrica.com", "senha-errada")
	assert.True(t, apperror.IsCategory(err, "UNAUTHORIZED"))

	_, err = svc.Login(ctx, "ninguem@fabrica.com", "senha-forte")
	assert.True(t, apperror.IsCategory(err, "UNAUTHORIZED"))
}
