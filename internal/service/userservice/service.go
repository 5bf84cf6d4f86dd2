package userservice

import (
	"context"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/token"
)

const minPasswordLength = 8

// UserService registra operadores e emite tokens de acesso.
type UserService struct {
	repo       domain.UserRepository
	tokens     token.TokenService
	adminEmail string
	now        domain.Clock
	logger     logger.Logger
}

// LoginResult é o token emitido mais o operador autenticado.
type LoginResult struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// NewService cria o serviço. adminEmail recebe o papel admin ao se registrar; vazio desliga.
func NewService(repo domain.UserRepository, tokens token.TokenService, adminEmail string, logger logger.Logger) *UserService {
	return &UserService{
		repo:       repo,
		tokens:     tokens,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		now:        domain.UTCNow,
		logger:     logger,
	}
}

// Register valida o payload, gera o hash da senha e persiste o operador.
func (s *UserService) Register(ctx context.Context, reg domain.UserRegistration) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	if email == "" || reg.Password == "" {
		return domain.User{}, apperror.NewValidationError("Email e senha são obrigatórios.")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, apperror.NewValidationError("Email inválido.")
	}
	if len(reg.Password) < minPasswordLength {
		return domain.User{}, apperror.NewValidationError("A senha deve ter ao menos 8 caracteres.")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, apperror.NewInternalError("Falha ao gerar hash da senha.", err)
	}

	role := domain.RoleStaff
	if s.adminEmail != "" && email == s.adminEmail {
		role = domain.RoleAdmin
	}

	now := s.now()
	user, err := s.repo.Save(ctx, domain.User{
		Email:        email,
		Name:         strings.TrimSpace(reg.Name),
		PasswordHash: string(hashed),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.User{}, apperror.Passthrough("Falha ao registrar operador.", err)
	}

	s.logger.Info("Operador registrado.", map[string]interface{}{"user_id": user.ID, "role": user.Role})
	return user, nil
}

// Login confere as credenciais e emite o JWT com a identidade do operador.
// Email inexistente e senha errada produzem a mesma resposta.
func (s *UserService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return LoginResult{}, apperror.NewUnauthorizedError("Email e senha são obrigatórios.")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if apperror.IsCategory(err, "NOT_FOUND") {
		return LoginResult{}, apperror.NewUnauthorizedError("Credenciais inválidas.")
	}
	if err != nil {
		return LoginResult{}, apperror.Passthrough("Falha ao buscar operador.", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, apperror.NewUnauthorizedError("Credenciais inválidas.")
	}

	tok, err := s.tokens.GenerateToken(user.ID, user.Actor(), string(user.Role))
	if err != nil {
		return LoginResult{}, apperror.NewInternalError("Falha ao gerar token de autenticação.", err)
	}

	return LoginResult{Token: tok, User: user}, nil
}
