package user

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"laststock/internal/api/request"
	"laststock/internal/domain"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/respond"
	"laststock/internal/service/userservice"
)

// UserService define o contrato para as operações de registro e login.
type UserService interface {
	Register(ctx context.Context, registration domain.UserRegistration) (domain.User, error)
	Login(ctx context.Context, email string, password string) (userservice.LoginResult, error)
}

// LoginRequest representa o payload de entrada para o login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Handler agrupa todos os métodos de Handler do usuário.
type Handler struct {
	Service UserService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc UserService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// RegisterRoutes monta as rotas públicas de operadores.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users/register", h.RegisterUserHandler)
	r.Post("/users/login", h.LoginUserHandler)
}

// RegisterUserHandler lida com a requisição POST /v1/users/register.
// @Summary Registra um novo operador
// @Description Cria um operador com papel staff (ou admin para o email configurado).
// @Tags users
// @Accept json
// @Produce json
// @Param registration body domain.UserRegistration true "Email, nome e senha"
// @Success 201 {object} domain.User "Operador criado com sucesso"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 409 {object} domain.ErrorResponse "Email já cadastrado"
// @Router /users/register [post]
func (h *Handler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var reg domain.UserRegistration
	if err := request.DecodeJSON(r, &reg); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	newUser, err := h.Service.Register(r.Context(), reg)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	// O hash da senha não sai no JSON (tag `json:"-"`).
	respond.JSON(w, http.StatusCreated, newUser)
}

// LoginUserHandler lida com a requisição POST /v1/users/login.
// @Summary Autentica um operador e retorna um JWT
// @Tags users
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Email e senha"
// @Success 200 {object} userservice.LoginResult
// @Failure 401 {object} domain.ErrorResponse "Credenciais inválidas"
// @Router /users/login [post]
func (h *Handler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	res, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}
