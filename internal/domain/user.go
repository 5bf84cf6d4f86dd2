package domain

import (
	"context"
	"time"
)

// User representa um operador do sistema (quem ajusta estoque, solicita e revisa pedidos).
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Oculta o hash da senha no JSON de resposta
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserRole é o papel do operador.
type UserRole string

const (
	// RoleAdmin pode revisar (confirmar/negar) pedidos de compra.
	RoleAdmin UserRole = "admin"
	// RoleStaff movimenta estoque e solicita pedidos.
	RoleStaff UserRole = "staff"
)

// Actor devolve a identidade gravada nas movimentações e revisões.
func (u User) Actor() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// UserRegistration representa o payload de entrada para o registro.
type UserRegistration struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// UserRepository define o contrato de persistência para a entidade User.
type UserRepository interface {
	Save(ctx context.Context, user User) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
}
