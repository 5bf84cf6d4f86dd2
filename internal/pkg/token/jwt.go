package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "laststock"

// ErrInvalidToken cobre assinatura, emissor, expiração e formato.
var ErrInvalidToken = errors.New("token inválido")

// TokenService emite e valida os tokens de operador.
type TokenService interface {
	GenerateToken(userID, actor, userRole string) (string, error)
	ValidateToken(tokenString string) (*CustomClaims, error)
}

// CustomClaims carrega o operador autenticado. Actor é a identidade gravada
// nas movimentações e nas revisões de pedidos.
type CustomClaims struct {
	UserID string `json:"user_id"`
	Actor  string `json:"actor"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Service assina tokens HS256 com expiração fixa.
type Service struct {
	secretKey []byte
	expiry    time.Duration
	now       func() time.Time
	parser    *jwt.Parser
}

func NewService(secretKey string, expiry time.Duration) *Service {
	s := &Service{secretKey: []byte(secretKey), expiry: expiry, now: time.Now}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s
}

func (s *Service) GenerateToken(userID, actor, userRole string) (string, error) {
	issuedAt := s.now()
	claims := CustomClaims{
		UserID: userID,
		Actor:  actor,
		Role:   userRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("falha ao assinar o token: %w", err)
	}
	return signed, nil
}

// ValidateToken devolve as claims de um token íntegro e vigente.
// Qualquer falha é reportada como ErrInvalidToken, com a causa encadeada.
func (s *Service) ValidateToken(tokenString string) (*CustomClaims, error) {
	claims := &CustomClaims{}
	if _, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: user_id ausente", ErrInvalidToken)
	}
	return claims, nil
}
