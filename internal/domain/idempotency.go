package domain

import (
	"context"
	"time"
)

// DefaultIdempotencyTTL é a retenção padrão de um resultado em cache.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyRecord guarda a primeira resposta de uma requisição mutável, indexada pela
// chave enviada pelo cliente. Enquanto StatusCode é 0 o registro é uma reserva: a requisição
// dona da chave ainda está executando. Concluído, nunca é sobrescrito, apenas removido após expirar.
type IdempotencyRecord struct {
	Key        string    `json:"key"`
	StatusCode int       `json:"status_code"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired informa se o registro já pode ser descartado.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Pending informa se o registro é uma reserva ainda sem resultado.
func (r IdempotencyRecord) Pending() bool { return r.StatusCode == 0 }

// IdempotencyRepository é o contrato de persistência dos registros de idempotência.
type IdempotencyRepository interface {
	// Get devolve NotFoundError quando a chave não existe.
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	// InsertIfAbsent grava o registro se a chave não existir ou se o registro atual já expirou
	// em rec.CreatedAt. Devolve o registro efetivamente armazenado e se esta chamada o inseriu.
	InsertIfAbsent(ctx context.Context, rec IdempotencyRecord) (IdempotencyRecord, bool, error)
	// Complete grava o resultado de uma reserva. ConflictError se a reserva não existe mais.
	Complete(ctx context.Context, key string, status int, payload []byte, expiresAt time.Time) error
	// ReleasePending remove a reserva da chave; registros concluídos não são tocados.
	ReleasePending(ctx context.Context, key string) error
	// DeleteExpired remove registros com expires_at <= now e devolve a quantidade removida.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
