// Package idempotencyservice deduplica requisições mutáveis repetidas pelo cliente.
package idempotencyservice

import (
	"context"
	"strings"
	"time"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
	"laststock/internal/pkg/logger"
)

// MaxKeyLength é o tamanho máximo aceito para a chave enviada pelo cliente.
const MaxKeyLength = 255

// PendingLease limita quanto tempo uma reserva bloqueia a chave caso o processo caia
// antes de concluir a requisição.
const PendingLease = 5 * time.Minute

// Result é a resposta entregue ao cliente. Replayed indica que veio do registro armazenado.
type Result struct {
	StatusCode int
	Payload    []byte
	Replayed   bool
}

// Handler executa a mutação protegida e devolve status e corpo serializado.
type Handler func(ctx context.Context) (int, []byte, error)

// Guard guarda a primeira resposta de cada chave até expirar.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    domain.Clock
	logger logger.Logger
}

func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger logger.Logger) *Guard {
	if ttl <= 0 {
		ttl = domain.DefaultIdempotencyTTL
	}
	return &Guard{repo: repo, ttl: ttl, now: domain.UTCNow, logger: logger}
}

// WithClock troca o relógio do guard. Usado em testes.
func (g *Guard) WithClock(c domain.Clock) *Guard {
	g.now = c
	return g
}

// ValidateKey rejeita chaves vazias ou longas demais.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return apperror.NewValidationError("Idempotency-Key vazia.")
	}
	if len(key) > MaxKeyLength {
		return apperror.NewValidationError("Idempotency-Key excede 255 caracteres.")
	}
	return nil
}

// CheckKey devolve o registro da chave, se existir e ainda não tiver expirado.
func (g *Guard) CheckKey(ctx context.Context, key string) (domain.IdempotencyRecord, bool, error) {
	rec, err := g.repo.Get(ctx, key)
	if apperror.IsCategory(err, "NOT_FOUND") {
		return domain.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return domain.IdempotencyRecord{}, false, apperror.Passthrough("Falha ao consultar chave de idempotência.", err)
	}
	if rec.Expired(g.now()) {
		return domain.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

// StoreResult grava o primeiro resultado da chave. Se outra requisição já gravou,
// devolve o registro existente e stored=false; nunca sobrescreve.
func (g *Guard) StoreResult(ctx context.Context, key string, status int, payload []byte, expiresAt time.Time) (domain.IdempotencyRecord, bool, error) {
	rec := domain.IdempotencyRecord{
		Key:        key,
		StatusCode: status,
		Payload:    payload,
		CreatedAt:  g.now(),
		ExpiresAt:  expiresAt,
	}
	stored, inserted, err := g.repo.InsertIfAbsent(ctx, rec)
	if err != nil {
		return domain.IdempotencyRecord{}, false, apperror.Passthrough("Falha ao gravar chave de idempotência.", err)
	}
	return stored, inserted, nil
}

// ScopedKey prefixa a chave do cliente com o escopo da operação (método, rota, operador),
// de modo que a mesma chave em operações diferentes não colida.
func ScopedKey(scope, key string) string {
	if scope == "" {
		return key
	}
	return scope + "|" + key
}

// Execute aplica o guard em volta de fn. Sem chave, fn roda sem deduplicação.
// A chave é reservada antes de fn rodar: uma segunda requisição com a mesma chave
// recebe ConflictError enquanto a primeira executa e a resposta armazenada depois dela.
// Erros de fn liberam a reserva: o cliente pode repetir com a mesma chave.
func (g *Guard) Execute(ctx context.Context, scope, key string, fn Handler) (Result, error) {
	if key == "" {
		status, payload, err := fn(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{StatusCode: status, Payload: payload}, nil
	}
	if err := ValidateKey(key); err != nil {
		return Result{}, err
	}
	stored := ScopedKey(scope, key)

	if rec, ok, err := g.CheckKey(ctx, stored); err != nil {
		return Result{}, err
	} else if ok {
		return g.replay(stored, rec)
	}

	now := g.now()
	rec, reserved, err := g.repo.InsertIfAbsent(ctx, domain.IdempotencyRecord{
		Key:       stored,
		Payload:   []byte{},
		CreatedAt: now,
		ExpiresAt: now.Add(g.lease()),
	})
	if err != nil {
		return Result{}, apperror.Passthrough("Falha ao reservar chave de idempotência.", err)
	}
	if !reserved {
		return g.replay(stored, rec)
	}

	// A reserva é concluída ou liberada mesmo se o cliente desconectar.
	bg := context.WithoutCancel(ctx)

	status, payload, err := fn(ctx)
	if err != nil {
		if relErr := g.repo.ReleasePending(bg, stored); relErr != nil {
			g.logger.Error("Falha ao liberar reserva de idempotência.", relErr)
		}
		return Result{}, err
	}

	if err := g.repo.Complete(bg, stored, status, payload, g.now().Add(g.ttl)); err != nil {
		// A mutação já foi aplicada; o cliente recebe o resultado mesmo sem registro.
		g.logger.Error("Falha ao armazenar resultado idempotente.", err)
	}
	return Result{StatusCode: status, Payload: payload}, nil
}

func (g *Guard) replay(key string, rec domain.IdempotencyRecord) (Result, error) {
	if rec.Pending() || rec.Expired(g.now()) {
		g.logger.Warn("Chave de idempotência em processamento.", map[string]interface{}{"idempotency_key": key})
		return Result{}, apperror.NewConflictError("Requisição com esta Idempotency-Key ainda em processamento.")
	}
	g.logger.Info("Requisição repetida; devolvendo resposta armazenada.", map[string]interface{}{"idempotency_key": key})
	return Result{StatusCode: rec.StatusCode, Payload: rec.Payload, Replayed: true}, nil
}

func (g *Guard) lease() time.Duration {
	if g.ttl < PendingLease {
		return g.ttl
	}
	return PendingLease
}

// CleanupExpired remove os registros vencidos.
func (g *Guard) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := g.repo.DeleteExpired(ctx, g.now())
	if err != nil {
		return 0, apperror.Passthrough("Falha ao limpar chaves de idempotência.", err)
	}
	return n, nil
}

// Cleaner roda CleanupExpired periodicamente, fora do caminho das requisições.
type Cleaner struct {
	guard    *Guard
	interval time.Duration
	logger   logger.Logger
}

func NewCleaner(guard *Guard, interval time.Duration, logger logger.Logger) *Cleaner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Cleaner{guard: guard, interval: interval, logger: logger}
}

// Run bloqueia até ctx ser cancelado.
func (c *Cleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("Limpeza de idempotência iniciada.", map[string]interface{}{"interval": c.interval.String()})
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Limpeza de idempotência encerrada.", nil)
			return
		case <-ticker.C:
			n, err := c.guard.CleanupExpired(ctx)
			if err != nil {
				c.logger.Error("Falha na limpeza de idempotência.", err)
				continue
			}
			if n > 0 {
				c.logger.Info("Chaves de idempotência expiradas removidas.", map[string]interface{}{"removed": n})
			}
		}
	}
}
