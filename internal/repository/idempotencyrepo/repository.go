package idempotencyrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"laststock/internal/domain"
	"laststock/internal/errors"
	"laststock/internal/pkg/cache"
	"laststock/internal/pkg/database"
	"laststock/internal/pkg/logger"
)

const cacheKeyPrefix = "idempotency:"

// IdempotencyRepository persiste os registros no PostgreSQL e usa o Redis como cache
// read-through. O banco é a fonte da verdade; falhas do cache só geram aviso.
type IdempotencyRepository struct {
	DB           database.Querier
	Cache        cache.Client
	DBTimeout    time.Duration
	CacheTimeout time.Duration
	logger       logger.Logger
	now          func() time.Time
}

// NewIdempotencyRepository cria o repositório. cacheClient pode ser nil.
func NewIdempotencyRepository(db database.Querier, cacheClient cache.Client, dbTimeout, cacheTimeout time.Duration, logger logger.Logger) *IdempotencyRepository {
	return &IdempotencyRepository{
		DB:           db,
		Cache:        cacheClient,
		DBTimeout:    dbTimeout,
		CacheTimeout: cacheTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	if rec, ok := r.fromCache(ctx, key); ok {
		r.logger.Debug("Registro de idempotência encontrado no cache.", map[string]interface{}{"key": key})
		return rec, nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT key, status_code, payload, created_at, expires_at
        FROM idempotency_records
        WHERE key = $1`

	var rec domain.IdempotencyRecord
	err := r.DB.QueryRowContext(ctxTimeout, query, key).Scan(&rec.Key, &rec.StatusCode, &rec.Payload, &rec.CreatedAt, &rec.ExpiresAt)
	if err == sql.ErrNoRows {
		return domain.IdempotencyRecord{}, errors.NewNotFoundError(fmt.Sprintf("Chave de idempotência %s não encontrada.", key))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar registro de idempotência.", err)
		return domain.IdempotencyRecord{}, errors.NewDBError("Falha ao buscar idempotência", err)
	}

	r.toCache(ctx, rec)
	return rec, nil
}

// InsertIfAbsent usa ON CONFLICT: só substitui linhas já expiradas. Se outra requisição
// detém a chave, devolve o registro dela.
func (r *IdempotencyRepository) InsertIfAbsent(ctx context.Context, rec domain.IdempotencyRecord) (domain.IdempotencyRecord, bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if rec.Payload == nil {
		rec.Payload = []byte{}
	}

	query := `
        INSERT INTO idempotency_records (key, status_code, payload, created_at, expires_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (key) DO UPDATE
            SET status_code = EXCLUDED.status_code,
                payload     = EXCLUDED.payload,
                created_at  = EXCLUDED.created_at,
                expires_at  = EXCLUDED.expires_at
            WHERE idempotency_records.expires_at <= EXCLUDED.created_at`

	result, err := r.DB.ExecContext(ctxTimeout, query, rec.Key, rec.StatusCode, rec.Payload, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		r.logger.Error("Falha ao gravar registro de idempotência.", err)
		return domain.IdempotencyRecord{}, false, errors.NewDBError("Falha ao gravar idempotência", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return domain.IdempotencyRecord{}, false, errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}

	if n == 0 {
		existing, err := r.Get(ctx, rec.Key)
		if err != nil {
			return domain.IdempotencyRecord{}, false, err
		}
		r.logger.Info("Chave de idempotência já registrada; mantendo o primeiro registro.", map[string]interface{}{"key": rec.Key})
		return existing, false, nil
	}

	r.toCache(ctx, rec)
	return rec, true, nil
}

// Complete conclui a reserva (status_code = 0) com o resultado da requisição.
func (r *IdempotencyRepository) Complete(ctx context.Context, key string, status int, payload []byte, expiresAt time.Time) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        UPDATE idempotency_records
        SET status_code = $2, payload = $3, expires_at = $4
        WHERE key = $1 AND status_code = 0`

	result, err := r.DB.ExecContext(ctxTimeout, query, key, status, payload, expiresAt)
	if err != nil {
		r.logger.Error("Falha ao concluir registro de idempotência.", err)
		return errors.NewDBError("Falha ao concluir idempotência", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if n == 0 {
		return errors.NewConflictError(fmt.Sprintf("Reserva da chave %s não encontrada.", key))
	}

	r.toCache(ctx, domain.IdempotencyRecord{Key: key, StatusCode: status, Payload: payload, ExpiresAt: expiresAt})
	return nil
}

// ReleasePending apaga a reserva para que o cliente possa repetir a requisição.
func (r *IdempotencyRepository) ReleasePending(ctx context.Context, key string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if _, err := r.DB.ExecContext(ctxTimeout, `DELETE FROM idempotency_records WHERE key = $1 AND status_code = 0`, key); err != nil {
		r.logger.Error("Falha ao liberar reserva de idempotência.", err)
		return errors.NewDBError("Falha ao liberar idempotência", err)
	}
	return nil
}

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	result, err := r.DB.ExecContext(ctxTimeout, `DELETE FROM idempotency_records WHERE expires_at <= $1`, now)
	if err != nil {
		r.logger.Error("Falha ao remover registros de idempotência expirados.", err)
		return 0, errors.NewDBError("Falha ao limpar idempotência", err)
	}
	return result.RowsAffected()
}

func (r *IdempotencyRepository) fromCache(ctx context.Context, key string) (domain.IdempotencyRecord, bool) {
	if r.Cache == nil {
		return domain.IdempotencyRecord{}, false
	}
	ctxCache, cancel := context.WithTimeout(ctx, r.CacheTimeout)
	defer cancel()

	raw, err := r.Cache.Get(ctxCache, cacheKeyPrefix+key)
	if err == cache.ErrCacheMiss {
		return domain.IdempotencyRecord{}, false
	}
	if err != nil {
		r.logger.Warn("Falha ao ler idempotência do cache.", map[string]interface{}{"key": key, "error": err.Error()})
		return domain.IdempotencyRecord{}, false
	}

	var rec domain.IdempotencyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		r.logger.Warn("Registro de idempotência inválido no cache.", map[string]interface{}{"key": key})
		return domain.IdempotencyRecord{}, false
	}
	return rec, true
}

// toCache grava o registro com TTL igual ao tempo restante até a expiração.
// Reservas nunca vão para o cache.
func (r *IdempotencyRepository) toCache(ctx context.Context, rec domain.IdempotencyRecord) {
	if r.Cache == nil || rec.Pending() {
		return
	}
	ttl := rec.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}

	ctxCache, cancel := context.WithTimeout(ctx, r.CacheTimeout)
	defer cancel()
	// O primeiro resultado vence também no cache.
	if _, err := r.Cache.SetNX(ctxCache, cacheKeyPrefix+rec.Key, string(raw), ttl); err != nil {
		r.logger.Warn("Falha ao gravar idempotência no cache.", map[string]interface{}{"key": rec.Key, "error": err.Error()})
	}
}
