package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
)

// IdempotencyRepository guarda os registros em um mapa protegido por mutex.
type IdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]domain.IdempotencyRecord
}

func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{records: make(map[string]domain.IdempotencyRecord)}
}

func (r *IdempotencyRepository) Get(_ context.Context, key string) (domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return domain.IdempotencyRecord{}, apperror.NewNotFoundError(fmt.Sprintf("Chave de idempotência %s não encontrada.", key))
	}
	return rec, nil
}

func (r *IdempotencyRepository) InsertIfAbsent(_ context.Context, rec domain.IdempotencyRecord) (domain.IdempotencyRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[rec.Key]; ok && !existing.Expired(rec.CreatedAt) {
		return existing, false, nil
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	r.records[rec.Key] = rec
	return rec, true, nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, key string, status int, payload []byte, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok || !rec.Pending() {
		return apperror.NewConflictError(fmt.Sprintf("Reserva da chave %s não encontrada.", key))
	}
	rec.StatusCode = status
	rec.Payload = append([]byte(nil), payload...)
	rec.ExpiresAt = expiresAt
	r.records[key] = rec
	return nil
}

func (r *IdempotencyRepository) ReleasePending(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[key]; ok && rec.Pending() {
		delete(r.records, key)
	}
	return nil
}

func (r *IdempotencyRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, rec := range r.records {
		if rec.Expired(now) {
			delete(r.records, k)
			n++
		}
	}
	return n, nil
}

// Len informa quantos registros estão armazenados.
func (r *IdempotencyRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
