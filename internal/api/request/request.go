// Package request reúne a leitura de parâmetros, corpo e cabeçalhos comuns aos handlers.
package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperror "laststock/internal/errors"
	"laststock/internal/pkg/etag"
	"laststock/internal/pkg/middleware"
)

// Cabeçalhos usados pela API.
const (
	HeaderIfMatch        = "If-Match"
	HeaderETag           = "ETag"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

// DecodeJSON lê o corpo da requisição em dst.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.NewValidationError("Payload inválido. Verifique o formato JSON.")
	}
	return nil
}

// PathInt64 lê um parâmetro de rota numérico positivo.
func PathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, apperror.NewValidationError(fmt.Sprintf("Parâmetro %s inválido: %q.", name, raw))
	}
	return v, nil
}

// QueryInt64 lê um filtro numérico opcional; ausente vale zero.
func QueryInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, apperror.NewValidationError(fmt.Sprintf("Filtro %s inválido: %q.", name, raw))
	}
	return v, nil
}

func QueryInt(r *http.Request, name string) (int, error) {
	v, err := QueryInt64(r, name)
	return int(v), err
}

// QueryTime lê um instante RFC 3339 opcional.
func QueryTime(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperror.NewValidationError(fmt.Sprintf("Filtro %s deve estar em RFC 3339: %q.", name, raw))
	}
	return t.UTC(), nil
}

// IfMatch decodifica o cabeçalho If-Match. Sem cabeçalho devolve nil, ou
// PreconditionRequired quando required.
func IfMatch(r *http.Request, codec *etag.Codec, required bool) (*etag.Precondition, error) {
	return ParseTag(r.Header.Get(HeaderIfMatch), codec, required)
}

// ParseTag aplica a mesma regra de IfMatch a uma tag vinda do corpo (itens de lote).
func ParseTag(tag string, codec *etag.Codec, required bool) (*etag.Precondition, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		if required {
			return nil, apperror.NewPreconditionRequiredError("Envie o cabeçalho If-Match com a ETag atual do recurso.")
		}
		return nil, nil
	}
	p, err := codec.Decode(tag)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Actor devolve a identidade do operador autenticado.
func Actor(r *http.Request) (string, error) {
	claims, ok := middleware.GetUserClaimsFromContext(r.Context())
	if !ok || claims.Actor == "" {
		return "", apperror.NewUnauthorizedError("Operador não identificado.")
	}
	return claims.Actor, nil
}

// SetETag grava o cabeçalho ETag da versão informada.
func SetETag(w http.ResponseWriter, codec *etag.Codec, version int) {
	w.Header().Set(HeaderETag, codec.Encode(version))
}
