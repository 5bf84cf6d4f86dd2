// Package batch executa operações em lote item a item, sem abortar no primeiro erro.
package batch

import (
	"context"
	"fmt"
	"strconv"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
)

// Operation processa um item do lote. Cada chamada deve abrir sua própria transação.
type Operation[T any] func(ctx context.Context, item T) (interface{}, error)

// IDFunc extrai o identificador do item reportado no resultado.
type IDFunc[T any] func(index int, item T) string

// IndexID usa a posição (base 1) como identificador.
func IndexID[T any](index int, _ T) string { return strconv.Itoa(index + 1) }

// Run executa op para cada item, em ordem. Falhas são registradas e o lote segue;
// ao final Successful + Failed == len(items).
func Run[T any](ctx context.Context, items []T, id IDFunc[T], op Operation[T]) domain.BatchResult {
	if id == nil {
		id = IndexID[T]
	}

	result := domain.BatchResult{Results: make([]domain.BatchItemResult, 0, len(items))}
	for i, item := range items {
		r := domain.BatchItemResult{ID: id(i, item)}

		// Contexto cancelado: os itens restantes falham sem executar.
		if err := ctx.Err(); err != nil {
			r.Status = domain.BatchItemError
			r.Error = err.Error()
			r.Code = "CANCELLED"
			result.Failed++
			result.Results = append(result.Results, r)
			continue
		}

		data, err := invoke(ctx, op, item)
		if err != nil {
			r.Status = domain.BatchItemError
			_, r.Code, r.Error = apperror.MapToHTTPStatus(err)
			result.Failed++
		} else {
			r.Status = domain.BatchItemSuccess
			r.Data = data
			result.Successful++
		}
		result.Results = append(result.Results, r)
	}
	return result
}

// invoke converte o pânico de um item em InternalError para que o lote siga.
func invoke[T any](ctx context.Context, op Operation[T], item T) (data interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			data = nil
			err = apperror.NewInternalError(fmt.Sprintf("pânico ao processar item: %v", p), nil)
		}
	}()
	return op(ctx, item)
}
