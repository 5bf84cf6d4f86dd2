package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError é a interface central para todos os erros customizados do serviço.
// Ela permite que o código externo (Handler) acesse a Categoria e a Mensagem do erro.
type AppError interface {
	Error() string    // Implementa a interface error padrão do Go
	Category() string // Categoria do erro (e.g., "VALIDATION_ERROR", "NOT_FOUND", "INTERNAL_ERROR")
	HTTPStatus() int  // Código HTTP sugerido para o Handler
	Unwrap() error    // Permite encapsular erros subjacentes (original error)
}

// --- Tipos de Erro Específicos (Erros de Domínio) ---

// ValidationError representa argumentos inválidos (quantidade não positiva, tag malformada,
// transferência com origem igual ao destino).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string    { return fmt.Sprintf("Erro de Validação: %s", e.Msg) }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest } // 400
func (e *ValidationError) Unwrap() error    { return nil }

// NewValidationError cria um novo erro de validação.
func NewValidationError(msg string) AppError {
	return &ValidationError{Msg: msg}
}

// NotFoundError representa a ausência de um recurso solicitado.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("Recurso não encontrado: %s", e.Msg) }
func (e *NotFoundError) Category() string { return "NOT_FOUND" }
func (e *NotFoundError) HTTPStatus() int  { return http.StatusNotFound } // 404
func (e *NotFoundError) Unwrap() error    { return nil }

// NewNotFoundError cria um novo erro de recurso não encontrado.
func NewNotFoundError(msg string) AppError {
	return &NotFoundError{Msg: msg}
}

// ReferenceNotFoundError indica que um pedido referencia local, forma ou tamanho inexistente.
type ReferenceNotFoundError struct {
	Msg string
}

func (e *ReferenceNotFoundError) Error() string    { return fmt.Sprintf("Referência inexistente: %s", e.Msg) }
func (e *ReferenceNotFoundError) Category() string { return "REFERENCE_NOT_FOUND" }
func (e *ReferenceNotFoundError) HTTPStatus() int  { return http.StatusBadRequest } // 400
func (e *ReferenceNotFoundError) Unwrap() error    { return nil }

// NewReferenceNotFoundError cria um erro de referência inexistente.
func NewReferenceNotFoundError(msg string) AppError {
	return &ReferenceNotFoundError{Msg: msg}
}

// Códigos das violações de regra de quantidade.
const (
	CodeInsufficientStock        = "INSUFFICIENT_STOCK"
	CodeInsufficientGoodStock    = "INSUFFICIENT_GOOD_STOCK"
	CodeInsufficientDamagedStock = "INSUFFICIENT_DAMAGED_STOCK"
	CodeInsufficientAvailable    = "INSUFFICIENT_AVAILABLE"
	CodeOverRelease              = "OVER_RELEASE"
)

// QuantityRuleError representa uma violação das regras de quantidade do estoque.
// Code diferencia o tipo de violação (estoque bom, avariado, disponível, liberação excessiva).
type QuantityRuleError struct {
	Code      string
	Msg       string
	Requested int
	Current   int
}

func (e *QuantityRuleError) Error() string {
	return fmt.Sprintf("Regra de quantidade violada (%s): %s (solicitado %d, atual %d)", e.Code, e.Msg, e.Requested, e.Current)
}
func (e *QuantityRuleError) Category() string { return e.Code }
func (e *QuantityRuleError) HTTPStatus() int  { return http.StatusUnprocessableEntity } // 422
func (e *QuantityRuleError) Unwrap() error    { return nil }

// NewQuantityRuleError cria um erro de regra de quantidade com o código informado.
func NewQuantityRuleError(code, msg string, requested, current int) AppError {
	return &QuantityRuleError{Code: code, Msg: msg, Requested: requested, Current: current}
}

// InvalidStateError representa uma transição de estado não permitida (e.g., confirmar pedido já negado).
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string    { return fmt.Sprintf("Estado inválido: %s", e.Msg) }
func (e *InvalidStateError) Category() string { return "INVALID_STATE" }
func (e *InvalidStateError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *InvalidStateError) Unwrap() error    { return nil }

// NewInvalidStateError cria um erro de transição de estado inválida.
func NewInvalidStateError(msg string) AppError {
	return &InvalidStateError{Msg: msg}
}

// SequenceExhaustedError indica que a numeração diária de pedidos se esgotou.
type SequenceExhaustedError struct {
	Msg string
}

func (e *SequenceExhaustedError) Error() string    { return fmt.Sprintf("Sequência esgotada: %s", e.Msg) }
func (e *SequenceExhaustedError) Category() string { return "SEQUENCE_EXHAUSTED" }
func (e *SequenceExhaustedError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *SequenceExhaustedError) Unwrap() error    { return nil }

// NewSequenceExhaustedError cria um erro de sequência diária esgotada.
func NewSequenceExhaustedError(msg string) AppError {
	return &SequenceExhaustedError{Msg: msg}
}

// ConflictError representa um conflito de negócio que não é de versão (e.g., recurso duplicado).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string    { return fmt.Sprintf("Conflito de estado: %s", e.Msg) }
func (e *ConflictError) Category() string { return "CONFLICT" }
func (e *ConflictError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *ConflictError) Unwrap() error    { return nil }

// NewConflictError cria um novo erro de conflito.
func NewConflictError(msg string) AppError {
	return &ConflictError{Msg: msg}
}

// ConcurrencyError representa a falha do controle de concorrência otimista (OCC):
// a versão apresentada não corresponde à versão armazenada.
type ConcurrencyError struct {
	Msg string
}

func (e *ConcurrencyError) Error() string    { return fmt.Sprintf("Conflito de concorrência: %s", e.Msg) }
func (e *ConcurrencyError) Category() string { return "CONCURRENCY_CONFLICT" }
func (e *ConcurrencyError) HTTPStatus() int  { return http.StatusPreconditionFailed } // 412
func (e *ConcurrencyError) Unwrap() error    { return nil }

// NewConcurrencyError cria um erro de conflito de concorrência otimista.
func NewConcurrencyError(msg string) AppError {
	return &ConcurrencyError{Msg: msg}
}

// PreconditionRequiredError indica que a operação exige o header If-Match.
type PreconditionRequiredError struct {
	Msg string
}

func (e *PreconditionRequiredError) Error() string    { return fmt.Sprintf("Pré-condição obrigatória: %s", e.Msg) }
func (e *PreconditionRequiredError) Category() string { return "PRECONDITION_REQUIRED" }
func (e *PreconditionRequiredError) HTTPStatus() int  { return http.StatusPreconditionRequired } // 428
func (e *PreconditionRequiredError) Unwrap() error    { return nil }

// NewPreconditionRequiredError cria um erro de pré-condição ausente.
func NewPreconditionRequiredError(msg string) AppError {
	return &PreconditionRequiredError{Msg: msg}
}

// UnauthorizedError representa falha de autenticação.
type UnauthorizedError struct {
	Msg string
}

func (e *UnauthorizedError) Error() string    { return fmt.Sprintf("Não autorizado: %s", e.Msg) }
func (e *UnauthorizedError) Category() string { return "UNAUTHORIZED" }
func (e *UnauthorizedError) HTTPStatus() int  { return http.StatusUnauthorized } // 401
func (e *UnauthorizedError) Unwrap() error    { return nil }

// NewUnauthorizedError cria um erro de autenticação.
func NewUnauthorizedError(msg string) AppError {
	return &UnauthorizedError{Msg: msg}
}

// ForbiddenError representa um usuário autenticado sem a permissão necessária.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string    { return fmt.Sprintf("Acesso negado: %s", e.Msg) }
func (e *ForbiddenError) Category() string { return "FORBIDDEN" }
func (e *ForbiddenError) HTTPStatus() int  { return http.StatusForbidden } // 403
func (e *ForbiddenError) Unwrap() error    { return nil }

// NewForbiddenError cria um erro de permissão.
func NewForbiddenError(msg string) AppError {
	return &ForbiddenError{Msg: msg}
}

// --- Tipos de Erro de Infraestrutura (Encapsulamento) ---

// InternalError representa falhas inesperadas no servidor, serviço ou repositório.
type InternalError struct {
	Msg string
	Err error // Erro original subjacente (e.g., erro do driver SQL)
}

func (e *InternalError) Error() string    { return fmt.Sprintf("Erro Interno: %s", e.Msg) }
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) HTTPStatus() int  { return http.StatusInternalServerError } // 500
func (e *InternalError) Unwrap() error    { return e.Err }

// NewInternalError cria um erro de servidor (para falhas de lógica ou código não esperado).
func NewInternalError(msg string, err error) AppError {
	return &InternalError{Msg: msg, Err: err}
}

// NewDBError é um atalho para criar um InternalError específico de falhas no DB.
func NewDBError(msg string, err error) AppError {
	return NewInternalError(fmt.Sprintf("%s (DB): %s", msg, err.Error()), err)
}

// --- Helpers ---

// AsAppError devolve o AppError da cadeia de erros, se existir.
func AsAppError(err error) (AppError, bool) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCategory informa se algum erro da cadeia pertence à categoria informada.
func IsCategory(err error, category string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Category() == category
}

// Passthrough devolve erros de domínio sem alteração e encapsula o restante em InternalError.
// Usado pelos serviços ao receber erros dos repositórios.
func Passthrough(msg string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		if _, internal := appErr.(*InternalError); !internal {
			return appErr
		}
	}
	return NewInternalError(msg, err)
}

// MapToHTTPStatus recebe um erro e o traduz para o código HTTP e corpo de resposta.
func MapToHTTPStatus(err error) (int, string, string) {
	if appErr, ok := AsAppError(err); ok {
		if _, internal := appErr.(*InternalError); internal {
			// Não expõe detalhes do driver ao cliente.
			return appErr.HTTPStatus(), appErr.Category(), "Ocorreu um erro inesperado."
		}
		return appErr.HTTPStatus(), appErr.Category(), appErr.Error()
	}

	// Erro não tipado: tratado como erro interno genérico.
	return http.StatusInternalServerError, "UNKNOWN_ERROR", "Ocorreu um erro inesperado."
}
