// Package respond padroniza as respostas JSON da API.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
	"laststock/internal/pkg/logger"
)

// JSON escreve data com o status informado. data nil gera corpo vazio.
func JSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

// Raw escreve um corpo JSON já serializado, byte a byte.
func Raw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// Error traduz err para status e corpo padronizados. Erros 5xx são logados como erro.
func Error(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		log.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	} else {
		log.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category),
			map[string]interface{}{"path": r.URL.Path, "method": r.Method})
	}

	body := domain.ErrorResponse{Code: status, Category: category, Message: message}
	var qe *apperror.QuantityRuleError
	if errors.As(err, &qe) {
		JSON(w, status, struct {
			domain.ErrorResponse
			Requested int `json:"requested"`
			Current   int `json:"current"`
		}{body, qe.Requested, qe.Current})
		return
	}
	JSON(w, status, body)
}
