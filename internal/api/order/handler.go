package order

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"laststock/internal/api/request"
	"laststock/internal/domain"
	apperror "laststock/internal/errors"
	"laststock/internal/pkg/etag"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/respond"
	"laststock/internal/service/idempotencyservice"
	"laststock/internal/service/orderservice"
)

// OrderService define o contrato que o Handler espera da camada de Serviço.
type OrderService interface {
	Create(ctx context.Context, in domain.NewPurchaseOrder) (domain.PurchaseOrder, error)
	Confirm(ctx context.Context, req orderservice.ReviewRequest) (orderservice.ConfirmResult, error)
	Deny(ctx context.Context, req orderservice.ReviewRequest) (domain.PurchaseOrder, error)
	Get(ctx context.Context, id int64) (domain.PurchaseOrder, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.PurchaseOrder, error)
	UpdateFields(ctx context.Context, req orderservice.UpdateRequest) (domain.PurchaseOrder, error)
	BatchUpdateFields(ctx context.Context, items []orderservice.UpdateRequest) domain.BatchResult
}

// IdempotencyGuard é o subconjunto do guard usado pelos endpoints sensíveis a repetição.
type IdempotencyGuard interface {
	Execute(ctx context.Context, scope, key string, fn idempotencyservice.Handler) (idempotencyservice.Result, error)
}

// Handler agrupa os endpoints de pedidos de compra.
type Handler struct {
	Service OrderService
	Guard   IdempotencyGuard
	Codec   *etag.Codec
	Logger  logger.Logger
}

func NewHandler(svc OrderService, guard IdempotencyGuard, codec *etag.Codec, log logger.Logger) *Handler {
	return &Handler{Service: svc, Guard: guard, Codec: codec, Logger: log}
}

// RegisterRoutes monta as rotas sob /purchase-orders. reviewers protege confirm/deny.
func (h *Handler) RegisterRoutes(r chi.Router, reviewers func(http.Handler) http.Handler) {
	r.Route("/purchase-orders", func(r chi.Router) {
		r.Post("/", h.CreateOrderHandler)
		r.Get("/", h.ListOrdersHandler)
		r.Patch("/batch", h.BatchUpdateHandler)
		r.Get("/{id}", h.GetOrderHandler)
		r.Patch("/{id}", h.UpdateOrderHandler)
		r.With(reviewers).Post("/{id}/confirm", h.ConfirmOrderHandler)
		r.With(reviewers).Post("/{id}/deny", h.DenyOrderHandler)
	})
}

// ReviewRequest é o corpo de confirm/deny.
type ReviewRequest struct {
	AdminNotes string `json:"admin_notes,omitempty"`
}

// BatchUpdateRequest é o corpo de PATCH /v1/purchase-orders/batch. IfMatch por item é opcional.
type BatchUpdateRequest struct {
	Items []struct {
		ID int64 `json:"id"`
		domain.OrderFieldsUpdate
		IfMatch string `json:"if_match,omitempty"`
	} `json:"items"`
}

// CreateOrderHandler lida com POST /v1/purchase-orders.
// @Summary Cria um pedido de compra
// @Tags purchase-orders
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Chave de deduplicação do cliente"
// @Param order body domain.NewPurchaseOrder true "Pedido"
// @Success 201 {object} domain.PurchaseOrder
// @Failure 400 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Router /purchase-orders [post]
func (h *Handler) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := request.Actor(r)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	var body domain.NewPurchaseOrder
	if err := request.DecodeJSON(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	if body.RequestedBy == "" {
		body.RequestedBy = actor
	}

	h.idempotent(w, r, orderVersion, func(ctx context.Context) (int, []byte, error) {
		o, err := h.Service.Create(ctx, body)
		if err != nil {
			return 0, nil, err
		}
		return marshal(http.StatusCreated, o)
	})
}

// ConfirmOrderHandler lida com POST /v1/purchase-orders/{id}/confirm.
// @Summary Confirma o pedido e dá entrada no estoque
// @Tags purchase-orders
// @Accept json
// @Produce json
// @Param id path int true "ID do pedido"
// @Param If-Match header string true "ETag atual do pedido"
// @Param Idempotency-Key header string false "Chave de deduplicação do cliente"
// @Param review body ReviewRequest false "Observações do revisor"
// @Success 200 {object} orderservice.ConfirmResult
// @Failure 409 {object} domain.ErrorResponse
// @Failure 412 {object} domain.ErrorResponse
// @Failure 428 {object} domain.ErrorResponse
// @Router /purchase-orders/{id}/confirm [post]
func (h *Handler) ConfirmOrderHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.reviewRequest(w, r)
	if !ok {
		return
	}
	h.idempotent(w, r, confirmedVersion, func(ctx context.Context) (int, []byte, error) {
		res, err := h.Service.Confirm(ctx, req)
		if err != nil {
			return 0, nil, err
		}
		return marshal(http.StatusOK, res)
	})
}

// DenyOrderHandler lida com POST /v1/purchase-orders/{id}/deny.
// @Summary Nega o pedido
// @Tags purchase-orders
// @Accept json
// @Produce json
// @Param id path int true "ID do pedido"
// @Param If-Match header string true "ETag atual do pedido"
// @Param review body ReviewRequest false "Observações do revisor"
// @Success 200 {object} domain.PurchaseOrder
// @Failure 409 {object} domain.ErrorResponse
// @Failure 412 {object} domain.ErrorResponse
// @Failure 428 {object} domain.ErrorResponse
// @Router /purchase-orders/{id}/deny [post]
func (h *Handler) DenyOrderHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.reviewRequest(w, r)
	if !ok {
		return
	}
	o, err := h.Service.Deny(r.Context(), req)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	request.SetETag(w, h.Codec, o.Version)
	respond.JSON(w, http.StatusOK, o)
}

func (h *Handler) reviewRequest(w http.ResponseWriter, r *http.Request) (orderservice.ReviewRequest, bool) {
	actor, err := request.Actor(r)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return orderservice.ReviewRequest{}, false
	}
	id, err := request.PathInt64(r, "id")
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return orderservice.ReviewRequest{}, false
	}
	expected, err := request.IfMatch(r, h.Codec, true)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return orderservice.ReviewRequest{}, false
	}
	var body ReviewRequest
	if r.ContentLength != 0 {
		if err := request.DecodeJSON(r, &body); err != nil {
			respond.Error(w, r, h.Logger, err)
			return orderservice.ReviewRequest{}, false
		}
	}
	return orderservice.ReviewRequest{OrderID: id, Reviewer: actor, AdminNotes: body.AdminNotes, Expected: expected}, true
}

// UpdateOrderHandler lida com PATCH /v1/purchase-orders/{id}.
// @Summary Atualiza departamento e observações de um pedido pendente
// @Tags purchase-orders
// @Accept json
// @Produce json
// @Param id path int true "ID do pedido"
// @Param If-Match header string true "ETag atual do pedido"
// @Param fields body domain.OrderFieldsUpdate true "Campos"
// @Success 200 {object} domain.PurchaseOrder
// @Failure 412 {object} domain.ErrorResponse
// @Failure 428 {object} domain.ErrorResponse
// @Router /purchase-orders/{id} [patch]
func (h *Handler) UpdateOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := request.PathInt64(r, "id")
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	expected, err := request.IfMatch(r, h.Codec, true)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	var fields domain.OrderFieldsUpdate
	if err := request.DecodeJSON(r, &fields); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	o, err := h.Service.UpdateFields(r.Context(), orderservice.UpdateRequest{OrderID: id, Fields: fields, Expected: expected})
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	request.SetETag(w, h.Codec, o.Version)
	respond.JSON(w, http.StatusOK, o)
}

// BatchUpdateHandler lida com PATCH /v1/purchase-orders/batch.
// @Summary Atualiza vários pedidos, cada um independente
// @Tags purchase-orders
// @Accept json
// @Produce json
// @Param batch body BatchUpdateRequest true "Itens do lote"
// @Success 200 {object} domain.BatchResult
// @Success 207 {object} domain.BatchResult
// @Router /purchase-orders/batch [patch]
func (h *Handler) BatchUpdateHandler(w http.ResponseWriter, r *http.Request) {
	var body BatchUpdateRequest
	if err := request.DecodeJSON(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	items := make([]orderservice.UpdateRequest, 0, len(body.Items))
	for _, it := range body.Items {
		expected, err := request.ParseTag(it.IfMatch, h.Codec, false)
		if err != nil {
			respond.Error(w, r, h.Logger, apperror.NewValidationError("if_match malformado no pedido "+strconv.FormatInt(it.ID, 10)+"."))
			return
		}
		items = append(items, orderservice.UpdateRequest{OrderID: it.ID, Fields: it.OrderFieldsUpdate, Expected: expected})
	}

	res := h.Service.BatchUpdateFields(r.Context(), items)
	status := http.StatusOK
	if res.Failed > 0 {
		status = http.StatusMultiStatus
	}
	respond.JSON(w, status, res)
}

// GetOrderHandler lida com GET /v1/purchase-orders/{id}.
// @Summary Busca um pedido com seus itens
// @Tags purchase-orders
// @Produce json
// @Param id path int true "ID do pedido"
// @Success 200 {object} domain.PurchaseOrder
// @Failure 404 {object} domain.ErrorResponse
// @Router /purchase-orders/{id} [get]
func (h *Handler) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := request.PathInt64(r, "id")
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	o, err := h.Service.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	request.SetETag(w, h.Codec, o.Version)
	respond.JSON(w, http.StatusOK, o)
}

// ListOrdersHandler lida com GET /v1/purchase-orders.
// @Summary Lista pedidos de compra
// @Tags purchase-orders
// @Produce json
// @Param status query string false "PENDING, CONFIRMED ou DENIED"
// @Param location_id query int false "Local"
// @Param limit query int false "Máximo de itens"
// @Param offset query int false "Deslocamento"
// @Success 200 {array} domain.PurchaseOrder
// @Router /purchase-orders [get]
func (h *Handler) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	var f domain.OrderFilter
	var err error
	if raw := r.URL.Query().Get("status"); raw != "" {
		if f.Status, err = domain.ParseOrderStatus(raw); err != nil {
			respond.Error(w, r, h.Logger, err)
			return
		}
	}
	if f.LocationID, err = request.QueryInt64(r, "location_id"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	if f.Limit, err = request.QueryInt(r, "limit"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	if f.Offset, err = request.QueryInt(r, "offset"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	orders, err := h.Service.List(r.Context(), f)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, orders)
}

// idempotent executa fn sob o guard e escreve a resposta, original ou repetida, byte a byte.
// A chave do cliente vale só para o método, a rota e o operador da requisição.
// O ETag sai do corpo entregue, então a repetição carrega o mesmo ETag da resposta original.
func (h *Handler) idempotent(w http.ResponseWriter, r *http.Request, version func([]byte) (int, bool), fn idempotencyservice.Handler) {
	actor, err := request.Actor(r)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	scope := r.Method + " " + r.URL.Path + " " + actor

	res, err := h.Guard.Execute(r.Context(), scope, r.Header.Get(request.HeaderIdempotencyKey), fn)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	if v, ok := version(res.Payload); ok {
		request.SetETag(w, h.Codec, v)
	}
	if res.Replayed {
		w.Header().Set(request.HeaderReplayed, "true")
	}
	respond.Raw(w, res.StatusCode, res.Payload)
}

// orderVersion lê a versão de um domain.PurchaseOrder serializado.
func orderVersion(payload []byte) (int, bool) {
	var o struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(payload, &o); err != nil || o.Version == 0 {
		return 0, false
	}
	return o.Version, true
}

// confirmedVersion lê a versão do pedido dentro de um orderservice.ConfirmResult serializado.
func confirmedVersion(payload []byte) (int, bool) {
	var res struct {
		Order json.RawMessage `json:"order"`
	}
	if err := json.Unmarshal(payload, &res); err != nil {
		return 0, false
	}
	return orderVersion(res.Order)
}

func marshal(status int, data interface{}) (int, []byte, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return 0, nil, apperror.NewInternalError("Falha ao codificar resposta.", err)
	}
	return status, body, nil
}
