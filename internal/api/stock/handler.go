package stock

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"laststock/internal/api/request"
	"laststock/internal/domain"
	"laststock/internal/pkg/etag"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/respond"
	"laststock/internal/service/stockservice"
)

// StockService define o contrato que o Handler espera da camada de Serviço.
type StockService interface {
	Adjust(ctx context.Context, req stockservice.AdjustRequest) (stockservice.AdjustResult, error)
	BatchAdjust(ctx context.Context, items []stockservice.BatchAdjustItem) domain.BatchResult
	Transfer(ctx context.Context, req stockservice.TransferRequest) (stockservice.TransferResult, error)
	Reserve(ctx context.Context, req stockservice.ReserveRequest) (domain.StockPosition, error)
	Release(ctx context.Context, req stockservice.ReserveRequest) (domain.StockPosition, error)
	Get(ctx context.Context, key domain.StockKey) (stockservice.PositionView, error)
	List(ctx context.Context, filter domain.StockFilter) ([]stockservice.PositionView, error)
	LowStock(ctx context.Context, threshold int) ([]stockservice.LowStockEntry, error)
}

// Handler agrupa os endpoints de estoque.
type Handler struct {
	Service StockService
	Codec   *etag.Codec
	Logger  logger.Logger
}

func NewHandler(svc StockService, codec *etag.Codec, log logger.Logger) *Handler {
	return &Handler{Service: svc, Codec: codec, Logger: log}
}

// RegisterRoutes monta as rotas sob /stock.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stock", func(r chi.Router) {
		r.Get("/", h.ListStockHandler)
		r.Get("/low", h.LowStockHandler)
		r.Get("/{itemId}/{sizeId}/{locationId}", h.GetStockHandler)
		r.Post("/adjust", h.AdjustStockHandler)
		r.Post("/adjust/batch", h.BatchAdjustHandler)
		r.Post("/transfer", h.TransferHandler)
		r.Post("/reserve", h.ReserveHandler)
		r.Post("/release", h.ReleaseHandler)
	})
}

// AdjustRequest é o corpo de POST /v1/stock/adjust.
type AdjustRequest struct {
	ItemID     int64  `json:"item_id"`
	SizeID     int64  `json:"size_id"`
	LocationID int64  `json:"location_id"`
	Type       string `json:"type" example:"ADD"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason,omitempty"`
}

func (a AdjustRequest) key() domain.StockKey {
	return domain.StockKey{ItemID: a.ItemID, SizeID: a.SizeID, LocationID: a.LocationID}
}

// BatchAdjustRequest é o corpo de POST /v1/stock/adjust/batch. IfMatch por item é opcional.
type BatchAdjustRequest struct {
	Items []struct {
		Ref string `json:"ref,omitempty"`
		AdjustRequest
		IfMatch string `json:"if_match,omitempty"`
	} `json:"items"`
}

// TransferRequest é o corpo de POST /v1/stock/transfer.
type TransferRequest struct {
	ItemID         int64  `json:"item_id"`
	SizeID         int64  `json:"size_id"`
	FromLocationID int64  `json:"from_location_id"`
	ToLocationID   int64  `json:"to_location_id"`
	Quantity       int    `json:"quantity"`
	Reason         string `json:"reason,omitempty"`
	Reference      string `json:"reference_number,omitempty"`
}

// ReservationRequest é o corpo de reserve/release.
type ReservationRequest struct {
	ItemID     int64 `json:"item_id"`
	SizeID     int64 `json:"size_id"`
	LocationID int64 `json:"location_id"`
	Quantity   int   `json:"quantity"`
}

// AdjustStockHandler lida com POST /v1/stock/adjust.
// @Summary Ajusta o estoque de uma posição
// @Tags stock
// @Accept json
// @Produce json
// @Param If-Match header string false "ETag atual da posição"
// @Param adjustment body AdjustRequest true "Ajuste (ADD, REMOVE, DAMAGE, REPAIR)"
// @Success 200 {object} stockservice.AdjustResult
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Failure 412 {object} domain.ErrorResponse
// @Failure 422 {object} domain.ErrorResponse
// @Router /stock/adjust [post]
func (h *Handler) AdjustStockHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := request.Actor(r)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	var body AdjustRequest
	if err := request.DecodeJSON(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	typ, err := domain.ParseAdjustmentType(body.Type)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	expected, err := request.IfMatch(r, h.Codec, false)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	res, err := h.Service.Adjust(r.Context(), stockservice.AdjustRequest{
		Key:      body.key(),
		Type:     typ,
		Quantity: body.Quantity,
		Reason:   body.Reason,
		Actor:    actor,
		Expected: expected,
	})
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	request.SetETag(w, h.Codec, res.Position.Version)
	respond.JSON(w, http.StatusOK, res)
}

// BatchAdjustHandler lida com POST /v1/stock/adjust/batch.
// Responde 200 quando todos os itens passam e 207 quando há falhas.
// @Summary Ajusta várias posições, cada uma independente
// @Tags stock
// @Accept json
// @Produce json
// @Param batch body BatchAdjustRequest true "Itens do lote"
// @Success 200 {object} domain.BatchResult
// @Success 207 {object} domain.BatchResult
// @Router /stock/adjust/batch [post]
func (h *Handler) BatchAdjustHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := request.Actor(r)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	var body BatchAdjustRequest
	if err := request.DecodeJSON(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	items := make([]stockservice.BatchAdjustItem, 0, len(body.Items))
	for _, it := range body.Items {
		item := stockservice.BatchAdjustItem{
			Ref: it.Ref,
			AdjustRequest: stockservice.AdjustRequest{
				Key:      it.key(),
				Quantity: it.Quantity,
				Reason:   it.Reason,
				Actor:    actor,
			},
		}
		// Tipo ou tag inválidos viram falha do próprio item, sem abortar o lote.
		if item.Type, item.Invalid = domain.ParseAdjustmentType(it.Type); item.Invalid == nil {
			item.Expected, item.Invalid = request.ParseTag(it.IfMatch, h.Codec, false)
		}
		items = append(items, item)
	}

	res := h.Service.BatchAdjust(r.Context(), items)
	status := http.StatusOK
	if res.Failed > 0 {
		status = http.StatusMultiStatus
	}
	respond.JSON(w, status, res)
}

// TransferHandler lida com POST /v1/stock/transfer.
// @Summary Transfere estoque bom entre locais
// @Tags stock
// @Accept json
// @Produce json
// @Param transfer body TransferRequest true "Transferência"
// @Success 200 {object} stockservice.TransferResult
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Failure 422 {object} domain.ErrorResponse
// @Router /stock/transfer [post]
func (h *Handler) TransferHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := request.Actor(r)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	var body TransferRequest
	if err := request.DecodeJSON(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	res, err := h.Service.Transfer(r.Context(), stockservice.TransferRequest{
		ItemID:         body.ItemID,
		SizeID:         body.SizeID,
		FromLocationID: body.FromLocationID,
		ToLocationID:   body.ToLocationID,
		Quantity:       body.Quantity,
		Reason:         body.Reason,
		Reference:      body.Reference,
		Actor:          actor,
	})
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

// ReserveHandler lida com POST /v1/stock/reserve.
// @Summary Reserva quantidade disponível
// @Tags stock
// @Accept json
// @Produce json
// @Param If-Match header string false "ETag atual da posição"
// @Param reservation body ReservationRequest true "Reserva"
// @Success 200 {object} domain.StockPosition
// @Router /stock/reserve [post]
func (h *Handler) ReserveHandler(w http.ResponseWriter, r *http.Request) {
	h.reservation(w, r, h.Service.Reserve)
}

// ReleaseHandler lida com POST /v1/stock/release.
// @Summary Libera quantidade reservada
// @Tags stock
// @Accept json
// @Produce json
// @Param If-Match header string false "ETag atual da posição"
// @Param reservation body ReservationRequest true "Liberação"
// @Success 200 {object} domain.StockPosition
// @Router /stock/release [post]
func (h *Handler) ReleaseHandler(w http.ResponseWriter, r *http.Request) {
	h.reservation(w, r, h.Service.Release)
}

func (h *Handler) reservation(w http.ResponseWriter, r *http.Request, op func(context.Context, stockservice.ReserveRequest) (domain.StockPosition, error)) {
	actor, err := request.Actor(r)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	var body ReservationRequest
	if err := request.DecodeJSON(r, &body); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	expected, err := request.IfMatch(r, h.Codec, false)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	p, err := op(r.Context(), stockservice.ReserveRequest{
		Key:      domain.StockKey{ItemID: body.ItemID, SizeID: body.SizeID, LocationID: body.LocationID},
		Quantity: body.Quantity,
		Actor:    actor,
		Expected: expected,
	})
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	request.SetETag(w, h.Codec, p.Version)
	respond.JSON(w, http.StatusOK, p)
}

// GetStockHandler lida com GET /v1/stock/{itemId}/{sizeId}/{locationId}.
// @Summary Busca uma posição de estoque
// @Tags stock
// @Produce json
// @Param itemId path int true "Forma"
// @Param sizeId path int true "Tamanho"
// @Param locationId path int true "Local"
// @Success 200 {object} stockservice.PositionView
// @Failure 404 {object} domain.ErrorResponse
// @Router /stock/{itemId}/{sizeId}/{locationId} [get]
func (h *Handler) GetStockHandler(w http.ResponseWriter, r *http.Request) {
	var key domain.StockKey
	var err error
	if key.ItemID, err = request.PathInt64(r, "itemId"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	if key.SizeID, err = request.PathInt64(r, "sizeId"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	if key.LocationID, err = request.PathInt64(r, "locationId"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	view, err := h.Service.Get(r.Context(), key)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	request.SetETag(w, h.Codec, view.Position.Version)
	respond.JSON(w, http.StatusOK, view)
}

// ListStockHandler lida com GET /v1/stock.
// @Summary Lista posições de estoque
// @Tags stock
// @Produce json
// @Param item_id query int false "Forma"
// @Param size_id query int false "Tamanho"
// @Param location_id query int false "Local"
// @Param limit query int false "Máximo de itens"
// @Param offset query int false "Deslocamento"
// @Success 200 {array} stockservice.PositionView
// @Router /stock [get]
func (h *Handler) ListStockHandler(w http.ResponseWriter, r *http.Request) {
	var f domain.StockFilter
	var err error
	for _, p := range []struct {
		name string
		dst  *int64
	}{{"item_id", &f.ItemID}, {"size_id", &f.SizeID}, {"location_id", &f.LocationID}} {
		if *p.dst, err = request.QueryInt64(r, p.name); err != nil {
			respond.Error(w, r, h.Logger, err)
			return
		}
	}
	if f.Limit, err = request.QueryInt(r, "limit"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	if f.Offset, err = request.QueryInt(r, "offset"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	views, err := h.Service.List(r.Context(), f)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, views)
}

// LowStockHandler lida com GET /v1/stock/low.
// @Summary Lista posições abaixo do limite com sugestão de reposição
// @Tags stock
// @Produce json
// @Param threshold query int false "Limite; padrão da configuração"
// @Success 200 {array} stockservice.LowStockEntry
// @Router /stock/low [get]
func (h *Handler) LowStockHandler(w http.ResponseWriter, r *http.Request) {
	threshold, err := request.QueryInt(r, "threshold")
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	entries, err := h.Service.LowStock(r.Context(), threshold)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, entries)
}
