package movement

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"laststock/internal/api/request"
	"laststock/internal/domain"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/respond"
)

// MovementService é a leitura do livro de movimentações.
type MovementService interface {
	List(ctx context.Context, filter domain.MovementFilter) (domain.MovementPage, error)
}

type Handler struct {
	Service MovementService
	Logger  logger.Logger
}

func NewHandler(svc MovementService, log logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/movements", h.ListMovementsHandler)
}

// ListMovementsHandler lida com GET /v1/movements.
// @Summary Lê o livro de movimentações, do mais novo ao mais antigo
// @Tags movements
// @Produce json
// @Param item_id query int false "Forma"
// @Param type query string false "PURCHASE, ADJUST, TRANSFER, DAMAGE, REPAIR, SALE ou RETURN"
// @Param from query string false "Início (RFC 3339)"
// @Param to query string false "Fim exclusivo (RFC 3339)"
// @Param cursor query int false "next_cursor da página anterior"
// @Param limit query int false "Máximo de itens"
// @Success 200 {object} domain.MovementPage
// @Router /movements [get]
func (h *Handler) ListMovementsHandler(w http.ResponseWriter, r *http.Request) {
	var f domain.MovementFilter
	var err error
	if raw := r.URL.Query().Get("type"); raw != "" {
		if f.Type, err = domain.ParseMovementType(raw); err != nil {
			respond.Error(w, r, h.Logger, err)
			return
		}
	}
	if f.ItemID, err = request.QueryInt64(r, "item_id"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	if f.Cursor, err = request.QueryInt64(r, "cursor"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	if f.Limit, err = request.QueryInt(r, "limit"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	if f.From, err = request.QueryTime(r, "from"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	if f.To, err = request.QueryTime(r, "to"); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}

	page, err := h.Service.List(r.Context(), f)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, page)
}
