package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "laststock/docs" // registra o documento OpenAPI no swag
	"laststock/internal/api/movement"
	"laststock/internal/api/order"
	"laststock/internal/api/stock"
	"laststock/internal/api/user"
	"laststock/internal/domain"
	"laststock/internal/pkg/cache"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/middleware"
)

// Deps reúne os handlers e a infraestrutura que o roteador monta.
type Deps struct {
	Stock     *stock.Handler
	Orders    *order.Handler
	Movements *movement.Handler
	Users     *user.Handler

	Tokens     middleware.TokenService
	Cache      cache.Client
	RateLimit  int
	RatePeriod time.Duration
	Logger     logger.Logger
}

// NewRouter configura e retorna o roteador HTTP principal.
// Rotas de operador são públicas; o restante de /v1 exige JWT, e a revisão de pedidos exige admin.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	if d.Cache != nil && d.RateLimit > 0 {
		r.Use(middleware.RateLimiter(d.Cache, d.RateLimit, d.RatePeriod, d.Logger))
	}

	r.Get("/ping", PingHandler)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/v1", func(r chi.Router) {
		d.Users.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(d.Tokens, d.Logger))
			d.Stock.RegisterRoutes(r)
			d.Movements.RegisterRoutes(r)
			d.Orders.RegisterRoutes(r, middleware.PermissionMiddleware(d.Logger, domain.RoleAdmin))
		})
	})

	return r
}

// PingHandler é o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
