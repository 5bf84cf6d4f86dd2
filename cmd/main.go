package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	// Infraestrutura e utilitários
	"laststock/config"
	"laststock/internal/domain"
	"laststock/internal/pkg/cache"
	"laststock/internal/pkg/database"
	"laststock/internal/pkg/etag"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/messaging"
	"laststock/internal/pkg/telemetry"
	"laststock/internal/pkg/token"

	// Camadas para Injeção de Dependências
	"laststock/internal/api/movement"
	"laststock/internal/api/order"
	"laststock/internal/api/router"
	"laststock/internal/api/stock"
	"laststock/internal/api/user"
	"laststock/internal/repository/catalogrepo"
	"laststock/internal/repository/idempotencyrepo"
	"laststock/internal/repository/memstore"
	"laststock/internal/repository/pgstore"
	"laststock/internal/repository/userrepo"
	"laststock/internal/service/idempotencyservice"
	"laststock/internal/service/movementservice"
	"laststock/internal/service/orderservice"
	"laststock/internal/service/outboxrelay"
	"laststock/internal/service/stockservice"
	"laststock/internal/service/userservice"
)

const serviceVersion = "1.0.0"

// storage agrupa as implementações escolhidas por STORAGE_DRIVER.
type storage struct {
	store       domain.TransactionScope
	catalog     domain.CatalogLookup
	idempotency domain.IdempotencyRepository
	users       domain.UserRepository
	cache       cache.Client
	close       func() error
}

func main() {
	// 1. Configuração e Inicialização
	log.Println("⚡ Inicializando serviço LastStock...")
	// .env é opcional: em contêiner as variáveis vêm do ambiente.
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ Aviso: Arquivo .env não encontrado ou erro de leitura. Carregando configs apenas do ambiente do sistema.")
	}

	cfg := config.LoadConfig()
	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	log.Info("Configurações carregadas.", map[string]interface{}{"storage": cfg.StorageDriver, "env": cfg.Environment})

	// Contexto das rotinas de fundo; cancelado no desligamento.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// 2. Observabilidade
	tp, shutdownTracing, err := telemetry.SetupTracing(bgCtx, cfg.ServiceName, serviceVersion, cfg.OtelEndpoint)
	if err != nil {
		log.Fatal("Falha ao configurar o tracing.", err)
	}

	// 3. Armazenamento
	st, err := openStorage(cfg, log)
	if err != nil {
		log.Fatal("Falha ao abrir o armazenamento.", err)
	}
	defer st.close()

	// 4. INJEÇÃO DE DEPENDÊNCIAS
	// Ordem: Repository -> Service -> Handler
	codec, err := etag.NewCodec(cfg.ETagSecret)
	if err != nil {
		log.Fatal("ETAG_SECRET inválido.", err)
	}

	recorder := movementservice.NewRecorder(domain.UTCNow, log)
	stockSvc := stockservice.NewService(st.store, st.catalog, recorder, log,
		stockservice.WithTracer(tp.Tracer("laststock/stock")),
		stockservice.WithLowStockThreshold(cfg.LowStockThreshold),
	)
	orderSvc := orderservice.NewService(st.store, st.catalog, recorder, log,
		orderservice.WithTracer(tp.Tracer("laststock/orders")),
	)
	movementSvc := movementservice.NewService(st.store, log, tp.Tracer("laststock/movements"))
	guard := idempotencyservice.NewGuard(st.idempotency, cfg.IdempotencyTTL, log)
	log.Debug("Serviços de estoque, pedidos e movimentações inicializados.", nil)

	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
	userSvc := userservice.NewService(st.users, tokenSvc, cfg.BootstrapAdminEmail, log)
	log.Debug("Serviço de Usuário inicializado.", nil)

	r := router.NewRouter(router.Deps{
		Stock:      stock.NewHandler(stockSvc, codec, log),
		Orders:     order.NewHandler(orderSvc, guard, codec, log),
		Movements:  movement.NewHandler(movementSvc, log),
		Users:      user.NewHandler(userSvc, log),
		Tokens:     tokenSvc,
		Cache:      st.cache,
		RateLimit:  cfg.RateLimitMaxRequests,
		RatePeriod: cfg.RateLimitPeriod,
		Logger:     log,
	})

	// 5. Rotinas de fundo: limpeza de idempotência e relay da outbox
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		idempotencyservice.NewCleaner(guard, cfg.IdempotencyCleanupInterval, log).Run(bgCtx)
	}()

	if cfg.KafkaBroker != "" {
		publisher, err := messaging.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic, cfg.ServiceName, tp)
		if err != nil {
			log.Fatal("Falha ao criar o publisher Kafka.", err)
		}
		relay := outboxrelay.NewRelay(st.store, publisher, cfg.OutboxRelayInterval, cfg.OutboxBatchSize, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Run(bgCtx)
		}()
	} else {
		log.Warn("KAFKA_BROKER não definido; fatos da outbox ficam pendentes.", nil)
	}

	// 6. Servidor HTTP e Graceful Shutdown
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Servidor LastStock ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Servidor falhou.", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Desligamento do servidor forçado.", err)
	}

	stopBackground()
	wg.Wait()

	if err := shutdownTracing(ctx); err != nil {
		log.Error("Falha ao encerrar o tracing.", err)
	}

	log.Info("Servidor encerrado com sucesso.", nil)
}

// openStorage monta os repositórios do driver configurado.
func openStorage(cfg *config.Config, log logger.Logger) (storage, error) {
	if cfg.StorageDriver == "memory" {
		log.Warn("Armazenamento em memória: dados se perdem ao reiniciar.", nil)
		return storage{
			store:       memstore.NewStore(),
			catalog:     memstore.NewCatalog().SeedDemo(),
			idempotency: memstore.NewIdempotencyRepository(),
			users:       memstore.NewUserRepository(),
			cache:       cache.NewMemoryClient(),
			close:       func() error { return nil },
		}, nil
	}

	db, err := database.NewPostgresDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return storage{}, err
	}
	log.Info("Conexão PostgreSQL estabelecida.", map[string]interface{}{"driver": cfg.DBDriver})

	cacheClient := cache.NewRedisClient(cfg.RedisAddr)
	log.Info("Cliente Redis configurado.", map[string]interface{}{"addr": cfg.RedisAddr})

	return storage{
		store:       pgstore.NewStore(db, cfg.DBTimeout, log),
		catalog:     catalogrepo.NewCatalogRepository(db, cacheClient, cfg.DBTimeout, cfg.CatalogCacheTTL, log),
		idempotency: idempotencyrepo.NewIdempotencyRepository(db, cacheClient, cfg.DBTimeout, cfg.CacheTimeout, log),
		users:       userrepo.NewUserRepository(db, cfg.DBTimeout, log),
		cache:       cacheClient,
		close:       db.Close,
	}, nil
}
