package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config armazena todas as configurações do serviço de estoque de formas.
// Nenhum componente do núcleo lê variáveis de ambiente diretamente: tudo passa por aqui.
type Config struct {
	// Geral
	Port        string
	Environment string
	LogLevel    string
	ServiceName string

	// Armazenamento: "postgres" (padrão) ou "memory" (desenvolvimento local)
	StorageDriver string

	// Banco de Dados (PostgreSQL)
	DatabaseURL string
	DBDriver    string        // "postgres" (lib/pq) ou "pgx" (jackc/pgx stdlib)
	DBTimeout   time.Duration // Timeout por operação de repositório

	// Cache (Redis)
	RedisAddr       string
	CacheTimeout    time.Duration
	CatalogCacheTTL time.Duration

	// Segurança (JWT e ETag)
	JWTSecretKey string
	TokenExpiry  time.Duration
	ETagSecret   string

	// Operador que recebe o papel admin ao se registrar (revisa pedidos)
	BootstrapAdminEmail string

	// Idempotência
	IdempotencyTTL             time.Duration
	IdempotencyCleanupInterval time.Duration

	// Estoque
	LowStockThreshold int

	// Rate Limiting
	RateLimitMaxRequests int
	RateLimitPeriod      time.Duration

	// Outbox / Kafka (opcional: sem broker o relay fica desligado)
	KafkaBroker         string
	KafkaTopic          string
	OutboxRelayInterval time.Duration
	OutboxBatchSize     int

	// Observabilidade (opcional: sem endpoint o tracer é no-op)
	OtelEndpoint string
}

// LoadConfig carrega as configurações a partir das variáveis de ambiente.
func LoadConfig() *Config {
	storage := getEnv("STORAGE_DRIVER", "postgres")

	cfg := &Config{
		// 1. Geral
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ServiceName: getEnv("SERVICE_NAME", "laststock"),

		StorageDriver: storage,

		// 2. Banco de Dados (PostgreSQL)
		DBDriver:  getEnv("DB_DRIVER", "postgres"),
		DBTimeout: getDurationEnv("DB_TIMEOUT_SEC", 5) * time.Second, // 5s padrão

		// 3. Cache (Redis)
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		CacheTimeout:    getDurationEnv("CACHE_TIMEOUT_SEC", 10) * time.Second,
		CatalogCacheTTL: getDurationEnv("CATALOG_CACHE_TTL_MIN", 5) * time.Minute,

		// 4. Segurança
		JWTSecretKey: mustGetEnv("JWT_SECRET_KEY"),
		TokenExpiry:  getDurationEnv("JWT_EXPIRY_MIN", 60) * time.Minute,
		ETagSecret:   mustGetEnv("ETAG_SECRET"),

		BootstrapAdminEmail: getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),

		// 5. Idempotência (24h de retenção, limpeza a cada hora)
		IdempotencyTTL:             getDurationEnv("IDEMPOTENCY_TTL_HOURS", 24) * time.Hour,
		IdempotencyCleanupInterval: getDurationEnv("IDEMPOTENCY_CLEANUP_INTERVAL_MIN", 60) * time.Minute,

		// 6. Estoque
		LowStockThreshold: getIntEnv("LOW_STOCK_THRESHOLD", 5),

		// 7. Rate Limiting
		RateLimitMaxRequests: getIntEnv("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitPeriod:      getDurationEnv("RATE_LIMIT_PERIOD_MIN", 1) * time.Minute,

		// 8. Outbox
		KafkaBroker:         getEnv("KAFKA_BROKER", ""),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "laststock.events"),
		OutboxRelayInterval: getDurationEnv("OUTBOX_RELAY_INTERVAL_SEC", 5) * time.Second,
		OutboxBatchSize:     getIntEnv("OUTBOX_BATCH_SIZE", 100),

		// 9. Observabilidade
		OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	// O DSN só é obrigatório quando o armazenamento é o PostgreSQL.
	if storage == "postgres" {
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	} else {
		cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	}

	return cfg
}

// Funções Helpers (Auxiliares)

// getEnv lê a variável de ambiente ou retorna um valor padrão.
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// mustGetEnv lê a variável de ambiente, fatal se não estiver presente.
func mustGetEnv(key string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Fatalf("❌ Erro de Configuração: A variável de ambiente %s deve ser definida.", key)
	return ""
}

// getDurationEnv lê uma variável de ambiente numérica e retorna-a como time.Duration.
func getDurationEnv(key string, defaultValue int) time.Duration {
	return time.Duration(getIntEnv(key, defaultValue))
}

// getIntEnv lê uma variável de ambiente numérica e retorna-a como int.
func getIntEnv(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("⚠️ Aviso: Valor de %s ('%s') não é um número inteiro válido. Usando padrão (%d).", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
