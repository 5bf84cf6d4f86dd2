package catalogrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"laststock/internal/domain"
	"laststock/internal/errors"
	"laststock/internal/pkg/cache"
	"laststock/internal/pkg/database"
	"laststock/internal/pkg/logger"
)

// Chaves de cache dos nomes do catálogo; o valor guardado é o nome exibido.
const (
	locationCacheKey = "catalog:location:%d"
	lastCacheKey     = "catalog:last:%d"
	sizeCacheKey     = "catalog:size:%d"
)

// CatalogRepository implementa domain.CatalogLookup lendo as tabelas do catálogo.
// Usa Cache-Aside no Redis: só entidades existentes são cacheadas.
type CatalogRepository struct {
	DB        database.Querier
	Cache     cache.Client
	DBTimeout time.Duration
	CacheTTL  time.Duration
	logger    logger.Logger
}

// NewCatalogRepository cria o repositório. cacheClient pode ser nil.
func NewCatalogRepository(db database.Querier, cacheClient cache.Client, dbTimeout, cacheTTL time.Duration, logger logger.Logger) *CatalogRepository {
	return &CatalogRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		CacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// lookupName devolve o nome da entidade e se ela existe.
func (r *CatalogRepository) lookupName(ctx context.Context, keyFmt, query string, id int64) (string, bool, error) {
	key := fmt.Sprintf(keyFmt, id)

	if r.Cache != nil {
		name, err := r.Cache.Get(ctx, key)
		if err == nil {
			return name, true, nil
		}
		if err != cache.ErrCacheMiss {
			r.logger.Warn("Falha ao ler catálogo do cache.", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var name string
	err := r.DB.QueryRowContext(ctxTimeout, query, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		r.logger.Error("Falha ao consultar catálogo.", err)
		return "", false, errors.NewDBError("Falha ao consultar catálogo", err)
	}

	if r.Cache != nil {
		if err := r.Cache.Set(ctx, key, name, r.CacheTTL); err != nil {
			r.logger.Warn("Falha ao gravar catálogo no cache.", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return name, true, nil
}

func (r *CatalogRepository) locationName(ctx context.Context, id int64) (string, bool, error) {
	return r.lookupName(ctx, locationCacheKey, `SELECT name FROM locations WHERE id = $1`, id)
}

func (r *CatalogRepository) lastCode(ctx context.Context, id int64) (string, bool, error) {
	return r.lookupName(ctx, lastCacheKey, `SELECT code FROM lasts WHERE id = $1`, id)
}

func (r *CatalogRepository) sizeLabel(ctx context.Context, id int64) (string, bool, error) {
	return r.lookupName(ctx, sizeCacheKey, `SELECT label FROM sizes WHERE id = $1`, id)
}

func (r *CatalogRepository) LocationExists(ctx context.Context, id int64) (bool, error) {
	_, ok, err := r.locationName(ctx, id)
	return ok, err
}

func (r *CatalogRepository) LastExists(ctx context.Context, id int64) (bool, error) {
	_, ok, err := r.lastCode(ctx, id)
	return ok, err
}

func (r *CatalogRepository) SizeExists(ctx context.Context, id int64) (bool, error) {
	_, ok, err := r.sizeLabel(ctx, id)
	return ok, err
}

// DisplayNames devolve os nomes legíveis; ids inexistentes viram o próprio número.
func (r *CatalogRepository) DisplayNames(ctx context.Context, key domain.StockKey) (domain.DisplayNames, error) {
	var names domain.DisplayNames

	code, ok, err := r.lastCode(ctx, key.ItemID)
	if err != nil {
		return names, err
	}
	names.ItemCode = orID(code, ok, key.ItemID)

	label, ok, err := r.sizeLabel(ctx, key.SizeID)
	if err != nil {
		return names, err
	}
	names.SizeLabel = orID(label, ok, key.SizeID)

	loc, ok, err := r.locationName(ctx, key.LocationID)
	if err != nil {
		return names, err
	}
	names.LocationName = orID(loc, ok, key.LocationID)

	return names, nil
}

func orID(name string, ok bool, id int64) string {
	if ok {
		return name
	}
	return strconv.FormatInt(id, 10)
}
