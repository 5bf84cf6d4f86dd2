package memstore

import (
	"context"
	"strconv"
	"sync"

	"laststock/internal/domain"
)

// Catalog é um domain.CatalogLookup em memória, preenchido por Add*.
type Catalog struct {
	mu        sync.RWMutex
	locations map[int64]string
	lasts     map[int64]string
	sizes     map[int64]string
}

func NewCatalog() *Catalog {
	return &Catalog{
		locations: make(map[int64]string),
		lasts:     make(map[int64]string),
		sizes:     make(map[int64]string),
	}
}

func (c *Catalog) AddLocation(l domain.Location) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locations[l.ID] = l.Name
	return c
}

func (c *Catalog) AddLast(l domain.Last) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lasts[l.ID] = l.Code
	return c
}

func (c *Catalog) AddSize(s domain.Size) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sizes[s.ID] = s.Label
	return c
}

// SeedDemo preenche um catálogo pequeno para execução local.
func (c *Catalog) SeedDemo() *Catalog {
	c.AddLocation(domain.Location{ID: 1, Name: "Depósito Central"})
	c.AddLocation(domain.Location{ID: 2, Name: "Linha de Montagem"})
	c.AddLast(domain.Last{ID: 1, Code: "FRM-100", ModelName: "Social Bico Fino"})
	c.AddLast(domain.Last{ID: 2, Code: "FRM-200", ModelName: "Tênis Casual"})
	for i := int64(0); i < 11; i++ {
		c.AddSize(domain.Size{ID: i + 1, Label: strconv.FormatInt(34+i, 10)})
	}
	return c
}

func (c *Catalog) has(m map[int64]string, id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := m[id]
	return ok
}

func (c *Catalog) LocationExists(_ context.Context, id int64) (bool, error) {
	return c.has(c.locations, id), nil
}

func (c *Catalog) LastExists(_ context.Context, id int64) (bool, error) {
	return c.has(c.lasts, id), nil
}

func (c *Catalog) SizeExists(_ context.Context, id int64) (bool, error) {
	return c.has(c.sizes, id), nil
}

func (c *Catalog) DisplayNames(_ context.Context, key domain.StockKey) (domain.DisplayNames, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name := func(m map[int64]string, id int64) string {
		if n, ok := m[id]; ok {
			return n
		}
		return strconv.FormatInt(id, 10)
	}
	return domain.DisplayNames{
		ItemCode:     name(c.lasts, key.ItemID),
		SizeLabel:    name(c.sizes, key.SizeID),
		LocationName: name(c.locations, key.LocationID),
	}, nil
}
