package domain

import "context"

// Location é um local de armazenamento físico (prateleira, depósito, fábrica).
type Location struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Last é uma forma de calçado do catálogo (o "item" do estoque).
type Last struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	ModelName string `json:"model_name,omitempty"`
}

// Size é a numeração de uma forma.
type Size struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// DisplayNames enriquece respostas com nomes legíveis; nunca é usado para validar invariantes.
type DisplayNames struct {
	ItemCode     string `json:"item_code,omitempty"`
	SizeLabel    string `json:"size_label,omitempty"`
	LocationName string `json:"location_name,omitempty"`
}

// CatalogLookup é o contrato consumido do catálogo (locais, formas e tamanhos).
// O núcleo só verifica existência; o cadastro pertence a outro módulo.
type CatalogLookup interface {
	LocationExists(ctx context.Context, id int64) (bool, error)
	LastExists(ctx context.Context, id int64) (bool, error)
	SizeExists(ctx context.Context, id int64) (bool, error)
	DisplayNames(ctx context.Context, key StockKey) (DisplayNames, error)
}
