package domain

import (
	"context"
	"time"
)

// Entity reúne os campos escalares comuns a todos os agregados mutáveis.
// Version começa em 1 na primeira gravação e é incrementada a cada mutação (OCC).
// Uma entidade com Version 0 ainda não foi persistida.
type Entity struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// IsNew informa se a entidade ainda não foi gravada.
func (e Entity) IsNew() bool { return e.ID == 0 }

// touch marca uma mutação: atualiza o timestamp e incrementa a versão.
func (e *Entity) touch(now time.Time) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	e.Version++
}

// Clock abstrai a fonte de tempo para que os serviços sejam testáveis.
type Clock func() time.Time

// UTCNow é o relógio padrão dos serviços.
func UTCNow() time.Time { return time.Now().UTC() }

// TxRepositories dá acesso aos repositórios de escrita dentro de uma mesma transação.
// Todos os repositórios devolvidos compartilham a mesma transação subjacente.
type TxRepositories interface {
	Stock() StockRepository
	Movements() MovementRepository
	Orders() OrderRepository
	Outbox() OutboxRepository
}

// TransactionScope executa funções dentro de uma transação do armazenamento.
// Se fn retornar erro (ou o contexto for cancelado) a transação sofre rollback;
// caso contrário é commitada. Nunca há escrita parcial.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TxRepositories) error) error
	// Queries devolve repositórios fora de transação, para leituras.
	Queries() TxRepositories
}
