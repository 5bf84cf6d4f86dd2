package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registra o driver "pgx"
	"github.com/lib/pq"
)

// Drivers aceitos em DB_DRIVER.
const (
	DriverPQ  = "postgres" // github.com/lib/pq
	DriverPGX = "pgx"      // github.com/jackc/pgx/v5/stdlib
)

// uniqueViolation é o SQLSTATE de violação de chave única no PostgreSQL.
const uniqueViolation = "23505"

// Querier é o subconjunto comum a *sql.DB e *sql.Tx usado pelos repositórios.
// Permite que o mesmo repositório rode dentro ou fora de uma transação.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewPostgresDB inicializa e configura o pool de conexões com o PostgreSQL.
// driverName escolhe entre lib/pq ("postgres") e pgx ("pgx").
func NewPostgresDB(driverName, dataSourceName string) (*sql.DB, error) {
	if driverName == "" {
		driverName = DriverPQ
	}
	if driverName != DriverPQ && driverName != DriverPGX {
		return nil, fmt.Errorf("driver de banco desconhecido: %q", driverName)
	}

	// 1. Abrir a Conexão
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("falha ao abrir a conexão com o DB: %w", err)
	}

	// 2. Testar a Conexão Imediatamente
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("falha ao realizar o ping inicial no DB: %w", err)
	}

	// 3. Configuração do Connection Pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	log.Printf("✅ Pool de Conexões PostgreSQL (%s) configurado e pronto.", driverName)

	return db, nil
}

// IsUniqueViolation reconhece violação de chave única vinda de qualquer um dos dois drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
