// Package migrations embarca os scripts goose do esquema PostgreSQL.
package migrations

import "embed"

// FS contém todos os arquivos .sql deste diretório.
//
//go:embed *.sql
var FS embed.FS
