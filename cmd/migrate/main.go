// Comando migrate aplica o esquema do LastStock com goose.
//
//	go run ./cmd/migrate            # up com os scripts embutidos
//	go run ./cmd/migrate status
//	go run ./cmd/migrate -dir ./migrations down
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"laststock/config"
	"laststock/internal/pkg/database"
	"laststock/migrations"
)

func main() {
	dir := flag.String("dir", "", "diretório dos scripts (padrão: scripts embutidos no binário)")
	timeout := flag.Duration("timeout", 5*time.Minute, "tempo máximo da migração")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ Aviso: .env não encontrado; usando apenas o ambiente do sistema.")
	}
	cfg := config.LoadConfig()

	command, args := "up", []string(nil)
	if flag.NArg() > 0 {
		command, args = flag.Arg(0), flag.Args()[1:]
	}

	if err := run(cfg, *dir, *timeout, command, args); err != nil {
		log.Fatalf("❌ goose %s: %v", command, err)
	}
	log.Printf("✅ goose %s concluído.", command)
}

func run(cfg *config.Config, dir string, timeout time.Duration, command string, args []string) error {
	db, err := database.NewPostgresDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if dir == "" {
		goose.SetBaseFS(migrations.FS)
		dir = "."
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return goose.RunContext(ctx, command, db, dir, args...)
}
