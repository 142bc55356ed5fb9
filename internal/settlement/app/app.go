// Package app monta as dependências da liquidação a partir da config.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/radieske/stream-bets-settlement/internal/settlement/engine"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
	"github.com/radieske/stream-bets-settlement/internal/settlement/rent"
	"github.com/radieske/stream-bets-settlement/internal/settlement/store"
	"github.com/radieske/stream-bets-settlement/internal/shared/config"
	"github.com/radieske/stream-bets-settlement/internal/shared/db"
)

// EngineConfig converte a config do serviço nos parâmetros do programa.
func EngineConfig(cfg config.Config) (engine.Config, error) {
	if cfg.ProgramID == "" || cfg.HostPubkey == "" {
		return engine.Config{}, errors.New("PROGRAM_ID and HOST_PUBKEY are required")
	}
	programID, err := ledger.ParsePubkey(cfg.ProgramID)
	if err != nil {
		return engine.Config{}, fmt.Errorf("PROGRAM_ID: %w", err)
	}
	host, err := ledger.ParsePubkey(cfg.HostPubkey)
	if err != nil {
		return engine.Config{}, fmt.Errorf("HOST_PUBKEY: %w", err)
	}
	return engine.Config{
		ProgramID:  programID,
		Host:       host,
		HostFeeBps: cfg.HostFeeBps,
		Rent: rent.Calculator{
			LamportsPerByteYear: cfg.RentLamportsPerByteYr,
			ExemptionThreshold:  cfg.RentExemptionYears,
		},
		FaucetEnabled: cfg.FaucetEnabled,
	}, nil
}

// OpenStore conecta no banco escolhido por STORE_DRIVER e aplica o schema.
func OpenStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	var s *store.SQL
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s = store.NewSQL(pg, store.DialectPostgres)
	case "sqlite":
		lite, err := db.ConnectSQLite(cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		s = store.NewSQL(lite, store.DialectSQLite)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}
