// Package store é o armazenamento de contas endereçadas por endereço derivado.
//
// Cada operação da liquidação roda dentro de um único Tx: lê contas, move
// lamports, grava registros e só então faz Commit. Qualquer erro leva a
// Rollback e nenhuma alteração parcial é aplicada.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
)

var (
	ErrNotFound = errors.New("store: account not found")
	ErrExists   = errors.New("store: account already exists")
	ErrTxDone   = errors.New("store: transaction already finished")
)

// Account é uma conta do substrato: saldo, dono e dados do registro.
// Owner zero indica conta de sistema (carteira sem dados).
type Account struct {
	Owner    ledger.Pubkey
	Lamports uint64
	Data     []byte
}

func (a Account) clone() Account {
	if a.Data != nil {
		a.Data = append([]byte(nil), a.Data...)
	}
	return a
}

// Tx é a unidade de trabalho de uma instrução.
type Tx interface {
	Get(ctx context.Context, addr ledger.Pubkey) (Account, error)
	Insert(ctx context.Context, addr ledger.Pubkey, acc Account) error
	Update(ctx context.Context, addr ledger.Pubkey, acc Account) error
	Delete(ctx context.Context, addr ledger.Pubkey) error
	Commit() error
	Rollback() error
}

// Store abre transações sobre o conjunto de contas.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Close() error
}

// WithTx executa fn em uma transação: commit se fn retornar nil, rollback caso
// contrário (inclusive em panic).
func WithTx(ctx context.Context, s Store, fn func(Tx) error) (err error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
