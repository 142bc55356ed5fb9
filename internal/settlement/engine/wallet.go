package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
)

// Deposit credita lamports em uma carteira. Só existe com o faucet ligado
// (ambientes locais e de teste).
func (e *Engine) Deposit(ctx context.Context, to ledger.Pubkey, amount uint64) (uint64, error) {
	var balance uint64
	err := e.exec(ctx, "deposit", func(t *txn) error {
		if !e.cfg.FaucetEnabled {
			return ErrFaucetDisabled
		}
		if amount == 0 {
			return ErrZeroAmount
		}
		if err := t.creditWallet(to, amount); err != nil {
			return err
		}
		t.moved(TransferDeposit, amount)
		acc, err := t.get(to)
		if err != nil {
			return err
		}
		balance = acc.Lamports
		return nil
	}, zap.Stringer("to", to), zap.Uint64("amount", amount))
	return balance, err
}

// Balance retorna o saldo de qualquer conta (0 se não existir).
func (e *Engine) Balance(ctx context.Context, addr ledger.Pubkey) (uint64, error) {
	var lamports uint64
	err := e.view(ctx, func(t *txn) error {
		acc, err := t.get(addr)
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		lamports = acc.Lamports
		return nil
	})
	return lamports, err
}
