package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/stream-bets-settlement/internal/settlement/engine"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
	"github.com/radieske/stream-bets-settlement/internal/settlement/rent"
	"github.com/radieske/stream-bets-settlement/internal/settlement/store"
)

// racingStore simula outra transação criando a mesma carteira entre o Get e
// o Insert: o Insert falha com ErrExists e, se rival > 0, o crédito concorrente
// é gravado antes da próxima transação começar.
type racingStore struct {
	*store.Memory
	wallet  ledger.Pubkey
	rival   uint64
	races   int
	pending bool
}

func (s *racingStore) Begin(ctx context.Context) (store.Tx, error) {
	if s.pending {
		s.pending = false
		err := store.WithTx(ctx, s.Memory, func(tx store.Tx) error {
			acc, err := tx.Get(ctx, s.wallet)
			if errors.Is(err, store.ErrNotFound) {
				return tx.Insert(ctx, s.wallet, store.Account{Lamports: s.rival})
			}
			if err != nil {
				return err
			}
			acc.Lamports += s.rival
			return tx.Update(ctx, s.wallet, acc)
		})
		if err != nil {
			return nil, err
		}
	}
	tx, err := s.Memory.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &racingTx{Tx: tx, s: s}, nil
}

type racingTx struct {
	store.Tx
	s *racingStore
}

func (t *racingTx) Insert(ctx context.Context, addr ledger.Pubkey, acc store.Account) error {
	if addr == t.s.wallet && t.s.races > 0 {
		t.s.races--
		t.s.pending = t.s.rival > 0
		return store.ErrExists
	}
	return t.Tx.Insert(ctx, addr, acc)
}

func newRacingEngine(st store.Store, calls map[string][]error) *engine.Engine {
	return engine.New(st, engine.Config{
		ProgramID:     programID,
		Host:          hostKey,
		Rent:          rent.Default(),
		FaucetEnabled: true,
	}, nil, engine.WithHooks(engine.Hooks{
		OnInstruction: func(name string, err error) { calls[name] = append(calls[name], err) },
	}))
}

func TestConcurrentFirstCreditRetries(t *testing.T) {
	dave := key("dave")
	st := &racingStore{Memory: store.NewMemory(), wallet: dave, rival: 40, races: 1}
	calls := map[string][]error{}
	eng := newRacingEngine(st, calls)
	ctx := context.Background()

	bal, err := eng.Deposit(ctx, dave, 60)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal, "o crédito concorrente não se perde")
	assert.Equal(t, []error{nil}, calls["deposit"], "a repetição é uma instrução só")
}

func TestConcurrentFirstCreditGivesUp(t *testing.T) {
	dave := key("dave")
	st := &racingStore{Memory: store.NewMemory(), wallet: dave, races: 10}
	calls := map[string][]error{}
	eng := newRacingEngine(st, calls)
	ctx := context.Background()

	_, err := eng.Deposit(ctx, dave, 60)
	require.ErrorIs(t, err, engine.ErrWriteConflict)
	assert.Equal(t, engine.ClassState, engine.ClassOf(err))
	assert.Equal(t, "WriteConflict", engine.CodeOf(err))
	assert.Equal(t, 7, st.races, "três tentativas")
	require.Len(t, calls["deposit"], 1)

	bal, err := eng.Balance(ctx, dave)
	require.NoError(t, err)
	assert.Zero(t, bal)
}
