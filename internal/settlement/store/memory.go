package store

import (
	"context"

	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
)

// Memory é um Store em memória. Uma transação por vez: Begin adquire o
// semáforo e Commit/Rollback o libera, então as instruções são serializadas.
type Memory struct {
	sem      chan struct{}
	accounts map[ledger.Pubkey]Account
}

// NewMemory cria um store vazio.
func NewMemory() *Memory {
	return &Memory{
		sem:      make(chan struct{}, 1),
		accounts: make(map[ledger.Pubkey]Account),
	}
}

func (m *Memory) Begin(ctx context.Context) (Tx, error) {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &memTx{m: m, writes: make(map[ledger.Pubkey]*Account)}, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

// memTx acumula escritas; nil em writes marca exclusão.
type memTx struct {
	m      *Memory
	writes map[ledger.Pubkey]*Account
	done   bool
}

func (t *memTx) lookup(addr ledger.Pubkey) (Account, bool) {
	if w, ok := t.writes[addr]; ok {
		if w == nil {
			return Account{}, false
		}
		return *w, true
	}
	acc, ok := t.m.accounts[addr]
	return acc, ok
}

func (t *memTx) Get(_ context.Context, addr ledger.Pubkey) (Account, error) {
	if t.done {
		return Account{}, ErrTxDone
	}
	acc, ok := t.lookup(addr)
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc.clone(), nil
}

func (t *memTx) Insert(_ context.Context, addr ledger.Pubkey, acc Account) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.lookup(addr); ok {
		return ErrExists
	}
	c := acc.clone()
	t.writes[addr] = &c
	return nil
}

func (t *memTx) Update(_ context.Context, addr ledger.Pubkey, acc Account) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.lookup(addr); !ok {
		return ErrNotFound
	}
	c := acc.clone()
	t.writes[addr] = &c
	return nil
}

func (t *memTx) Delete(_ context.Context, addr ledger.Pubkey) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.lookup(addr); !ok {
		return ErrNotFound
	}
	t.writes[addr] = nil
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	for addr, w := range t.writes {
		if w == nil {
			delete(t.m.accounts, addr)
			continue
		}
		t.m.accounts[addr] = *w
	}
	t.finish()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.finish()
	return nil
}

func (t *memTx) finish() {
	t.done = true
	t.writes = nil
	<-t.m.sem
}
