package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/radieske/stream-bets-settlement/internal/settlement/address"
	"github.com/radieske/stream-bets-settlement/internal/settlement/fixedpoint"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
	"github.com/radieske/stream-bets-settlement/internal/settlement/store"
)

type transfer struct {
	kind   string
	amount uint64
}

// txn é o contexto de uma instrução: contas lidas, transferências feitas e
// eventos pendentes até o commit.
type txn struct {
	ctx       context.Context
	tx        store.Tx
	e         *Engine
	transfers []transfer
	outbox    []func(context.Context, EventSink) error
}

type record interface {
	MarshalBinary() ([]byte, error)
}

type metaAccount struct {
	addr ledger.Pubkey
	acc  store.Account
	meta ledger.AuthorityMeta
}

type marketAccount struct {
	addr   ledger.Pubkey
	acc    store.Account
	market ledger.Market
}

type ticketAccount struct {
	addr   ledger.Pubkey
	acc    store.Account
	ticket ledger.Ticket
}

func (t *txn) emit(fn func(context.Context, EventSink) error) {
	t.outbox = append(t.outbox, fn)
}

func (t *txn) moved(kind string, amount uint64) {
	if amount > 0 {
		t.transfers = append(t.transfers, transfer{kind: kind, amount: amount})
	}
}

func (t *txn) get(addr ledger.Pubkey) (store.Account, error) {
	acc, err := t.tx.Get(t.ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return store.Account{}, ErrAccountNotFound
	}
	return acc, err
}

// programAccount lê uma conta que precisa pertencer ao programa.
func (t *txn) programAccount(addr ledger.Pubkey) (store.Account, error) {
	acc, err := t.get(addr)
	if err != nil {
		return acc, err
	}
	if acc.Owner != t.e.cfg.ProgramID {
		return acc, ErrSeedMismatch
	}
	return acc, nil
}

func (t *txn) verify(addr ledger.Pubkey, bump uint8, seeds [][]byte) error {
	if !t.e.derive.Verify(addr, bump, seeds) {
		return ErrSeedMismatch
	}
	return nil
}

func (t *txn) loadMeta(authority ledger.Pubkey) (*metaAccount, error) {
	addr, _, err := t.e.derive.AuthorityMeta(authority)
	if err != nil {
		return nil, fmt.Errorf("derive authority meta: %w", err)
	}
	acc, err := t.programAccount(addr)
	if err != nil {
		return nil, err
	}
	ma := &metaAccount{addr: addr, acc: acc}
	if err := ma.meta.UnmarshalBinary(acc.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeedMismatch, err)
	}
	if ma.meta.Authority != authority {
		return nil, ErrSeedMismatch
	}
	if err := t.verify(addr, ma.meta.Bump, address.AuthorityMetaSeeds(authority)); err != nil {
		return nil, err
	}
	return ma, nil
}

func (t *txn) loadMarket(addr ledger.Pubkey) (*marketAccount, error) {
	acc, err := t.programAccount(addr)
	if err != nil {
		return nil, err
	}
	ma := &marketAccount{addr: addr, acc: acc}
	if err := ma.market.UnmarshalBinary(acc.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeedMismatch, err)
	}
	seeds := address.MarketSeeds(ma.market.Authority, ma.market.Cycle)
	if err := t.verify(addr, ma.market.Bump, seeds); err != nil {
		return nil, err
	}
	return ma, nil
}

// loadTicket lê o ticket derivado de (market, user) e confere os vínculos.
func (t *txn) loadTicket(market, user ledger.Pubkey) (*ticketAccount, error) {
	addr, _, err := t.e.derive.Ticket(market, user)
	if err != nil {
		return nil, fmt.Errorf("derive ticket: %w", err)
	}
	acc, err := t.programAccount(addr)
	if err != nil {
		return nil, err
	}
	ta := &ticketAccount{addr: addr, acc: acc}
	if err := ta.ticket.UnmarshalBinary(acc.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeedMismatch, err)
	}
	if ta.ticket.Market != market {
		return nil, ErrTicketMarketMismatch
	}
	if ta.ticket.User != user {
		return nil, ErrUnauthorized
	}
	if err := t.verify(addr, ta.ticket.Bump, address.TicketSeeds(market, user)); err != nil {
		return nil, err
	}
	return ta, nil
}

// save regrava os dados do registro e o saldo atual da conta.
func (t *txn) save(addr ledger.Pubkey, acc *store.Account, rec record) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	acc.Data = data
	return t.tx.Update(t.ctx, addr, *acc)
}

// create cria uma conta do programa paga por payer com o saldo mínimo de rent.
func (t *txn) create(payer, addr ledger.Pubkey, rec record) (store.Account, error) {
	data, err := rec.MarshalBinary()
	if err != nil {
		return store.Account{}, err
	}
	acc := store.Account{
		Owner:    t.e.cfg.ProgramID,
		Lamports: t.e.cfg.Rent.MinimumBalance(len(data)),
		Data:     data,
	}
	if err := t.tx.Insert(t.ctx, addr, acc); err != nil {
		if errors.Is(err, store.ErrExists) {
			return store.Account{}, ErrAccountExists
		}
		return store.Account{}, err
	}
	if err := t.debitWallet(payer, acc.Lamports); err != nil {
		return store.Account{}, err
	}
	t.moved(TransferRent, acc.Lamports)
	return acc, nil
}

// closeAccount transfere todo o saldo da conta para to e a remove.
func (t *txn) closeAccount(addr ledger.Pubkey, acc store.Account, to ledger.Pubkey) error {
	if err := t.creditWallet(to, acc.Lamports); err != nil {
		return err
	}
	if err := t.tx.Delete(t.ctx, addr); err != nil {
		return err
	}
	t.moved(TransferRentRefund, acc.Lamports)
	return nil
}

// debitWallet retira amount de uma conta de sistema (carteira).
func (t *txn) debitWallet(addr ledger.Pubkey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	acc, err := t.get(addr)
	if errors.Is(err, ErrAccountNotFound) {
		return ErrInsufficientFunds
	}
	if err != nil {
		return err
	}
	if !acc.Owner.IsZero() {
		return ErrUnauthorized
	}
	if acc.Lamports < amount {
		return ErrInsufficientFunds
	}
	acc.Lamports -= amount
	return t.tx.Update(t.ctx, addr, acc)
}

// creditWallet credita amount em uma carteira, criando-a se preciso.
func (t *txn) creditWallet(addr ledger.Pubkey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	acc, err := t.get(addr)
	if errors.Is(err, ErrAccountNotFound) {
		// outra transação pode criar a mesma carteira entre o get e o insert
		err := t.tx.Insert(t.ctx, addr, store.Account{Lamports: amount})
		if errors.Is(err, store.ErrExists) {
			return ErrWriteConflict
		}
		return err
	}
	if err != nil {
		return err
	}
	if !acc.Owner.IsZero() {
		return ErrUnauthorized
	}
	sum, err := fixedpoint.Add(acc.Lamports, amount)
	if err != nil {
		return ErrMathOverflow
	}
	acc.Lamports = sum
	return t.tx.Update(t.ctx, addr, acc)
}

// debitEscrow retira amount do escrow sem tocar no saldo mínimo de rent.
func (t *txn) debitEscrow(acc *store.Account, amount uint64) error {
	floor := t.e.cfg.Rent.MinimumBalance(len(acc.Data))
	avail, err := fixedpoint.Sub(acc.Lamports, floor)
	if err != nil || amount > avail {
		return ErrInsufficientEscrow
	}
	acc.Lamports -= amount
	return nil
}

// payOut move amount do escrow do mercado para uma carteira.
func (t *txn) payOut(ma *marketAccount, to ledger.Pubkey, amount uint64, kind string) error {
	if err := t.debitEscrow(&ma.acc, amount); err != nil {
		return err
	}
	if err := t.creditWallet(to, amount); err != nil {
		return err
	}
	t.moved(kind, amount)
	return nil
}

// FeeSplit é a divisão de um valor entre operador e plataforma.
type FeeSplit struct {
	Authority uint64 `json:"authority"`
	Host      uint64 `json:"host"`
}

// Total soma as duas parcelas.
func (s FeeSplit) Total() uint64 { return s.Authority + s.Host }

// distribute divide amount na proporção fee_bps:host_fee_bps e paga operador
// e plataforma a partir do escrow.
func (t *txn) distribute(ma *marketAccount, amount uint64, kind string) (FeeSplit, error) {
	authority, host, err := fixedpoint.Split(amount, ma.market.FeeBps, ma.market.HostFeeBps)
	if err != nil {
		return FeeSplit{}, ErrMathOverflow
	}
	if err := t.payOut(ma, ma.market.Authority, authority, kind); err != nil {
		return FeeSplit{}, err
	}
	if err := t.payOut(ma, t.e.cfg.Host, host, kind); err != nil {
		return FeeSplit{}, err
	}
	return FeeSplit{Authority: authority, Host: host}, nil
}
