package engine_test

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/stream-bets-settlement/internal/settlement/engine"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
	"github.com/radieske/stream-bets-settlement/internal/settlement/rent"
	"github.com/radieske/stream-bets-settlement/internal/settlement/store"
)

func TestInstructionErrors(t *testing.T) {
	tests := []struct {
		name  string
		run   func(h *harness, m ledger.Pubkey) error
		want  error
		class engine.Class
	}{
		{
			name: "title too long",
			run: func(h *harness, _ ledger.Pubkey) error {
				_, err := h.eng.InitializeMarket(h.ctx, operator, engine.MarketParams{Title: strings.Repeat("t", 65)})
				return err
			},
			want: engine.ErrLabelTooLong, class: engine.ClassValidation,
		},
		{
			name: "label too long",
			run: func(h *harness, _ ledger.Pubkey) error {
				_, err := h.eng.InitializeMarket(h.ctx, operator, engine.MarketParams{LabelNo: strings.Repeat("n", 33)})
				return err
			},
			want: engine.ErrLabelTooLong, class: engine.ClassValidation,
		},
		{
			name: "fee sum above 100%",
			run: func(h *harness, _ ledger.Pubkey) error {
				_, err := h.eng.InitializeMarket(h.ctx, operator, engine.MarketParams{FeeBps: u16(9_331)})
				return err
			},
			want: engine.ErrInvalidFee, class: engine.ClassValidation,
		},
		{
			name: "fee above 10000",
			run: func(h *harness, _ ledger.Pubkey) error {
				_, err := h.eng.InitializeMarket(h.ctx, operator, engine.MarketParams{FeeBps: u16(10_001)})
				return err
			},
			want: engine.ErrInvalidFee, class: engine.ClassValidation,
		},
		{
			name: "market without authority meta",
			run: func(h *harness, _ ledger.Pubkey) error {
				_, err := h.eng.InitializeMarket(h.ctx, alice, engine.MarketParams{})
				return err
			},
			want: engine.ErrAccountNotFound, class: engine.ClassNotFound,
		},
		{
			name: "invalid side",
			run: func(h *harness, m ledger.Pubkey) error {
				_, err := h.eng.CreateTicket(h.ctx, alice, m, ledger.Side(2))
				return err
			},
			want: engine.ErrInvalidSide, class: engine.ClassValidation,
		},
		{
			name: "operator cannot open ticket",
			run: func(h *harness, m ledger.Pubkey) error {
				_, err := h.eng.CreateTicket(h.ctx, operator, m, ledger.SideYes)
				return err
			},
			want: engine.ErrAuthorityCannotBet, class: engine.ClassAuthorization,
		},
		{
			name: "second ticket for same user",
			run: func(h *harness, m ledger.Pubkey) error {
				h.bet(alice, m, ledger.SideYes, 0)
				_, err := h.eng.CreateTicket(h.ctx, alice, m, ledger.SideNo)
				return err
			},
			want: engine.ErrAccountExists, class: engine.ClassState,
		},
		{
			name: "zero bet",
			run: func(h *harness, m ledger.Pubkey) error {
				h.bet(alice, m, ledger.SideYes, 0)
				return h.eng.PlaceBet(h.ctx, alice, m, 0)
			},
			want: engine.ErrZeroAmount, class: engine.ClassValidation,
		},
		{
			name: "bet without ticket",
			run: func(h *harness, m ledger.Pubkey) error {
				return h.eng.PlaceBet(h.ctx, alice, m, 10)
			},
			want: engine.ErrAccountNotFound, class: engine.ClassNotFound,
		},
		{
			name: "bet above balance",
			run: func(h *harness, m ledger.Pubkey) error {
				h.bet(alice, m, ledger.SideYes, 0)
				return h.eng.PlaceBet(h.ctx, alice, m, startingBalance)
			},
			want: engine.ErrInsufficientFunds, class: engine.ClassConsistency,
		},
		{
			name: "bet on frozen market",
			run: func(h *harness, m ledger.Pubkey) error {
				h.bet(alice, m, ledger.SideYes, 0)
				require.NoError(h.t, h.eng.FreezeMarket(h.ctx, operator, m))
				return h.eng.PlaceBet(h.ctx, alice, m, 10)
			},
			want: engine.ErrMarketFrozen, class: engine.ClassState,
		},
		{
			name: "bet on resolved market",
			run: func(h *harness, m ledger.Pubkey) error {
				h.bet(alice, m, ledger.SideYes, 0)
				h.settle(m, ledger.SideYes)
				return h.eng.PlaceBet(h.ctx, alice, m, 10)
			},
			want: engine.ErrMarketAlreadyResolved, class: engine.ClassState,
		},
		{
			name: "ticket on resolved market",
			run: func(h *harness, m ledger.Pubkey) error {
				h.settle(m, ledger.SideYes)
				_, err := h.eng.CreateTicket(h.ctx, alice, m, ledger.SideYes)
				return err
			},
			want: engine.ErrMarketAlreadyResolved, class: engine.ClassState,
		},
		{
			name: "freeze by stranger",
			run: func(h *harness, m ledger.Pubkey) error {
				return h.eng.FreezeMarket(h.ctx, alice, m)
			},
			want: engine.ErrUnauthorized, class: engine.ClassAuthorization,
		},
		{
			name: "freeze twice",
			run: func(h *harness, m ledger.Pubkey) error {
				require.NoError(h.t, h.eng.FreezeMarket(h.ctx, operator, m))
				return h.eng.FreezeMarket(h.ctx, operator, m)
			},
			want: engine.ErrMarketAlreadyFrozen, class: engine.ClassState,
		},
		{
			name: "freeze resolved market",
			run: func(h *harness, m ledger.Pubkey) error {
				h.settle(m, ledger.SideNo)
				return h.eng.FreezeMarket(h.ctx, operator, m)
			},
			want: engine.ErrMarketAlreadyResolved, class: engine.ClassState,
		},
		{
			name: "resolve invalid side",
			run: func(h *harness, m ledger.Pubkey) error {
				require.NoError(h.t, h.eng.FreezeMarket(h.ctx, operator, m))
				return h.eng.ResolveMarket(h.ctx, operator, m, ledger.Side(7))
			},
			want: engine.ErrInvalidWinningSide, class: engine.ClassValidation,
		},
		{
			name: "resolve before freeze",
			run: func(h *harness, m ledger.Pubkey) error {
				return h.eng.ResolveMarket(h.ctx, operator, m, ledger.SideYes)
			},
			want: engine.ErrMarketNotFrozen, class: engine.ClassState,
		},
		{
			name: "resolve twice",
			run: func(h *harness, m ledger.Pubkey) error {
				h.settle(m, ledger.SideYes)
				return h.eng.ResolveMarket(h.ctx, operator, m, ledger.SideNo)
			},
			want: engine.ErrMarketAlreadyResolved, class: engine.ClassState,
		},
		{
			name: "resolve by stranger",
			run: func(h *harness, m ledger.Pubkey) error {
				require.NoError(h.t, h.eng.FreezeMarket(h.ctx, operator, m))
				return h.eng.ResolveMarket(h.ctx, bob, m, ledger.SideYes)
			},
			want: engine.ErrUnauthorized, class: engine.ClassAuthorization,
		},
		{
			name: "claim before resolve",
			run: func(h *harness, m ledger.Pubkey) error {
				h.bet(alice, m, ledger.SideYes, 10)
				_, err := h.eng.ClaimWinnings(h.ctx, alice, m)
				return err
			},
			want: engine.ErrMarketNotResolved, class: engine.ClassState,
		},
		{
			name: "close ticket before resolve",
			run: func(h *harness, m ledger.Pubkey) error {
				h.bet(alice, m, ledger.SideYes, 10)
				return h.eng.CloseTicket(h.ctx, alice, m)
			},
			want: engine.ErrMarketNotResolved, class: engine.ClassState,
		},
		{
			name: "withdraw by operator",
			run: func(h *harness, m ledger.Pubkey) error {
				_, err := h.eng.WithdrawFees(h.ctx, operator, m)
				return err
			},
			want: engine.ErrUnauthorized, class: engine.ClassAuthorization,
		},
		{
			name: "close market by operator",
			run: func(h *harness, m ledger.Pubkey) error {
				h.settle(m, ledger.SideYes)
				_, err := h.eng.CloseMarket(h.ctx, operator, m)
				return err
			},
			want: engine.ErrUnauthorized, class: engine.ClassAuthorization,
		},
		{
			name: "close unresolved market",
			run: func(h *harness, m ledger.Pubkey) error {
				_, err := h.eng.CloseMarket(h.ctx, hostKey, m)
				return err
			},
			want: engine.ErrMarketNotResolved, class: engine.ClassState,
		},
		{
			name: "unknown market",
			run: func(h *harness, _ ledger.Pubkey) error {
				return h.eng.FreezeMarket(h.ctx, operator, key("nowhere"))
			},
			want: engine.ErrAccountNotFound, class: engine.ClassNotFound,
		},
		{
			name: "wallet passed as market",
			run: func(h *harness, _ ledger.Pubkey) error {
				return h.eng.FreezeMarket(h.ctx, operator, alice)
			},
			want: engine.ErrSeedMismatch, class: engine.ClassConsistency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, store.NewMemory())
			m := h.openMarket(nil)
			err := tt.run(h, m)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.class, engine.ClassOf(err))
			assert.NotEmpty(t, engine.CodeOf(err))
		})
	}
}

// ledgerState reúne tudo que uma instrução com overflow poderia ter tocado.
type ledgerState struct {
	Market  engine.MarketView
	Meta    ledger.AuthorityMeta
	Ticket  engine.TicketView
	Balance uint64
}

func (h *harness) state(m ledger.Pubkey) ledgerState {
	h.t.Helper()
	meta, err := h.eng.AuthorityMeta(h.ctx, operator)
	require.NoError(h.t, err)
	tk, _ := h.eng.Ticket(h.ctx, m, alice)
	return ledgerState{Market: h.market(m), Meta: meta, Ticket: tk, Balance: h.balance(alice)}
}

func TestArithmeticOverflowLeavesNoTrace(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness, m ledger.Pubkey)
		run   func(h *harness, m ledger.Pubkey) error
	}{
		{
			name: "ticket amount",
			setup: func(h *harness, m ledger.Pubkey) {
				h.bet(alice, m, ledger.SideYes, 10)
				tv, err := h.eng.Ticket(h.ctx, m, alice)
				require.NoError(h.t, err)
				var tk ledger.Ticket
				rewriteRecord(h.t, h.store, tv.Address, &tk, func(*store.Account) { tk.Amount = math.MaxUint64 - 5 })
			},
			run: func(h *harness, m ledger.Pubkey) error {
				return h.eng.PlaceBet(h.ctx, alice, m, 10)
			},
		},
		{
			name: "side pool",
			setup: func(h *harness, m ledger.Pubkey) {
				h.bet(alice, m, ledger.SideYes, 0)
				rewriteMarket(h.t, h.store, m, func(mk *ledger.Market, _ *store.Account) { mk.PoolYes = math.MaxUint64 - 5 })
			},
			run: func(h *harness, m ledger.Pubkey) error {
				return h.eng.PlaceBet(h.ctx, alice, m, 10)
			},
		},
		{
			name: "escrow lamports",
			setup: func(h *harness, m ledger.Pubkey) {
				h.bet(alice, m, ledger.SideYes, 0)
				rewriteMarket(h.t, h.store, m, func(_ *ledger.Market, acc *store.Account) { acc.Lamports = math.MaxUint64 - 5 })
			},
			run: func(h *harness, m ledger.Pubkey) error {
				return h.eng.PlaceBet(h.ctx, alice, m, 10)
			},
		},
		{
			name: "cycle counter exhausted",
			setup: func(h *harness, _ ledger.Pubkey) {
				addr, _, err := h.eng.Deriver().AuthorityMeta(operator)
				require.NoError(h.t, err)
				var meta ledger.AuthorityMeta
				rewriteRecord(h.t, h.store, addr, &meta, func(*store.Account) { meta.NextCycle = math.MaxUint16 })
			},
			run: func(h *harness, _ ledger.Pubkey) error {
				_, err := h.eng.InitializeMarket(h.ctx, operator, engine.MarketParams{Title: "last"})
				return err
			},
		},
		{
			name: "total pool on claim",
			setup: func(h *harness, m ledger.Pubkey) {
				h.bet(alice, m, ledger.SideYes, 10)
				h.bet(bob, m, ledger.SideNo, 10)
				h.settle(m, ledger.SideYes)
				rewriteMarket(h.t, h.store, m, func(mk *ledger.Market, _ *store.Account) { mk.PoolNo = math.MaxUint64 })
			},
			run: func(h *harness, m ledger.Pubkey) error {
				_, err := h.eng.ClaimWinnings(h.ctx, alice, m)
				return err
			},
		},
		{
			name:  "faucet credit",
			setup: func(*harness, ledger.Pubkey) {},
			run: func(h *harness, _ ledger.Pubkey) error {
				_, err := h.eng.Deposit(h.ctx, alice, math.MaxUint64)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, store.NewMemory())
			m := h.openMarket(nil)
			tt.setup(h, m)
			before := h.state(m)
			resolvedBefore, poolsBefore := len(h.sink.resolved), len(h.sink.pools)

			err := tt.run(h, m)
			require.ErrorIs(t, err, engine.ErrMathOverflow)
			assert.Equal(t, engine.ClassArithmetic, engine.ClassOf(err))

			assert.Equal(t, before, h.state(m))
			assert.Len(t, h.sink.resolved, resolvedBefore)
			assert.Len(t, h.sink.pools, poolsBefore)
		})
	}
}

func TestDepositRequiresFaucet(t *testing.T) {
	eng := engine.New(store.NewMemory(), engine.Config{ProgramID: programID, Host: hostKey, Rent: rent.Default()}, nil)
	_, err := eng.Deposit(context.Background(), alice, 10)
	assert.ErrorIs(t, err, engine.ErrFaucetDisabled)

	b, err := eng.Balance(context.Background(), alice)
	require.NoError(t, err)
	assert.Zero(t, b)
}

func TestClassOfInfrastructureError(t *testing.T) {
	assert.Equal(t, engine.ClassUnknown, engine.ClassOf(fmt.Errorf("db down")))
	wrapped := fmt.Errorf("claim: %w", engine.ErrAlreadyClaimed)
	assert.Equal(t, engine.ClassState, engine.ClassOf(wrapped))
	assert.Equal(t, "AlreadyClaimed", engine.CodeOf(wrapped))
	assert.Equal(t, "state", engine.ClassState.String())
}
