package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/internal/settlement/fixedpoint"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
	"github.com/radieske/stream-bets-settlement/pkg/contracts/events"
)

// CreateTicket abre a posição do usuário no mercado com o lado fixo.
// Um ticket por (usuário, mercado): o endereço vem desse par.
func (e *Engine) CreateTicket(ctx context.Context, user, market ledger.Pubkey, side ledger.Side) (ledger.Pubkey, error) {
	var addr ledger.Pubkey
	err := e.exec(ctx, "create_ticket", func(t *txn) error {
		if !side.Valid() {
			return ErrInvalidSide
		}
		ma, err := t.loadMarket(market)
		if err != nil {
			return err
		}
		if ma.market.Resolved {
			return ErrMarketAlreadyResolved
		}
		if user == ma.market.Authority {
			return ErrAuthorityCannotBet
		}

		a, bump, err := e.derive.Ticket(market, user)
		if err != nil {
			return err
		}
		tk := &ledger.Ticket{User: user, Market: market, Side: side, Bump: bump}
		if _, err := t.create(user, a, tk); err != nil {
			return err
		}
		addr = a
		return nil
	}, zap.Stringer("market", market), zap.Stringer("user", user), zap.Stringer("side", side))
	return addr, err
}

// PlaceBet transfere amount da carteira do usuário para o escrow e soma no
// ticket e no pool do lado do ticket.
func (e *Engine) PlaceBet(ctx context.Context, user, market ledger.Pubkey, amount uint64) error {
	return e.exec(ctx, "place_bet", func(t *txn) error {
		if amount == 0 {
			return ErrZeroAmount
		}
		ma, err := t.loadMarket(market)
		if err != nil {
			return err
		}
		m := &ma.market
		if m.Resolved {
			return ErrMarketAlreadyResolved
		}
		if m.Frozen {
			return ErrMarketFrozen
		}
		ta, err := t.loadTicket(market, user)
		if err != nil {
			return err
		}
		tk := &ta.ticket
		if tk.Claimed {
			return ErrAlreadyClaimed
		}
		if user == m.Authority {
			return ErrAuthorityCannotBet
		}

		if err := t.debitWallet(user, amount); err != nil {
			return err
		}
		escrow, err := fixedpoint.Add(ma.acc.Lamports, amount)
		if err != nil {
			return ErrMathOverflow
		}
		ma.acc.Lamports = escrow

		if tk.Amount, err = fixedpoint.Add(tk.Amount, amount); err != nil {
			return ErrMathOverflow
		}
		pool, err := fixedpoint.Add(m.Pool(tk.Side), amount)
		if err != nil {
			return ErrMathOverflow
		}
		m.SetPool(tk.Side, pool)

		if err := t.save(ta.addr, &ta.acc, tk); err != nil {
			return err
		}
		if err := t.save(ma.addr, &ma.acc, m); err != nil {
			return err
		}
		t.moved(TransferBet, amount)

		ev := events.PoolsUpdated{
			EventID: uuid.NewString(),
			Market:  market.String(),
			Side:    uint8(tk.Side),
			Amount:  amount,
			PoolYes: m.PoolYes,
			PoolNo:  m.PoolNo,
			Ts:      time.Now().UTC(),
		}
		t.emit(func(ctx context.Context, s EventSink) error { return s.PublishPoolsUpdated(ctx, ev) })
		return nil
	}, zap.Stringer("market", market), zap.Stringer("user", user), zap.Uint64("amount", amount))
}

// CloseTicket devolve o rent do ticket ao usuário depois da resolução.
// Um vencedor que ainda não sacou não pode fechar, com qualquer amount. A
// exceção é o pool vencedor vazio: o claim falharia sempre, e o escrow já foi
// reclassificado como taxa, então o ticket só devolve o rent.
func (e *Engine) CloseTicket(ctx context.Context, user, market ledger.Pubkey) error {
	return e.exec(ctx, "close_ticket", func(t *txn) error {
		ma, err := t.loadMarket(market)
		if err != nil {
			return err
		}
		if !ma.market.Resolved {
			return ErrMarketNotResolved
		}
		ta, err := t.loadTicket(market, user)
		if err != nil {
			return err
		}
		tk, m := ta.ticket, ma.market
		if m.Winning.Wins(tk.Side) && !tk.Claimed && m.WinningPool() > 0 {
			return ErrCannotCloseActiveTicket
		}
		return t.closeAccount(ta.addr, ta.acc, user)
	}, zap.Stringer("market", market), zap.Stringer("user", user))
}

// TicketView é o ticket decodificado com o endereço derivado.
type TicketView struct {
	Address  ledger.Pubkey
	Ticket   ledger.Ticket
	Lamports uint64
}

// Ticket lê o ticket de (market, user).
func (e *Engine) Ticket(ctx context.Context, market, user ledger.Pubkey) (TicketView, error) {
	var v TicketView
	err := e.view(ctx, func(t *txn) error {
		ta, err := t.loadTicket(market, user)
		if err != nil {
			return err
		}
		v = TicketView{Address: ta.addr, Ticket: ta.ticket, Lamports: ta.acc.Lamports}
		return nil
	})
	return v, err
}
