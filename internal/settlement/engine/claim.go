package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/internal/settlement/fixedpoint"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
)

// ClaimResult detalha o pagamento de um vencedor.
type ClaimResult struct {
	Gross  uint64 `json:"gross"`
	Fee    uint64 `json:"fee"`
	Payout uint64 `json:"payout"`
}

// payout calcula o prêmio de amount sobre o mercado resolvido:
//
//	gross  = floor(amount * (pool_yes+pool_no) / winning_pool)
//	fee    = floor((gross-amount) * (fee_bps+host_fee_bps) / 10000)
//	payout = gross - fee
//
// Só o lucro paga taxa; o principal volta inteiro. O split acompanha a taxa
// na proporção fee_bps:host_fee_bps.
func payout(m *ledger.Market, amount uint64) (ClaimResult, FeeSplit, error) {
	total, ok := m.TotalPool()
	if !ok {
		return ClaimResult{}, FeeSplit{}, ErrMathOverflow
	}
	winningPool := m.WinningPool()
	if winningPool == 0 {
		return ClaimResult{}, FeeSplit{}, ErrMathOverflow
	}
	gross, err := fixedpoint.MulDiv(amount, total, winningPool)
	if err != nil {
		return ClaimResult{}, FeeSplit{}, ErrMathOverflow
	}
	profit, err := fixedpoint.Sub(gross, amount)
	if err != nil {
		return ClaimResult{}, FeeSplit{}, ErrMathOverflow
	}
	fee, err := fixedpoint.ComputeFee(profit, m.FeeBps, m.HostFeeBps)
	if err != nil {
		return ClaimResult{}, FeeSplit{}, ErrMathOverflow
	}
	r := ClaimResult{Gross: gross, Fee: fee.Total, Payout: amount + fee.Remainder}
	return r, FeeSplit{Authority: fee.Authority, Host: fee.Host}, nil
}

// ClaimWinnings paga o vencedor a partir do escrow e acumula a taxa.
func (e *Engine) ClaimWinnings(ctx context.Context, user, market ledger.Pubkey) (ClaimResult, error) {
	var res ClaimResult
	err := e.exec(ctx, "claim_winnings", func(t *txn) error {
		ma, err := t.loadMarket(market)
		if err != nil {
			return err
		}
		m := &ma.market
		if !m.Resolved {
			return ErrMarketNotResolved
		}
		ta, err := t.loadTicket(market, user)
		if err != nil {
			return err
		}
		tk := &ta.ticket
		if tk.Claimed {
			return ErrAlreadyClaimed
		}
		if !m.Winning.Wins(tk.Side) {
			return ErrTicketSideMismatch
		}

		r, _, err := payout(m, tk.Amount)
		if err != nil {
			return err
		}
		if err := t.payOut(ma, user, r.Payout, TransferPayout); err != nil {
			return err
		}
		tk.Claimed = true
		if r.Fee > 0 {
			if m.FeesAccrued, err = fixedpoint.Add(m.FeesAccrued, r.Fee); err != nil {
				return ErrMathOverflow
			}
		}
		if err := t.save(ta.addr, &ta.acc, tk); err != nil {
			return err
		}
		if err := t.save(ma.addr, &ma.acc, m); err != nil {
			return err
		}
		res = r
		return nil
	}, zap.Stringer("market", market), zap.Stringer("user", user))
	return res, err
}

// Quote é a prévia do pagamento de um ticket.
type Quote struct {
	Market    ledger.Pubkey `json:"market"`
	User      ledger.Pubkey `json:"user"`
	Side      ledger.Side   `json:"side"`
	Amount    uint64        `json:"amount"`
	Resolved  bool          `json:"resolved"`
	Winner    bool          `json:"winner"`
	Claimed   bool          `json:"claimed"`
	Projected bool          `json:"projected"` // mercado aberto: simula vitória do lado do ticket
	ClaimResult
	// FeeSplit é a parte desta taxa de cada beneficiário. No saque o split é
	// refeito sobre o total acumulado, então a soma dos quotes pode diferir
	// por arredondamento.
	FeeSplit FeeSplit `json:"fee_split"`
}

// QuotePayout simula o claim sem mover nada. Perdedor, pool vencedor vazio ou
// ticket sem aposta resultam em pagamento zero em vez de erro. Em mercado
// ainda não resolvido a prévia supõe que o lado do ticket vence.
func (e *Engine) QuotePayout(ctx context.Context, market, user ledger.Pubkey) (Quote, error) {
	var q Quote
	err := e.view(ctx, func(t *txn) error {
		ma, err := t.loadMarket(market)
		if err != nil {
			return err
		}
		ta, err := t.loadTicket(market, user)
		if err != nil {
			return err
		}
		m, tk := ma.market, ta.ticket
		q = Quote{
			Market:   market,
			User:     user,
			Side:     tk.Side,
			Amount:   tk.Amount,
			Resolved: m.Resolved,
			Claimed:  tk.Claimed,
		}
		if !m.Resolved {
			q.Projected = true
			m.Winning = ledger.Winner(tk.Side)
		}
		q.Winner = m.Winning.Wins(tk.Side)
		if !q.Winner || tk.Amount == 0 || m.WinningPool() == 0 {
			return nil
		}
		r, split, err := payout(&m, tk.Amount)
		if err != nil {
			return err
		}
		q.ClaimResult, q.FeeSplit = r, split
		return nil
	})
	return q, err
}
