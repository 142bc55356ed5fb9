package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/internal/settlement/fixedpoint"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
)

// WithdrawFees paga as taxas acumuladas ao operador e à plataforma na
// proporção fee_bps:host_fee_bps e zera fees_accrued. Só a plataforma.
func (e *Engine) WithdrawFees(ctx context.Context, host, market ledger.Pubkey) (FeeSplit, error) {
	var split FeeSplit
	err := e.exec(ctx, "withdraw_fees", func(t *txn) error {
		if host != e.cfg.Host {
			return ErrUnauthorized
		}
		ma, err := t.loadMarket(market)
		if err != nil {
			return err
		}
		m := &ma.market
		if m.FeesAccrued == 0 {
			return ErrZeroAmount
		}
		s, err := t.distribute(ma, m.FeesAccrued, TransferFee)
		if err != nil {
			return err
		}
		m.FeesAccrued = 0
		if err := t.save(ma.addr, &ma.acc, m); err != nil {
			return err
		}
		split = s
		return nil
	}, zap.Stringer("market", market))
	return split, err
}

// CloseResult descreve o fechamento de um mercado.
type CloseResult struct {
	Salvaged FeeSplit `json:"salvaged"` // excedente de mercados resolvidos sem vencedor em versão antiga
	Swept    FeeSplit `json:"swept"`    // poeira de divisões truncadas
	Returned uint64   `json:"returned"` // rent devolvido ao operador
}

// CloseMarket fecha um mercado resolvido e devolve o rent ao operador. Só a
// plataforma.
//
// Ordem: salvage (pool vencedor zerado e saldo acima do mínimo), exige taxas
// sacadas, varre poeira de até DustMax lamports e só fecha com o saldo
// exatamente igual ao mínimo de rent.
func (e *Engine) CloseMarket(ctx context.Context, host, market ledger.Pubkey) (CloseResult, error) {
	var res CloseResult
	err := e.exec(ctx, "close_market", func(t *txn) error {
		if host != e.cfg.Host {
			return ErrUnauthorized
		}
		ma, err := t.loadMarket(market)
		if err != nil {
			return err
		}
		m := &ma.market
		if !m.Resolved {
			return ErrMarketNotResolved
		}
		rentMin := e.cfg.Rent.MinimumBalance(len(ma.acc.Data))

		if m.WinningPool() == 0 && ma.acc.Lamports > rentMin {
			if res.Salvaged, err = t.distribute(ma, ma.acc.Lamports-rentMin, TransferSalvage); err != nil {
				return err
			}
		}
		if m.FeesAccrued != 0 {
			return ErrFeesRemaining
		}

		extra, err := fixedpoint.Sub(ma.acc.Lamports, rentMin)
		if err != nil {
			return ErrInsufficientEscrow
		}
		if extra > DustMax {
			return ErrOutstandingLamports
		}
		if extra > 0 {
			if res.Swept, err = t.distribute(ma, extra, TransferDust); err != nil {
				return err
			}
		}
		if ma.acc.Lamports != rentMin {
			return ErrOutstandingLamports
		}

		res.Returned = ma.acc.Lamports
		return t.closeAccount(ma.addr, ma.acc, m.Authority)
	}, zap.Stringer("market", market))
	return res, err
}
