package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/internal/settlement/fixedpoint"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
	"github.com/radieske/stream-bets-settlement/pkg/contracts/events"
)

// MarketParams são os dados de criação de um mercado.
// FeeBps nil usa a taxa padrão do operador.
type MarketParams struct {
	Title    string
	LabelYes string
	LabelNo  string
	FeeBps   *uint16
}

// InitAuthorityMeta cria o contador de ciclos do operador (next_cycle = 0).
func (e *Engine) InitAuthorityMeta(ctx context.Context, authority ledger.Pubkey) (ledger.Pubkey, error) {
	var addr ledger.Pubkey
	err := e.exec(ctx, "init_authority_meta", func(t *txn) error {
		a, bump, err := e.derive.AuthorityMeta(authority)
		if err != nil {
			return err
		}
		meta := &ledger.AuthorityMeta{Authority: authority, NextCycle: 0, Bump: bump}
		if _, err := t.create(authority, a, meta); err != nil {
			return err
		}
		addr = a
		return nil
	}, zap.Stringer("authority", authority))
	return addr, err
}

// InitializeMarket cria o mercado do ciclo atual do operador e avança o ciclo.
func (e *Engine) InitializeMarket(ctx context.Context, authority ledger.Pubkey, p MarketParams) (ledger.Pubkey, error) {
	fee := ledger.AuthorityFeeBpsDefault
	if p.FeeBps != nil {
		fee = *p.FeeBps
	}
	host := e.cfg.hostFeeBps()

	var addr ledger.Pubkey
	err := e.exec(ctx, "initialize_market", func(t *txn) error {
		if err := fixedpoint.ValidateRates(fee, host); err != nil {
			return ErrInvalidFee
		}
		m := ledger.Market{
			Authority:  authority,
			FeeBps:     fee,
			HostFeeBps: host,
			Winning:    ledger.Unresolved,
		}
		if !ledger.FixedText(m.Title[:], p.Title) ||
			!ledger.FixedText(m.LabelYes[:], p.LabelYes) ||
			!ledger.FixedText(m.LabelNo[:], p.LabelNo) {
			return ErrLabelTooLong
		}

		meta, err := t.loadMeta(authority)
		if err != nil {
			return err
		}
		m.Cycle = meta.meta.NextCycle
		a, bump, err := e.derive.Market(authority, m.Cycle)
		if err != nil {
			return err
		}
		m.Bump = bump
		if _, err := t.create(authority, a, &m); err != nil {
			return err
		}

		if meta.meta.NextCycle == ^uint16(0) {
			return ErrMathOverflow
		}
		meta.meta.NextCycle++
		if err := t.save(meta.addr, &meta.acc, &meta.meta); err != nil {
			return err
		}
		addr = a
		return nil
	}, zap.Stringer("authority", authority))
	return addr, err
}

// FreezeMarket encerra a fase de apostas. Só o operador.
func (e *Engine) FreezeMarket(ctx context.Context, authority, market ledger.Pubkey) error {
	return e.exec(ctx, "freeze_market", func(t *txn) error {
		ma, err := t.loadMarket(market)
		if err != nil {
			return err
		}
		m := &ma.market
		if m.Authority != authority {
			return ErrUnauthorized
		}
		if m.Resolved {
			return ErrMarketAlreadyResolved
		}
		if m.Frozen {
			return ErrMarketAlreadyFrozen
		}
		m.Frozen = true
		return t.save(ma.addr, &ma.acc, m)
	}, zap.Stringer("market", market))
}

// ResolveMarket define o lado vencedor. Exige mercado congelado.
//
// Se o lado vencedor não tem apostas, todo o pool perdedor vira taxa
// acumulada e o pool perdedor é zerado; os lamports já estão no escrow.
func (e *Engine) ResolveMarket(ctx context.Context, authority, market ledger.Pubkey, winning ledger.Side) error {
	return e.exec(ctx, "resolve_market", func(t *txn) error {
		if !winning.Valid() {
			return ErrInvalidWinningSide
		}
		ma, err := t.loadMarket(market)
		if err != nil {
			return err
		}
		m := &ma.market
		if m.Authority != authority {
			return ErrUnauthorized
		}
		if m.Resolved {
			return ErrMarketAlreadyResolved
		}
		if !m.Frozen {
			return ErrMarketNotFrozen
		}
		m.Resolved = true
		m.Winning = ledger.Winner(winning)

		winningPool, losingPool := m.Pool(winning), m.Pool(winning.Opposite())
		if winningPool == 0 && losingPool > 0 {
			fees, err := fixedpoint.Add(m.FeesAccrued, losingPool)
			if err != nil {
				return ErrMathOverflow
			}
			m.FeesAccrued = fees
			m.SetPool(winning.Opposite(), 0)
		}
		if err := t.save(ma.addr, &ma.acc, m); err != nil {
			return err
		}

		ev := events.MarketResolved{
			EventID:     uuid.NewString(),
			Market:      market.String(),
			Authority:   m.Authority.String(),
			WinningSide: uint8(winning),
			PoolYes:     m.PoolYes,
			PoolNo:      m.PoolNo,
			NoWinner:    winningPool == 0,
			FeesAccrued: m.FeesAccrued,
			Ts:          time.Now().UTC(),
		}
		t.emit(func(ctx context.Context, s EventSink) error { return s.PublishMarketResolved(ctx, ev) })
		return nil
	}, zap.Stringer("market", market), zap.Stringer("winning_side", winning))
}

// MarketView é o mercado decodificado com o saldo do escrow.
type MarketView struct {
	Address  ledger.Pubkey
	Market   ledger.Market
	Lamports uint64
	RentMin  uint64
}

// Market lê um mercado.
func (e *Engine) Market(ctx context.Context, market ledger.Pubkey) (MarketView, error) {
	var v MarketView
	err := e.view(ctx, func(t *txn) error {
		ma, err := t.loadMarket(market)
		if err != nil {
			return err
		}
		v = MarketView{
			Address:  market,
			Market:   ma.market,
			Lamports: ma.acc.Lamports,
			RentMin:  e.cfg.Rent.MinimumBalance(len(ma.acc.Data)),
		}
		return nil
	})
	return v, err
}

// AuthorityMeta lê o contador de ciclos do operador.
func (e *Engine) AuthorityMeta(ctx context.Context, authority ledger.Pubkey) (ledger.AuthorityMeta, error) {
	var meta ledger.AuthorityMeta
	err := e.view(ctx, func(t *txn) error {
		ma, err := t.loadMeta(authority)
		if err != nil {
			return err
		}
		meta = ma.meta
		return nil
	})
	return meta, err
}

// Markets lista os mercados ainda abertos do operador, percorrendo os ciclos
// 0..next_cycle-1 pela derivação (não há índice). Mercados fechados são
// pulados.
func (e *Engine) Markets(ctx context.Context, authority ledger.Pubkey) ([]MarketView, error) {
	var out []MarketView
	err := e.view(ctx, func(t *txn) error {
		meta, err := t.loadMeta(authority)
		if err != nil {
			return err
		}
		for cycle := uint16(0); cycle < meta.meta.NextCycle; cycle++ {
			addr, _, err := e.derive.Market(authority, cycle)
			if err != nil {
				return err
			}
			ma, err := t.loadMarket(addr)
			if errors.Is(err, ErrAccountNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, MarketView{
				Address:  addr,
				Market:   ma.market,
				Lamports: ma.acc.Lamports,
				RentMin:  e.cfg.Rent.MinimumBalance(len(ma.acc.Data)),
			})
		}
		return nil
	})
	return out, err
}
