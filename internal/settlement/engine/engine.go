// Package engine é a máquina de estados da liquidação pari-mutuel binária:
// criação de mercados e tickets, apostas, congelamento, resolução, pagamento
// pro-rata e o protocolo de recuperação (saque de taxas e fechamento).
//
// Toda instrução roda em uma única transação do store. O chamador chega já
// autenticado (assinatura verificada pela camada HTTP); aqui só se checa
// identidade no nível do programa: operador, plataforma e apostador.
package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/internal/settlement/address"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
	"github.com/radieske/stream-bets-settlement/internal/settlement/rent"
	"github.com/radieske/stream-bets-settlement/internal/settlement/store"
	"github.com/radieske/stream-bets-settlement/pkg/contracts/events"
)

// DustMax é a sobra máxima (em lamports) varrida no fechamento do mercado.
const DustMax uint64 = 10

// maxAttempts limita as repetições de uma instrução após ErrWriteConflict.
const maxAttempts = 3

// Tipos de movimentação reportados em Hooks.OnTransfer.
const (
	TransferBet        = "bet"
	TransferPayout     = "payout"
	TransferFee        = "fee"
	TransferSalvage    = "salvage"
	TransferDust       = "dust"
	TransferRent       = "rent"
	TransferRentRefund = "rent_refund"
	TransferDeposit    = "deposit"
)

// EventSink recebe os eventos depois do commit. Falhas são só logadas.
type EventSink interface {
	PublishMarketResolved(ctx context.Context, e events.MarketResolved) error
	PublishPoolsUpdated(ctx context.Context, e events.PoolsUpdated) error
}

// Hooks permite observar instruções e movimentações (métricas).
type Hooks struct {
	OnInstruction func(instruction string, err error)
	OnTransfer    func(kind string, amount uint64)
}

// Config são os parâmetros fixos do programa.
type Config struct {
	ProgramID     ledger.Pubkey
	Host          ledger.Pubkey // carteira da plataforma: saca taxas e fecha mercados
	HostFeeBps    *uint16       // nil usa ledger.HostFeeBpsDefault
	Rent          rent.Calculator
	FaucetEnabled bool
}

func (c Config) hostFeeBps() uint16 {
	if c.HostFeeBps != nil {
		return *c.HostFeeBps
	}
	return ledger.HostFeeBpsDefault
}

// Engine executa as instruções da liquidação sobre um Store.
type Engine struct {
	store  store.Store
	cfg    Config
	derive address.Deriver
	sink   EventSink
	hooks  Hooks
	log    *zap.Logger
}

type Option func(*Engine)

func WithEventSink(s EventSink) Option { return func(e *Engine) { e.sink = s } }
func WithHooks(h Hooks) Option         { return func(e *Engine) { e.hooks = h } }

func New(st store.Store, cfg Config, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store:  st,
		cfg:    cfg,
		derive: address.Deriver{ProgramID: cfg.ProgramID},
		log:    log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) ProgramID() ledger.Pubkey       { return e.cfg.ProgramID }
func (e *Engine) Host() ledger.Pubkey            { return e.cfg.Host }
func (e *Engine) Deriver() address.Deriver       { return e.derive }
func (e *Engine) Ping(ctx context.Context) error { return e.store.Ping(ctx) }

// exec roda fn como uma instrução atômica. Métricas e eventos só saem depois
// do commit. Um conflito de escrita refaz a instrução do zero em uma nova
// transação, até maxAttempts vezes.
func (e *Engine) exec(ctx context.Context, instruction string, fn func(t *txn) error, fields ...zap.Field) error {
	var (
		t   *txn
		err error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		t = &txn{ctx: ctx, e: e}
		err = store.WithTx(ctx, e.store, func(tx store.Tx) error {
			t.tx = tx
			return fn(t)
		})
		if !errors.Is(err, ErrWriteConflict) {
			break
		}
		e.log.Debug("write conflict, retrying", zap.String("instruction", instruction), zap.Int("attempt", attempt))
	}
	if e.hooks.OnInstruction != nil {
		e.hooks.OnInstruction(instruction, err)
	}

	fields = append(fields, zap.String("instruction", instruction))
	if err != nil {
		e.log.Warn("instruction failed", append(fields, zap.String("code", CodeOf(err)), zap.Error(err))...)
		return err
	}
	e.log.Debug("instruction applied", fields...)

	if e.hooks.OnTransfer != nil {
		for _, tr := range t.transfers {
			e.hooks.OnTransfer(tr.kind, tr.amount)
		}
	}
	if e.sink != nil {
		for _, publish := range t.outbox {
			if perr := publish(ctx, e.sink); perr != nil {
				e.log.Warn("publish event failed", append(fields, zap.Error(perr))...)
			}
		}
	}
	return nil
}

// view roda fn em uma transação só de leitura (sempre descartada).
func (e *Engine) view(ctx context.Context, fn func(t *txn) error) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(&txn{ctx: ctx, tx: tx, e: e})
}
