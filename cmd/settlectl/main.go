// settlectl é a ferramenta de leitura do operador: deriva endereços e
// inspeciona mercados, tickets e saldos direto no store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/radieske/stream-bets-settlement/internal/settlement/address"
	"github.com/radieske/stream-bets-settlement/internal/settlement/app"
	"github.com/radieske/stream-bets-settlement/internal/settlement/engine"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
	"github.com/radieske/stream-bets-settlement/internal/shared/config"
)

const usage = `usage: settlectl <command> [flags]

commands:
  derive-market -authority A -cycle N
  markets       -authority A
  ticket        -market M -user U
  quote         -market M -user U
  balance       -address X
`

// opener abre o engine sob demanda; derive-market não precisa de store.
type opener func(ctx context.Context) (*engine.Engine, func(), error)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, openFromEnv); err != nil {
		fmt.Fprintln(os.Stderr, "settlectl:", err)
		os.Exit(1)
	}
}

func openFromEnv(ctx context.Context) (*engine.Engine, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = "sqlite"
	}
	ecfg, err := app.EngineConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return engine.New(st, ecfg, nil), func() { _ = st.Close() }, nil
}

func run(ctx context.Context, args []string, out io.Writer, open opener) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("missing command")
	}
	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	authority := fs.String("authority", "", "operator pubkey (base58)")
	cycle := fs.Uint("cycle", 0, "market cycle")
	market := fs.String("market", "", "market address (base58)")
	user := fs.String("user", "", "user pubkey (base58)")
	address := fs.String("address", "", "wallet address (base58)")
	program := fs.String("program", "", "program id (base58); default PROGRAM_ID")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch cmd {
	case "derive-market":
		return deriveMarket(out, *program, *authority, *cycle)
	case "markets", "ticket", "quote", "balance":
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	eng, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	switch cmd {
	case "markets":
		a, err := ledger.ParsePubkey(*authority)
		if err != nil {
			return fmt.Errorf("-authority: %w", err)
		}
		return listMarkets(ctx, out, eng, a)
	case "ticket", "quote":
		m, err := ledger.ParsePubkey(*market)
		if err != nil {
			return fmt.Errorf("-market: %w", err)
		}
		u, err := ledger.ParsePubkey(*user)
		if err != nil {
			return fmt.Errorf("-user: %w", err)
		}
		if cmd == "ticket" {
			return showTicket(ctx, out, eng, m, u)
		}
		return showQuote(ctx, out, eng, m, u)
	default:
		a, err := ledger.ParsePubkey(*address)
		if err != nil {
			return fmt.Errorf("-address: %w", err)
		}
		bal, err := eng.Balance(ctx, a)
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(out)
		table.Header("Address", "Lamports")
		table.Append(a.String(), fmt.Sprintf("%d", bal))
		return table.Render()
	}
}

func deriveMarket(out io.Writer, program, authority string, cycle uint) error {
	if program == "" {
		program = os.Getenv("PROGRAM_ID")
	}
	pid, err := ledger.ParsePubkey(program)
	if err != nil {
		return fmt.Errorf("-program: %w", err)
	}
	a, err := ledger.ParsePubkey(authority)
	if err != nil {
		return fmt.Errorf("-authority: %w", err)
	}
	if cycle > 0xFFFF {
		return fmt.Errorf("-cycle out of range: %d", cycle)
	}
	d := address.Deriver{ProgramID: pid}
	meta, metaBump, err := d.AuthorityMeta(a)
	if err != nil {
		return err
	}
	addr, bump, err := d.Market(a, uint16(cycle))
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(out)
	table.Header("Account", "Address", "Bump")
	table.Append("authority_meta", meta.String(), fmt.Sprintf("%d", metaBump))
	table.Append(fmt.Sprintf("market[%d]", cycle), addr.String(), fmt.Sprintf("%d", bump))
	return table.Render()
}

func listMarkets(ctx context.Context, out io.Writer, eng *engine.Engine, authority ledger.Pubkey) error {
	views, err := eng.Markets(ctx, authority)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(out)
	table.Header("Cycle", "Address", "Title", "Yes", "No", "State", "Fees")
	for _, v := range views {
		m := v.Market
		table.Append(
			fmt.Sprintf("%d", m.Cycle),
			v.Address.String(),
			m.TitleText(),
			fmt.Sprintf("%d", m.PoolYes),
			fmt.Sprintf("%d", m.PoolNo),
			state(&m),
			fmt.Sprintf("%d", m.FeesAccrued),
		)
	}
	return table.Render()
}

func state(m *ledger.Market) string {
	switch {
	case m.Resolved:
		return "resolved:" + m.Winning.String()
	case m.Frozen:
		return "frozen"
	default:
		return "open"
	}
}

func showTicket(ctx context.Context, out io.Writer, eng *engine.Engine, market, user ledger.Pubkey) error {
	v, err := eng.Ticket(ctx, market, user)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(out)
	table.Header("Ticket", "Side", "Amount", "Claimed", "Lamports")
	table.Append(v.Address.String(), v.Ticket.Side.String(), fmt.Sprintf("%d", v.Ticket.Amount),
		fmt.Sprintf("%t", v.Ticket.Claimed), fmt.Sprintf("%d", v.Lamports))
	return table.Render()
}

func showQuote(ctx context.Context, out io.Writer, eng *engine.Engine, market, user ledger.Pubkey) error {
	q, err := eng.QuotePayout(ctx, market, user)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(out)
	table.Header("Side", "Amount", "Winner", "Projected", "Gross", "Fee", "Payout")
	table.Append(q.Side.String(), fmt.Sprintf("%d", q.Amount), fmt.Sprintf("%t", q.Winner),
		fmt.Sprintf("%t", q.Projected), fmt.Sprintf("%d", q.Gross), fmt.Sprintf("%d", q.Fee), fmt.Sprintf("%d", q.Payout))
	return table.Render()
}
