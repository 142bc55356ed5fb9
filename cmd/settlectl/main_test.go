package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/stream-bets-settlement/internal/settlement/address"
	"github.com/radieske/stream-bets-settlement/internal/settlement/engine"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
	"github.com/radieske/stream-bets-settlement/internal/settlement/rent"
	"github.com/radieske/stream-bets-settlement/internal/settlement/store"
)

func key(name string) ledger.Pubkey { return ledger.Pubkey(sha256.Sum256([]byte(name))) }

func seeded(t *testing.T) (*engine.Engine, ledger.Pubkey) {
	t.Helper()
	ctx := context.Background()
	eng := engine.New(store.NewMemory(), engine.Config{
		ProgramID: key("program"), Host: key("host"), Rent: rent.Default(), FaucetEnabled: true,
	}, nil)
	for _, who := range []string{"operator", "alice"} {
		_, err := eng.Deposit(ctx, key(who), 10_000_000)
		require.NoError(t, err)
	}
	_, err := eng.InitAuthorityMeta(ctx, key("operator"))
	require.NoError(t, err)
	m, err := eng.InitializeMarket(ctx, key("operator"), engine.MarketParams{Title: "First blood", LabelYes: "Y", LabelNo: "N"})
	require.NoError(t, err)
	_, err = eng.CreateTicket(ctx, key("alice"), m, ledger.SideYes)
	require.NoError(t, err)
	require.NoError(t, eng.PlaceBet(ctx, key("alice"), m, 250))
	return eng, m
}

func TestRunReadCommands(t *testing.T) {
	eng, m := seeded(t)
	open := func(context.Context) (*engine.Engine, func(), error) { return eng, func() {}, nil }
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"markets", "-authority", key("operator").String()}, &out, open))
	assert.Contains(t, out.String(), m.String())
	assert.Contains(t, out.String(), "First blood")
	assert.Contains(t, out.String(), "open")

	out.Reset()
	require.NoError(t, run(ctx, []string{"ticket", "-market", m.String(), "-user", key("alice").String()}, &out, open))
	assert.Contains(t, out.String(), "250")

	out.Reset()
	require.NoError(t, run(ctx, []string{"quote", "-market", m.String(), "-user", key("alice").String()}, &out, open))
	assert.Contains(t, out.String(), "true")

	out.Reset()
	require.NoError(t, run(ctx, []string{"balance", "-address", key("host").String()}, &out, open))
	assert.Contains(t, out.String(), key("host").String())
}

func TestRunDeriveMarket(t *testing.T) {
	var out bytes.Buffer
	noStore := func(context.Context) (*engine.Engine, func(), error) {
		t.Fatal("derive-market must not open the store")
		return nil, nil, nil
	}
	err := run(context.Background(), []string{"derive-market", "-program", key("program").String(), "-authority", key("operator").String(), "-cycle", "3"}, &out, noStore)
	require.NoError(t, err)

	want, _, err := address.Deriver{ProgramID: key("program")}.Market(key("operator"), 3)
	require.NoError(t, err)
	assert.Contains(t, out.String(), want.String())
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer
	open := func(context.Context) (*engine.Engine, func(), error) { eng, _ := seeded(t); return eng, func() {}, nil }

	assert.Error(t, run(context.Background(), nil, &out, open))
	assert.Error(t, run(context.Background(), []string{"explode"}, &out, open))
	assert.Error(t, run(context.Background(), []string{"markets", "-authority", "bad!"}, &out, open))
	assert.Error(t, run(context.Background(), []string{"derive-market", "-program", key("program").String(), "-authority", key("operator").String(), "-cycle", "70000"}, &out, open))
}
