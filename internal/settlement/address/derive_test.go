package address_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/stream-bets-settlement/internal/settlement/address"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
)

var program = ledger.Pubkey{0xCF, 0x83, 0xCF, 0xFA}

func key(b byte) ledger.Pubkey {
	var p ledger.Pubkey
	p[0] = b
	p[31] = b
	return p
}

func TestFind_Deterministic(t *testing.T) {
	d := address.Deriver{ProgramID: program}
	a1, b1, err := d.Market(key(1), 0)
	require.NoError(t, err)
	a2, b2, err := d.Market(key(1), 0)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)

	assert.True(t, d.Verify(a1, b1, address.MarketSeeds(key(1), 0)))
}

func TestFind_DistinctTuples(t *testing.T) {
	d := address.Deriver{ProgramID: program}
	m0, _, err := d.Market(key(1), 0)
	require.NoError(t, err)
	m1, _, err := d.Market(key(1), 1)
	require.NoError(t, err)
	other, _, err := d.Market(key(2), 0)
	require.NoError(t, err)
	meta, _, err := d.AuthorityMeta(key(1))
	require.NoError(t, err)

	assert.NotEqual(t, m0, m1)
	assert.NotEqual(t, m0, other)
	assert.NotEqual(t, m0, meta)

	t1, _, err := d.Ticket(m0, key(3))
	require.NoError(t, err)
	t2, _, err := d.Ticket(m0, key(4))
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)
}

func TestVerify_RejectsWrongBumpOrSeeds(t *testing.T) {
	d := address.Deriver{ProgramID: program}
	addr, bump, err := d.Ticket(key(5), key(6))
	require.NoError(t, err)

	assert.False(t, d.Verify(addr, bump, address.TicketSeeds(key(6), key(5))))
	assert.False(t, d.Verify(addr, bump-1, address.TicketSeeds(key(5), key(6))))

	other := address.Deriver{ProgramID: key(9)}
	assert.False(t, other.Verify(addr, bump, address.TicketSeeds(key(5), key(6))))
}

func TestDerivedAddressIsOffCurve(t *testing.T) {
	// uma chave ed25519 real está sobre a curva; um endereço derivado nunca está
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var wallet ledger.Pubkey
	copy(wallet[:], pub)

	d := address.Deriver{ProgramID: program}
	addr, _, err := d.AuthorityMeta(wallet)
	require.NoError(t, err)
	assert.NotEqual(t, wallet, addr)
}

func TestCreate_SeedLimits(t *testing.T) {
	long := make([]byte, 33)
	_, err := address.Create(program, 255, long)
	assert.ErrorIs(t, err, address.ErrInvalidSeeds)
}

func TestCycleSeed(t *testing.T) {
	assert.Equal(t, []byte{0x02, 0x01}, address.CycleSeed(0x0102))
}
