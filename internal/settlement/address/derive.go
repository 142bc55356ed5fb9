// Package address calcula os endereços derivados das contas da liquidação a
// partir de uma tag de namespace, seeds e um bump verificável.
package address

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"filippo.io/edwards25519"

	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
)

// Tags de namespace das contas derivadas.
const (
	TagAuthorityMeta = "authority_meta"
	TagMarket        = "market"
	TagTicket        = "ticket"
)

const (
	maxSeeds   = 16
	maxSeedLen = 32
	pdaMarker  = "ProgramDerivedAddress"
)

var (
	ErrInvalidSeeds = errors.New("address: invalid seeds")
	// ErrOnCurve indica que o hash caiu sobre a curva ed25519 (bump inválido).
	ErrOnCurve = errors.New("address: derived address is on curve")
	ErrNoBump  = errors.New("address: no viable bump")
)

// Create deriva o endereço para seeds+bump. Falha se o resultado for um ponto
// válido ed25519, pois aí poderia existir uma chave privada para ele.
func Create(programID ledger.Pubkey, bump uint8, seeds ...[]byte) (ledger.Pubkey, error) {
	if len(seeds) > maxSeeds-1 {
		return ledger.Pubkey{}, ErrInvalidSeeds
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > maxSeedLen {
			return ledger.Pubkey{}, ErrInvalidSeeds
		}
		h.Write(s)
	}
	h.Write([]byte{bump})
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var out ledger.Pubkey
	copy(out[:], h.Sum(nil))
	if onCurve(out) {
		return ledger.Pubkey{}, ErrOnCurve
	}
	return out, nil
}

// Find procura o maior bump (255 → 0) que produz um endereço fora da curva.
func Find(programID ledger.Pubkey, seeds ...[]byte) (ledger.Pubkey, uint8, error) {
	for b := 255; b >= 0; b-- {
		addr, err := Create(programID, uint8(b), seeds...)
		if err == nil {
			return addr, uint8(b), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return ledger.Pubkey{}, 0, err
		}
	}
	return ledger.Pubkey{}, 0, ErrNoBump
}

func onCurve(p ledger.Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(p[:])
	return err == nil
}

// CycleSeed codifica o ciclo como 2 bytes little-endian.
func CycleSeed(cycle uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, cycle)
	return b
}

// Seeds de cada tipo de conta.

func AuthorityMetaSeeds(authority ledger.Pubkey) [][]byte {
	return [][]byte{[]byte(TagAuthorityMeta), authority[:]}
}

func MarketSeeds(authority ledger.Pubkey, cycle uint16) [][]byte {
	return [][]byte{[]byte(TagMarket), authority[:], CycleSeed(cycle)}
}

func TicketSeeds(market, user ledger.Pubkey) [][]byte {
	return [][]byte{[]byte(TagTicket), market[:], user[:]}
}

// Deriver amarra o program ID às derivações.
type Deriver struct {
	ProgramID ledger.Pubkey
}

func (d Deriver) AuthorityMeta(authority ledger.Pubkey) (ledger.Pubkey, uint8, error) {
	return Find(d.ProgramID, AuthorityMetaSeeds(authority)...)
}

func (d Deriver) Market(authority ledger.Pubkey, cycle uint16) (ledger.Pubkey, uint8, error) {
	return Find(d.ProgramID, MarketSeeds(authority, cycle)...)
}

func (d Deriver) Ticket(market, user ledger.Pubkey) (ledger.Pubkey, uint8, error) {
	return Find(d.ProgramID, TicketSeeds(market, user)...)
}

// Verify confere se addr corresponde às seeds com o bump gravado no registro.
func (d Deriver) Verify(addr ledger.Pubkey, bump uint8, seeds [][]byte) bool {
	got, err := Create(d.ProgramID, bump, seeds...)
	return err == nil && got == addr
}
