package ledger

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeySize é o tamanho de uma identidade (32 bytes).
const PubkeySize = 32

// Pubkey identifica uma conta: carteira, operador, plataforma ou conta derivada.
type Pubkey [PubkeySize]byte

// ErrInvalidPubkey indica texto base58 que não decodifica em 32 bytes.
var ErrInvalidPubkey = errors.New("ledger: invalid pubkey")

// ParsePubkey decodifica a forma base58.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	b, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	if len(b) != PubkeySize {
		return pk, fmt.Errorf("%w: got %d bytes", ErrInvalidPubkey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// MustPubkey é ParsePubkey para constantes; entra em pânico se inválido.
func MustPubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PubkeyFromBytes copia b (deve ter 32 bytes).
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeySize {
		return pk, fmt.Errorf("%w: got %d bytes", ErrInvalidPubkey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (p Pubkey) String() string { return base58.Encode(p[:]) }

// IsZero indica a identidade nula (programa de sistema).
func (p Pubkey) IsZero() bool { return p == Pubkey{} }

func (p Pubkey) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Pubkey) UnmarshalText(b []byte) error {
	pk, err := ParsePubkey(string(b))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}
