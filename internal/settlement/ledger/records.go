// Package ledger define os registros persistidos da liquidação
// (AuthorityMeta, Market, Ticket) e o layout binário de cada um.
package ledger

import (
	"bytes"
	"fmt"
)

// Side é o lado escolhido por um ticket.
type Side uint8

const (
	SideYes Side = 0
	SideNo  Side = 1
)

// Valid indica side 0 ou 1.
func (s Side) Valid() bool { return s <= SideNo }

// Opposite retorna o outro lado.
func (s Side) Opposite() Side { return 1 - s }

func (s Side) String() string {
	switch s {
	case SideYes:
		return "yes"
	case SideNo:
		return "no"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// Outcome é o resultado de um mercado: Unresolved, Yes ou No.
// Só o layout persistido usa o sentinela 255 para "não definido".
type Outcome struct {
	side Side
	set  bool
}

// Unresolved é o resultado ainda não definido.
var Unresolved = Outcome{}

// Winner cria um resultado com o lado vencedor.
func Winner(s Side) Outcome { return Outcome{side: s, set: true} }

// Side retorna o lado vencedor e se ele existe.
func (o Outcome) Side() (Side, bool) { return o.side, o.set }

// IsSet indica se o resultado foi definido.
func (o Outcome) IsSet() bool { return o.set }

// Wins indica se s é o lado vencedor.
func (o Outcome) Wins(s Side) bool { return o.set && o.side == s }

func (o Outcome) String() string {
	if !o.set {
		return "unresolved"
	}
	return o.side.String()
}

// Limites de texto e taxas padrão do mercado.
const (
	TitleMaxLen = 64
	LabelMaxLen = 32

	AuthorityFeeBpsDefault uint16 = 20  // 0,2%
	HostFeeBpsDefault      uint16 = 670 // 6,7%
)

// AuthorityMeta guarda o contador de ciclos de um operador.
type AuthorityMeta struct {
	Authority Pubkey
	NextCycle uint16
	Bump      uint8
}

// Market é um mercado binário e o seu escrow.
// PoolYes + PoolNo é uma partição lógica do saldo da própria conta do mercado.
type Market struct {
	Authority   Pubkey
	Cycle       uint16
	PoolYes     uint64
	PoolNo      uint64
	Resolved    bool
	Frozen      bool
	FeeBps      uint16
	HostFeeBps  uint16
	Bump        uint8
	Winning     Outcome
	FeesAccrued uint64
	Title       [TitleMaxLen]byte
	LabelYes    [LabelMaxLen]byte
	LabelNo     [LabelMaxLen]byte
}

// Pool retorna o pool do lado s.
func (m *Market) Pool(s Side) uint64 {
	if s == SideYes {
		return m.PoolYes
	}
	return m.PoolNo
}

// SetPool atribui o pool do lado s.
func (m *Market) SetPool(s Side, v uint64) {
	if s == SideYes {
		m.PoolYes = v
		return
	}
	m.PoolNo = v
}

// WinningPool retorna o pool do lado vencedor (0 se não resolvido).
func (m *Market) WinningPool() uint64 {
	s, ok := m.Winning.Side()
	if !ok {
		return 0
	}
	return m.Pool(s)
}

// TotalPool soma os dois pools com checagem de overflow.
func (m *Market) TotalPool() (uint64, bool) {
	sum := m.PoolYes + m.PoolNo
	return sum, sum >= m.PoolYes
}

// TitleText, LabelYesText e LabelNoText leem os buffers até o primeiro NUL.
func (m *Market) TitleText() string    { return TrimText(m.Title[:]) }
func (m *Market) LabelYesText() string { return TrimText(m.LabelYes[:]) }
func (m *Market) LabelNoText() string  { return TrimText(m.LabelNo[:]) }

// Ticket é a posição de um apostador em um mercado.
type Ticket struct {
	User    Pubkey
	Market  Pubkey
	Side    Side
	Amount  uint64
	Claimed bool
	Bump    uint8
}

// FixedText copia src para dst preenchendo o restante com zeros.
// Retorna false se src não couber.
func FixedText(dst []byte, src string) bool {
	if len(src) > len(dst) {
		return false
	}
	clear(dst)
	copy(dst, src)
	return true
}

// TrimText lê um buffer de largura fixa até o primeiro byte zero.
func TrimText(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
