package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Tamanhos dos registros persistidos (sem padding).
const (
	AuthorityMetaSize = 32 + 2 + 1
	MarketSize        = 32 + 2 + 8 + 8 + 1 + 1 + 2 + 2 + 1 + 1 + 8 + TitleMaxLen + LabelMaxLen + LabelMaxLen
	TicketSize        = 32 + 32 + 1 + 8 + 1 + 1
)

// winningUnset é o byte persistido para Outcome não definido.
const winningUnset = 255

// ErrMalformedRecord indica bytes que não formam um registro válido.
var ErrMalformedRecord = errors.New("ledger: malformed record")

// encoder escreve campos little-endian em sequência.
type encoder struct {
	buf []byte
	off int
}

func (e *encoder) bytes(b []byte) { e.off += copy(e.buf[e.off:], b) }
func (e *encoder) u8(v uint8)     { e.buf[e.off] = v; e.off++ }
func (e *encoder) u16(v uint16)   { binary.LittleEndian.PutUint16(e.buf[e.off:], v); e.off += 2 }
func (e *encoder) u64(v uint64)   { binary.LittleEndian.PutUint64(e.buf[e.off:], v); e.off += 8 }
func (e *encoder) bool(v bool) {
	if v {
		e.u8(1)
		return
	}
	e.u8(0)
}

type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) bytes(dst []byte) { d.off += copy(dst, d.buf[d.off:d.off+len(dst)]) }
func (d *decoder) u8() uint8        { v := d.buf[d.off]; d.off++; return v }
func (d *decoder) u16() uint16 {
	v := binary.LittleEndian.Uint16(d.buf[d.off:])
	d.off += 2
	return v
}
func (d *decoder) u64() uint64 {
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v
}
func (d *decoder) bool(field string) bool {
	switch v := d.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		if d.err == nil {
			d.err = fmt.Errorf("%w: %s=%d", ErrMalformedRecord, field, v)
		}
		return false
	}
}

func checkLen(kind string, b []byte, want int) error {
	if len(b) != want {
		return fmt.Errorf("%w: %s expects %d bytes, got %d", ErrMalformedRecord, kind, want, len(b))
	}
	return nil
}

// MarshalBinary: identity(32) | next_cycle(2 LE) | bump(1)
func (m *AuthorityMeta) MarshalBinary() ([]byte, error) {
	e := encoder{buf: make([]byte, AuthorityMetaSize)}
	e.bytes(m.Authority[:])
	e.u16(m.NextCycle)
	e.u8(m.Bump)
	return e.buf, nil
}

func (m *AuthorityMeta) UnmarshalBinary(b []byte) error {
	if err := checkLen("authority_meta", b, AuthorityMetaSize); err != nil {
		return err
	}
	d := decoder{buf: b}
	d.bytes(m.Authority[:])
	m.NextCycle = d.u16()
	m.Bump = d.u8()
	return nil
}

// MarshalBinary segue a ordem dos campos do registro; winning_side usa 255 para não definido.
func (m *Market) MarshalBinary() ([]byte, error) {
	e := encoder{buf: make([]byte, MarketSize)}
	e.bytes(m.Authority[:])
	e.u16(m.Cycle)
	e.u64(m.PoolYes)
	e.u64(m.PoolNo)
	e.bool(m.Resolved)
	e.bool(m.Frozen)
	e.u16(m.FeeBps)
	e.u16(m.HostFeeBps)
	e.u8(m.Bump)
	if s, ok := m.Winning.Side(); ok {
		e.u8(uint8(s))
	} else {
		e.u8(winningUnset)
	}
	e.u64(m.FeesAccrued)
	e.bytes(m.Title[:])
	e.bytes(m.LabelYes[:])
	e.bytes(m.LabelNo[:])
	return e.buf, nil
}

func (m *Market) UnmarshalBinary(b []byte) error {
	if err := checkLen("market", b, MarketSize); err != nil {
		return err
	}
	d := decoder{buf: b}
	d.bytes(m.Authority[:])
	m.Cycle = d.u16()
	m.PoolYes = d.u64()
	m.PoolNo = d.u64()
	m.Resolved = d.bool("resolved")
	m.Frozen = d.bool("frozen")
	m.FeeBps = d.u16()
	m.HostFeeBps = d.u16()
	m.Bump = d.u8()
	switch ws := d.u8(); {
	case ws == winningUnset:
		m.Winning = Unresolved
	case Side(ws).Valid():
		m.Winning = Winner(Side(ws))
	default:
		return fmt.Errorf("%w: winning_side=%d", ErrMalformedRecord, ws)
	}
	m.FeesAccrued = d.u64()
	d.bytes(m.Title[:])
	d.bytes(m.LabelYes[:])
	d.bytes(m.LabelNo[:])
	return d.err
}

// MarshalBinary: user(32) | market(32) | side(1) | amount(8 LE) | claimed(1) | bump(1)
func (t *Ticket) MarshalBinary() ([]byte, error) {
	e := encoder{buf: make([]byte, TicketSize)}
	e.bytes(t.User[:])
	e.bytes(t.Market[:])
	e.u8(uint8(t.Side))
	e.u64(t.Amount)
	e.bool(t.Claimed)
	e.u8(t.Bump)
	return e.buf, nil
}

func (t *Ticket) UnmarshalBinary(b []byte) error {
	if err := checkLen("ticket", b, TicketSize); err != nil {
		return err
	}
	d := decoder{buf: b}
	d.bytes(t.User[:])
	d.bytes(t.Market[:])
	t.Side = Side(d.u8())
	if !t.Side.Valid() {
		return fmt.Errorf("%w: side=%d", ErrMalformedRecord, t.Side)
	}
	t.Amount = d.u64()
	t.Claimed = d.bool("claimed")
	t.Bump = d.u8()
	return d.err
}
