package dto

import (
	"github.com/radieske/stream-bets-settlement/internal/settlement/engine"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
)

type AuthorityMetaResponse struct {
	Address   string `json:"address"`
	Authority string `json:"authority"`
	NextCycle uint16 `json:"next_cycle"`
}

type MarketResponse struct {
	Address     string `json:"address"`
	Authority   string `json:"authority"`
	Cycle       uint16 `json:"cycle"`
	Title       string `json:"title"`
	LabelYes    string `json:"label_yes"`
	LabelNo     string `json:"label_no"`
	PoolYes     uint64 `json:"pool_yes"`
	PoolNo      uint64 `json:"pool_no"`
	Resolved    bool   `json:"resolved"`
	Frozen      bool   `json:"frozen"`
	FeeBps      uint16 `json:"fee_bps"`
	HostFeeBps  uint16 `json:"host_fee_bps"`
	WinningSide *uint8 `json:"winning_side"` // null enquanto não resolvido
	FeesAccrued uint64 `json:"fees_accrued"`
	Lamports    uint64 `json:"lamports"`
	RentMin     uint64 `json:"rent_min"`
}

type TicketResponse struct {
	Address string `json:"address"`
	User    string `json:"user"`
	Market  string `json:"market"`
	Side    uint8  `json:"side"`
	Amount  uint64 `json:"amount"`
	Claimed bool   `json:"claimed"`
}

type BalanceResponse struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewMarketResponse converte a visão do engine para o formato da API.
func NewMarketResponse(v engine.MarketView) MarketResponse {
	m := v.Market
	resp := MarketResponse{
		Address:     v.Address.String(),
		Authority:   m.Authority.String(),
		Cycle:       m.Cycle,
		Title:       m.TitleText(),
		LabelYes:    m.LabelYesText(),
		LabelNo:     m.LabelNoText(),
		PoolYes:     m.PoolYes,
		PoolNo:      m.PoolNo,
		Resolved:    m.Resolved,
		Frozen:      m.Frozen,
		FeeBps:      m.FeeBps,
		HostFeeBps:  m.HostFeeBps,
		FeesAccrued: m.FeesAccrued,
		Lamports:    v.Lamports,
		RentMin:     v.RentMin,
	}
	if side, ok := m.Winning.Side(); ok {
		s := uint8(side)
		resp.WinningSide = &s
	}
	return resp
}

func NewTicketResponse(v engine.TicketView) TicketResponse {
	return TicketResponse{
		Address: v.Address.String(),
		User:    v.Ticket.User.String(),
		Market:  v.Ticket.Market.String(),
		Side:    uint8(v.Ticket.Side),
		Amount:  v.Ticket.Amount,
		Claimed: v.Ticket.Claimed,
	}
}

func NewAuthorityMetaResponse(addr ledger.Pubkey, meta ledger.AuthorityMeta) AuthorityMetaResponse {
	return AuthorityMetaResponse{
		Address:   addr.String(),
		Authority: meta.Authority.String(),
		NextCycle: meta.NextCycle,
	}
}
