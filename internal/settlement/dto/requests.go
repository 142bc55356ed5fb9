package dto

type CreateMarketRequest struct {
	Title    string  `json:"title"`
	LabelYes string  `json:"label_yes"`
	LabelNo  string  `json:"label_no"`
	FeeBps   *uint16 `json:"fee_bps,omitempty"` // opcional; padrão 20 bps
}

type CreateTicketRequest struct {
	Side uint8 `json:"side"` // 0 = yes, 1 = no
}

type PlaceBetRequest struct {
	Amount uint64 `json:"amount"` // lamports
}

type ResolveMarketRequest struct {
	WinningSide uint8 `json:"winning_side"`
}

type DepositRequest struct {
	To     string `json:"to,omitempty"` // padrão: o próprio signer
	Amount uint64 `json:"amount"`
}
