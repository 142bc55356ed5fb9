package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/internal/settlement/dto"
	"github.com/radieske/stream-bets-settlement/internal/settlement/engine"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
)

func (a *API) getAuthority(w http.ResponseWriter, r *http.Request) {
	authority, ok := pubkeyParam(w, r, "authority")
	if !ok {
		return
	}
	meta, err := a.Engine.AuthorityMeta(r.Context(), authority)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	addr, _, err := a.Engine.Deriver().AuthorityMeta(authority)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAuthorityMetaResponse(addr, meta))
}

func (a *API) listMarkets(w http.ResponseWriter, r *http.Request) {
	authority, ok := pubkeyParam(w, r, "authority")
	if !ok {
		return
	}
	views, err := a.Engine.Markets(r.Context(), authority)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]dto.MarketResponse, 0, len(views))
	for _, v := range views {
		out = append(out, dto.NewMarketResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

// getMarket lê o mercado, preferencialmente do cache
func (a *API) getMarket(w http.ResponseWriter, r *http.Request) {
	market, ok := pubkeyParam(w, r, "market")
	if !ok {
		return
	}
	if a.Cache != nil {
		cached, hit, err := a.Cache.Get(r.Context(), market.String())
		if err != nil {
			a.Log.Warn("cache get failed", zap.Stringer("market", market), zap.Error(err))
		}
		if hit {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}
	a.respondMarket(w, r, http.StatusOK, market)
}

func (a *API) getTicket(w http.ResponseWriter, r *http.Request) {
	market, ok := pubkeyParam(w, r, "market")
	if !ok {
		return
	}
	user, ok := pubkeyParam(w, r, "user")
	if !ok {
		return
	}
	a.respondTicket(w, r, http.StatusOK, market, user)
}

func (a *API) getQuote(w http.ResponseWriter, r *http.Request) {
	market, ok := pubkeyParam(w, r, "market")
	if !ok {
		return
	}
	user, ok := pubkeyParam(w, r, "user")
	if !ok {
		return
	}
	q, err := a.Engine.QuotePayout(r.Context(), market, user)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := pubkeyParam(w, r, "address")
	if !ok {
		return
	}
	bal, err := a.Engine.Balance(r.Context(), addr)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Address: addr.String(), Lamports: bal})
}

func (a *API) initAuthorityMeta(w http.ResponseWriter, r *http.Request) {
	authority := signer(r)
	addr, err := a.Engine.InitAuthorityMeta(r.Context(), authority)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewAuthorityMetaResponse(addr, ledger.AuthorityMeta{Authority: authority}))
}

func (a *API) createMarket(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMarketRequest
	if !decode(w, r, &req) {
		return
	}
	market, err := a.Engine.InitializeMarket(r.Context(), signer(r), engine.MarketParams{
		Title:    req.Title,
		LabelYes: req.LabelYes,
		LabelNo:  req.LabelNo,
		FeeBps:   req.FeeBps,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respondMarket(w, r, http.StatusCreated, market)
}

func (a *API) freezeMarket(w http.ResponseWriter, r *http.Request) {
	market, ok := pubkeyParam(w, r, "market")
	if !ok {
		return
	}
	if err := a.Engine.FreezeMarket(r.Context(), signer(r), market); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respondMarket(w, r, http.StatusOK, market)
}

func (a *API) resolveMarket(w http.ResponseWriter, r *http.Request) {
	market, ok := pubkeyParam(w, r, "market")
	if !ok {
		return
	}
	var req dto.ResolveMarketRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.Engine.ResolveMarket(r.Context(), signer(r), market, ledger.Side(req.WinningSide)); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respondMarket(w, r, http.StatusOK, market)
}

func (a *API) createTicket(w http.ResponseWriter, r *http.Request) {
	market, ok := pubkeyParam(w, r, "market")
	if !ok {
		return
	}
	var req dto.CreateTicketRequest
	if !decode(w, r, &req) {
		return
	}
	user := signer(r)
	if _, err := a.Engine.CreateTicket(r.Context(), user, market, ledger.Side(req.Side)); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respondTicket(w, r, http.StatusCreated, market, user)
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	market, ok := pubkeyParam(w, r, "market")
	if !ok {
		return
	}
	var req dto.PlaceBetRequest
	if !decode(w, r, &req) {
		return
	}
	user := signer(r)
	if err := a.Engine.PlaceBet(r.Context(), user, market, req.Amount); err != nil {
		a.fail(w, r, err)
		return
	}
	a.invalidate(r, market)
	a.respondTicket(w, r, http.StatusOK, market, user)
}

func (a *API) claim(w http.ResponseWriter, r *http.Request) {
	market, ok := pubkeyParam(w, r, "market")
	if !ok {
		return
	}
	res, err := a.Engine.ClaimWinnings(r.Context(), signer(r), market)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.invalidate(r, market)
	writeJSON(w, http.StatusOK, res)
}

// closeTicket só fecha o ticket do próprio signer.
func (a *API) closeTicket(w http.ResponseWriter, r *http.Request) {
	market, ok := pubkeyParam(w, r, "market")
	if !ok {
		return
	}
	user, ok := pubkeyParam(w, r, "user")
	if !ok {
		return
	}
	if user != signer(r) {
		a.fail(w, r, engine.ErrUnauthorized)
		return
	}
	if err := a.Engine.CloseTicket(r.Context(), user, market); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) withdrawFees(w http.ResponseWriter, r *http.Request) {
	market, ok := pubkeyParam(w, r, "market")
	if !ok {
		return
	}
	split, err := a.Engine.WithdrawFees(r.Context(), signer(r), market)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.invalidate(r, market)
	writeJSON(w, http.StatusOK, split)
}

func (a *API) closeMarket(w http.ResponseWriter, r *http.Request) {
	market, ok := pubkeyParam(w, r, "market")
	if !ok {
		return
	}
	res, err := a.Engine.CloseMarket(r.Context(), signer(r), market)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.invalidate(r, market)
	writeJSON(w, http.StatusOK, res)
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if !decode(w, r, &req) {
		return
	}
	to := signer(r)
	if req.To != "" {
		pk, err := ledger.ParsePubkey(req.To)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to", "")
			return
		}
		to = pk
	}
	bal, err := a.Engine.Deposit(r.Context(), to, req.Amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Address: to.String(), Lamports: bal})
}
