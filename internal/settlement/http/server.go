package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/internal/settlement/cache"
	"github.com/radieske/stream-bets-settlement/internal/settlement/dto"
	"github.com/radieske/stream-bets-settlement/internal/settlement/engine"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
)

// API expõe as instruções da liquidação via REST.
// Rotas de escrita exigem assinatura (Authenticator) e passam pelo limitador.
type API struct {
	Log     *zap.Logger
	Engine  *engine.Engine
	Cache   *cache.MarketCache // opcional
	Auth    Authenticator
	Limiter *SignerLimiter // opcional
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// leitura
	r.Get("/v1/authorities/{authority}", a.getAuthority)
	r.Get("/v1/authorities/{authority}/markets", a.listMarkets)
	r.Get("/v1/markets/{market}", a.getMarket)
	r.Get("/v1/markets/{market}/tickets/{user}", a.getTicket)
	r.Get("/v1/markets/{market}/tickets/{user}/quote", a.getQuote)
	r.Get("/v1/wallet/{address}", a.getBalance)

	// instruções (assinadas)
	r.Group(func(r chi.Router) {
		r.Use(a.Auth.Middleware)
		r.Use(a.Limiter.Middleware)

		r.Post("/v1/authorities/meta", a.initAuthorityMeta)
		r.Post("/v1/markets", a.createMarket)
		r.Delete("/v1/markets/{market}", a.closeMarket)
		r.Post("/v1/markets/{market}/freeze", a.freezeMarket)
		r.Post("/v1/markets/{market}/resolve", a.resolveMarket)
		r.Post("/v1/markets/{market}/tickets", a.createTicket)
		r.Delete("/v1/markets/{market}/tickets/{user}", a.closeTicket)
		r.Post("/v1/markets/{market}/bets", a.placeBet)
		r.Post("/v1/markets/{market}/claim", a.claim)
		r.Post("/v1/markets/{market}/withdraw-fees", a.withdrawFees)
		r.Post("/v1/wallet/deposit", a.deposit)
	})
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg, Code: code})
}

// StatusFor mapeia a classe do erro para o status HTTP.
func StatusFor(err error) int {
	switch engine.ClassOf(err) {
	case engine.ClassValidation:
		return http.StatusBadRequest
	case engine.ClassState, engine.ClassConsistency:
		return http.StatusConflict
	case engine.ClassAuthorization:
		return http.StatusForbidden
	case engine.ClassNotFound:
		return http.StatusNotFound
	case engine.ClassArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		a.Log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, "internal error", "")
		return
	}
	writeError(w, status, err.Error(), engine.CodeOf(err))
}

func pubkeyParam(w http.ResponseWriter, r *http.Request, name string) (ledger.Pubkey, bool) {
	pk, err := ledger.ParsePubkey(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name, "")
		return pk, false
	}
	return pk, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad json", "")
		return false
	}
	return true
}

func signer(r *http.Request) ledger.Pubkey {
	pk, _ := SignerFrom(r.Context())
	return pk
}

// invalidate descarta o mercado do cache depois de uma escrita.
func (a *API) invalidate(r *http.Request, market ledger.Pubkey) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.Invalidate(r.Context(), market.String()); err != nil {
		a.Log.Warn("cache invalidate failed", zap.Stringer("market", market), zap.Error(err))
	}
}

// respondMarket lê o mercado atualizado, atualiza o cache e responde.
func (a *API) respondMarket(w http.ResponseWriter, r *http.Request, status int, market ledger.Pubkey) {
	v, err := a.Engine.Market(r.Context(), market)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := dto.NewMarketResponse(v)
	if a.Cache != nil {
		if err := a.Cache.Set(r.Context(), resp); err != nil {
			a.Log.Warn("cache set failed", zap.Stringer("market", market), zap.Error(err))
		}
	}
	writeJSON(w, status, resp)
}

func (a *API) respondTicket(w http.ResponseWriter, r *http.Request, status int, market, user ledger.Pubkey) {
	v, err := a.Engine.Ticket(r.Context(), market, user)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, status, dto.NewTicketResponse(v))
}
