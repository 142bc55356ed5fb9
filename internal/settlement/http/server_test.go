package httpapi_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/internal/settlement/cache"
	"github.com/radieske/stream-bets-settlement/internal/settlement/dto"
	"github.com/radieske/stream-bets-settlement/internal/settlement/engine"
	httpapi "github.com/radieske/stream-bets-settlement/internal/settlement/http"
	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
	"github.com/radieske/stream-bets-settlement/internal/settlement/rent"
	"github.com/radieske/stream-bets-settlement/internal/settlement/store"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type wallet struct {
	priv ed25519.PrivateKey
	pub  ledger.Pubkey
}

func newWallet(name string) wallet {
	seed := sha256.Sum256([]byte(name))
	priv := ed25519.NewKeyFromSeed(seed[:])
	var pub ledger.Pubkey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return wallet{priv: priv, pub: pub}
}

type fixture struct {
	t     *testing.T
	srv   *httptest.Server
	cache *cache.MarketCache
	eng   *engine.Engine
	host  wallet
}

func newFixture(t *testing.T, limiter *httpapi.SignerLimiter) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	host := newWallet("host")
	eng := engine.New(store.NewMemory(), engine.Config{
		ProgramID:     ledger.Pubkey(sha256.Sum256([]byte("program"))),
		Host:          host.pub,
		Rent:          rent.Default(),
		FaucetEnabled: true,
	}, zap.NewNop())

	api := &httpapi.API{
		Log:    zap.NewNop(),
		Engine: eng,
		Cache:  cache.NewMarketCache(rdb, time.Minute),
		Auth: httpapi.Authenticator{
			MaxSkew: time.Minute,
			Nonces:  cache.NewNonceStore(rdb),
			Now:     func() time.Time { return now },
		},
		Limiter: limiter,
	}
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return &fixture{t: t, srv: srv, cache: api.Cache, eng: eng, host: host}
}

// send repete headers e corpo exatamente como recebidos.
func (f *fixture) send(method, path string, header http.Header, body []byte) *http.Response {
	f.t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, bytes.NewReader(body))
	require.NoError(f.t, err)
	req.Header = header.Clone()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) do(w *wallet, method, path string, body any) *http.Response {
	f.t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(f.t, err)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, bytes.NewReader(raw))
	require.NoError(f.t, err)
	if w != nil {
		httpapi.SignRequest(req, w.priv, raw, now)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *fixture) fund(w wallet) {
	f.t.Helper()
	resp := f.do(&w, http.MethodPost, "/v1/wallet/deposit", dto.DepositRequest{Amount: 10_000_000})
	require.Equal(f.t, http.StatusOK, resp.StatusCode)
}

func (f *fixture) openMarket(op wallet) string {
	f.t.Helper()
	resp := f.do(&op, http.MethodPost, "/v1/authorities/meta", nil)
	require.Equal(f.t, http.StatusCreated, resp.StatusCode)
	resp = f.do(&op, http.MethodPost, "/v1/markets", dto.CreateMarketRequest{Title: "Clutch round?", LabelYes: "Yes", LabelNo: "No"})
	require.Equal(f.t, http.StatusCreated, resp.StatusCode)
	return decodeBody[dto.MarketResponse](f.t, resp).Address
}

func TestSignedSettlementFlow(t *testing.T) {
	f := newFixture(t, nil)
	op, alice, bob := newWallet("operator"), newWallet("alice"), newWallet("bob")
	for _, w := range []wallet{op, alice, bob} {
		f.fund(w)
	}
	m := f.openMarket(op)

	resp := f.do(&alice, http.MethodPost, "/v1/markets/"+m+"/tickets", dto.CreateTicketRequest{Side: 0})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.do(&bob, http.MethodPost, "/v1/markets/"+m+"/tickets", dto.CreateTicketRequest{Side: 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(&alice, http.MethodPost, "/v1/markets/"+m+"/bets", dto.PlaceBetRequest{Amount: 100})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(100), decodeBody[dto.TicketResponse](t, resp).Amount)
	resp = f.do(&bob, http.MethodPost, "/v1/markets/"+m+"/bets", dto.PlaceBetRequest{Amount: 300})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(nil, http.MethodGet, "/v1/markets/"+m+"/tickets/"+bob.pub.String()+"/quote", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	q := decodeBody[engine.Quote](t, resp)
	assert.True(t, q.Projected)
	assert.Equal(t, uint64(394), q.Payout)
	assert.Equal(t, engine.FeeSplit{Authority: 0, Host: 6}, q.FeeSplit)

	resp = f.do(&op, http.MethodPost, "/v1/markets/"+m+"/freeze", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(&op, http.MethodPost, "/v1/markets/"+m+"/resolve", dto.ResolveMarketRequest{WinningSide: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mv := decodeBody[dto.MarketResponse](t, resp)
	require.NotNil(t, mv.WinningSide)
	assert.Equal(t, uint8(1), *mv.WinningSide)

	resp = f.do(&bob, http.MethodPost, "/v1/markets/"+m+"/claim", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, engine.ClaimResult{Gross: 400, Fee: 6, Payout: 394}, decodeBody[engine.ClaimResult](t, resp))

	// claim invalida o cache; a leitura seguinte vê as taxas acumuladas
	resp = f.do(nil, http.MethodGet, "/v1/markets/"+m, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(6), decodeBody[dto.MarketResponse](t, resp).FeesAccrued)

	resp = f.do(&alice, http.MethodDelete, "/v1/markets/"+m+"/tickets/"+alice.pub.String(), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(&f.host, http.MethodPost, "/v1/markets/"+m+"/withdraw-fees", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, engine.FeeSplit{Authority: 0, Host: 6}, decodeBody[engine.FeeSplit](t, resp))

	resp = f.do(&f.host, http.MethodDelete, "/v1/markets/"+m, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(nil, http.MethodGet, "/v1/markets/"+m, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "AccountNotFound", decodeBody[dto.ErrorResponse](t, resp).Code)

	resp = f.do(nil, http.MethodGet, "/v1/wallet/"+f.host.pub.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(6), decodeBody[dto.BalanceResponse](t, resp).Lamports)
}

func TestAuthenticationFailures(t *testing.T) {
	f := newFixture(t, nil)
	alice := newWallet("alice")
	body := []byte(`{"amount":10}`)

	t.Run("missing headers", func(t *testing.T) {
		resp := f.do(nil, http.MethodPost, "/v1/wallet/deposit", dto.DepositRequest{Amount: 10})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("tampered body", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/v1/wallet/deposit", bytes.NewReader([]byte(`{"amount":99}`)))
		require.NoError(t, err)
		httpapi.SignRequest(req, alice.priv, body, now)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/v1/wallet/deposit", bytes.NewReader(body))
		require.NoError(t, err)
		httpapi.SignRequest(req, alice.priv, body, now.Add(-time.Hour))
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing nonce", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/v1/wallet/deposit", bytes.NewReader(body))
		require.NoError(t, err)
		httpapi.SignRequest(req, alice.priv, body, now)
		req.Header.Del(httpapi.HeaderNonce)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("nonce swapped after signing", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/v1/wallet/deposit", bytes.NewReader(body))
		require.NoError(t, err)
		httpapi.SignRequest(req, alice.priv, body, now)
		req.Header.Set(httpapi.HeaderNonce, "other")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestSignedRequestIsSingleUse(t *testing.T) {
	f := newFixture(t, nil)
	op, alice := newWallet("operator"), newWallet("alice")
	f.fund(op)
	f.fund(alice)
	m := f.openMarket(op)
	resp := f.do(&alice, http.MethodPost, "/v1/markets/"+m+"/tickets", dto.CreateTicketRequest{Side: 0})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	path := "/v1/markets/" + m + "/bets"
	raw, err := json.Marshal(dto.PlaceBetRequest{Amount: 100})
	require.NoError(t, err)
	signed, err := http.NewRequest(http.MethodPost, f.srv.URL+path, nil)
	require.NoError(t, err)
	httpapi.SignRequest(signed, alice.priv, raw, now)

	resp = f.send(http.MethodPost, path, signed.Header, raw)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for i := 0; i < 2; i++ {
		resp = f.send(http.MethodPost, path, signed.Header, raw)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "ReplayedRequest", decodeBody[dto.ErrorResponse](t, resp).Code)
	}

	mk, err := ledger.ParsePubkey(m)
	require.NoError(t, err)
	tv, err := f.eng.Ticket(context.Background(), mk, alice.pub)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), tv.Ticket.Amount)

	// uma nova assinatura do mesmo corpo é outra aposta
	resp = f.do(&alice, http.MethodPost, path, dto.PlaceBetRequest{Amount: 100})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(200), decodeBody[dto.TicketResponse](t, resp).Amount)
}

func TestAuthenticatorDefaultsSkew(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	auth := httpapi.Authenticator{Nonces: cache.NewNonceStore(rdb), Now: func() time.Time { return now }}
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	alice := newWallet("alice")

	for _, tc := range []struct {
		name   string
		signed time.Time
		want   int
	}{
		{"inside default window", now.Add(-time.Minute), http.StatusNoContent},
		{"outside default window", now.Add(-httpapi.DefaultMaxSkew - time.Second), http.StatusUnauthorized},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/wallet/deposit", nil)
			httpapi.SignRequest(req, alice.priv, nil, tc.signed)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestAuthenticatorRequiresNonceStore(t *testing.T) {
	h := httpapi.Authenticator{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/wallet/deposit", nil)
	httpapi.SignRequest(req, newWallet("alice").priv, nil, time.Now())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, nil)
	op, alice := newWallet("operator"), newWallet("alice")
	f.fund(op)
	f.fund(alice)
	m := f.openMarket(op)

	resp := f.do(&op, http.MethodPost, "/v1/markets/"+m+"/resolve", dto.ResolveMarketRequest{WinningSide: 0})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "MarketNotFrozen", decodeBody[dto.ErrorResponse](t, resp).Code)

	resp = f.do(&alice, http.MethodPost, "/v1/markets/"+m+"/freeze", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(&alice, http.MethodPost, "/v1/markets/"+m+"/tickets", dto.CreateTicketRequest{Side: 5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidSide", decodeBody[dto.ErrorResponse](t, resp).Code)

	// só o dono pode fechar o próprio ticket
	resp = f.do(&op, http.MethodDelete, "/v1/markets/"+m+"/tickets/"+alice.pub.String(), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(nil, http.MethodGet, "/v1/markets/not-a-key", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(&alice, http.MethodPost, "/v1/markets", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMarketReadsAreCached(t *testing.T) {
	f := newFixture(t, nil)
	op := newWallet("operator")
	f.fund(op)
	m := f.openMarket(op)

	cached, hit, err := f.cache.Get(context.Background(), m)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "Clutch round?", cached.Title)

	resp := f.do(nil, http.MethodGet, "/v1/authorities/"+op.pub.String()+"/markets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[[]dto.MarketResponse](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, m, list[0].Address)

	resp = f.do(nil, http.MethodGet, "/v1/authorities/"+op.pub.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint16(1), decodeBody[dto.AuthorityMetaResponse](t, resp).NextCycle)
}

func TestRateLimitPerSigner(t *testing.T) {
	f := newFixture(t, httpapi.NewSignerLimiter(0.001, 2))
	alice, bob := newWallet("alice"), newWallet("bob")

	for i := 0; i < 2; i++ {
		f.fund(alice)
	}
	resp := f.do(&alice, http.MethodPost, "/v1/wallet/deposit", dto.DepositRequest{Amount: 1})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	f.fund(bob)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, httpapi.StatusFor(engine.ErrMathOverflow))
	assert.Equal(t, http.StatusConflict, httpapi.StatusFor(engine.ErrFeesRemaining))
	assert.Equal(t, http.StatusConflict, httpapi.StatusFor(engine.ErrWriteConflict))
	assert.Equal(t, http.StatusInternalServerError, httpapi.StatusFor(assert.AnError))
}
