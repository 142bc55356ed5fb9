package httpapi

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/radieske/stream-bets-settlement/internal/settlement/ledger"
)

// Cabeçalhos da autenticação por assinatura.
const (
	HeaderSigner    = "X-Signer"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderSignature = "X-Signature"
)

// DefaultMaxSkew vale quando Authenticator.MaxSkew não é positivo.
const DefaultMaxSkew = 2 * time.Minute

const (
	maxBodyBytes = 1 << 20
	maxNonceLen  = 64
)

type signerKey struct{}

// SignerFrom retorna a identidade autenticada da requisição.
func SignerFrom(ctx context.Context) (ledger.Pubkey, bool) {
	pk, ok := ctx.Value(signerKey{}).(ledger.Pubkey)
	return pk, ok
}

// SigningPayload monta a mensagem assinada pelo cliente:
//
//	METHOD \n PATH \n TIMESTAMP \n NONCE \n hex(sha256(body))
func SigningPayload(method, path, timestamp, nonce string, body []byte) []byte {
	sum := sha256.Sum256(body)
	var b bytes.Buffer
	b.WriteString(method)
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(timestamp)
	b.WriteByte('\n')
	b.WriteString(nonce)
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(sum[:]))
	return b.Bytes()
}

// SignRequest preenche os cabeçalhos de autenticação com um nonce novo
// (usado por clientes e testes).
func SignRequest(r *http.Request, key ed25519.PrivateKey, body []byte, now time.Time) {
	ts := strconv.FormatInt(now.Unix(), 10)
	nonce := uuid.NewString()
	sig := ed25519.Sign(key, SigningPayload(r.Method, r.URL.Path, ts, nonce, body))
	pub := key.Public().(ed25519.PublicKey)
	r.Header.Set(HeaderSigner, base58.Encode(pub))
	r.Header.Set(HeaderTimestamp, ts)
	r.Header.Set(HeaderNonce, nonce)
	r.Header.Set(HeaderSignature, base58.Encode(sig))
}

// NonceStore registra nonces já usados. Claim devolve false se o par
// (signer, nonce) já foi visto dentro do ttl.
type NonceStore interface {
	Claim(ctx context.Context, signer, nonce string, ttl time.Duration) (bool, error)
}

// Authenticator verifica a assinatura ed25519 de cada requisição mutável e
// coloca o signer no contexto. É o colaborador de autorização do engine.
// Cada nonce vale uma vez: uma requisição repetida recebe 409.
type Authenticator struct {
	MaxSkew time.Duration
	Nonces  NonceStore
	Now     func() time.Time
}

func (a Authenticator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a Authenticator) maxSkew() time.Duration {
	if a.MaxSkew > 0 {
		return a.MaxSkew
	}
	return DefaultMaxSkew
}

func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Nonces == nil {
			writeError(w, http.StatusServiceUnavailable, "nonce store not configured", "")
			return
		}
		signerRaw := r.Header.Get(HeaderSigner)
		signer, err := ledger.ParsePubkey(signerRaw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid signer", "")
			return
		}
		tsRaw := r.Header.Get(HeaderTimestamp)
		ts, err := strconv.ParseInt(tsRaw, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid timestamp", "")
			return
		}
		skew := a.now().Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > a.maxSkew() {
			writeError(w, http.StatusUnauthorized, "stale timestamp", "")
			return
		}
		nonce := r.Header.Get(HeaderNonce)
		if nonce == "" || len(nonce) > maxNonceLen {
			writeError(w, http.StatusUnauthorized, "invalid nonce", "")
			return
		}
		sig, err := base58.Decode(r.Header.Get(HeaderSignature))
		if err != nil || len(sig) != ed25519.SignatureSize {
			writeError(w, http.StatusUnauthorized, "invalid signature", "")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body", "")
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		msg := SigningPayload(r.Method, r.URL.Path, tsRaw, nonce, body)
		if !ed25519.Verify(ed25519.PublicKey(signer[:]), msg, sig) {
			writeError(w, http.StatusUnauthorized, "signature mismatch", "")
			return
		}

		// o timestamp é aceito dos dois lados de now, então a janela é 2*skew
		fresh, err := a.Nonces.Claim(r.Context(), signer.String(), nonce, 2*a.maxSkew())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "nonce store unavailable", "")
			return
		}
		if !fresh {
			writeError(w, http.StatusConflict, "request already processed", "ReplayedRequest")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), signerKey{}, signer)))
	})
}
