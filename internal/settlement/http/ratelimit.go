package httpapi

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// SignerLimiter aplica um token bucket por signer nas rotas mutáveis.
type SignerLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewSignerLimiter cria o limitador; rps <= 0 desliga o limite.
func NewSignerLimiter(rps float64, burst int) *SignerLimiter {
	if burst < 1 {
		burst = 1
	}
	return &SignerLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *SignerLimiter) limiter(signer string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[signer]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[signer] = lim
	}
	return lim
}

// Middleware precisa rodar depois do Authenticator.
func (l *SignerLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l == nil || l.rps <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		signer, ok := SignerFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing signer", "")
			return
		}
		if !l.limiter(signer.String()).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
