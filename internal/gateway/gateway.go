// Package gateway é a porta de entrada única: REST da liquidação e websocket do feed.
package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// Targets são as URLs internas dos serviços.
type Targets struct {
	Settlement string
	Feed       string
}

func proxy(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", to)
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// Handler roteia /v1/* para a liquidação e /ws para o feed. O caminho é
// repassado sem alteração porque entra na assinatura das requisições.
func Handler(t Targets) (http.Handler, error) {
	settlement, err := proxy(t.Settlement)
	if err != nil {
		return nil, err
	}
	feed, err := proxy(t.Feed)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/", settlement)
	mux.Handle("/ws", feed)
	return withCORS(mux), nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Signer, X-Timestamp, X-Nonce, X-Signature")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
