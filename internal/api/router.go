package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Health)

	mux.HandleFunc("GET /webhook", h.Verify)
	mux.HandleFunc("POST /webhook", h.Receive)

	if h.debug != nil {
		mux.HandleFunc("GET /debug", h.Debug)
	}

	return mux
}
