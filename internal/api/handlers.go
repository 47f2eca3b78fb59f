package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/LeventeLantos/whatsapp-autoreply/internal/client"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/service"
)

const maxWebhookBody = 1 << 20

type Processor interface {
	Process(ctx context.Context, correlationID string, body []byte) service.Outcome
}

type PhoneNumberInfoClient interface {
	PhoneNumberInfo(ctx context.Context) (client.RawResponse, error)
}

type Options struct {
	VerifyToken string
	AppSecret   string
	HealthText  string
}

type Handler struct {
	opts      Options
	processor Processor
	debug     PhoneNumberInfoClient
	spawn     func(func())
	log       *slog.Logger

	tasks   sync.WaitGroup
	pending atomic.Int64
}

func NewHandler(opts Options, p Processor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		opts:      opts,
		processor: p,
		spawn:     func(fn func()) { go fn() },
		log:       logger,
	}
}

// WithDebug mounts GET /debug backed by c.
func (h *Handler) WithDebug(c PhoneNumberInfoClient) *Handler {
	h.debug = c
	return h
}

// WithSpawner replaces how post-acknowledgment work is started.
func (h *Handler) WithSpawner(spawn func(func())) *Handler {
	h.spawn = spawn
	return h
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.opts.HealthText))
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if err := CheckSubscription(mode, token, h.opts.VerifyToken); err != nil {
		h.log.Warn("webhook verification failed",
			"mode", mode,
			"token_match", tokenMatches(token, h.opts.VerifyToken),
			"error", err.Error(),
		)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	h.log.Info("webhook verified")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// Receive acknowledges every delivery with 200 before any processing so the
// platform does not redeliver; the event is handled afterwards.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, readErr := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	signature := r.Header.Get(signatureHeader)

	w.WriteHeader(http.StatusOK)

	if readErr != nil {
		h.log.Warn("webhook body unreadable", "error", readErr.Error())
		return
	}
	if h.opts.AppSecret != "" && !validSignature(body, signature, h.opts.AppSecret) {
		h.log.Warn("webhook signature invalid, payload dropped")
		return
	}

	correlationID := uuid.NewString()
	ctx := context.WithoutCancel(r.Context())
	h.tasks.Add(1)
	h.pending.Add(1)
	h.spawn(func() {
		defer h.tasks.Done()
		defer h.pending.Add(-1)
		h.processor.Process(ctx, correlationID, body)
	})
}

// Pending reports how many acknowledged deliveries are still being processed.
func (h *Handler) Pending() int {
	return int(h.pending.Load())
}

// Wait blocks until every spawned task has finished or ctx is done. Call it
// only after the server has stopped accepting requests.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d webhook task(s) still running: %w", h.Pending(), ctx.Err())
	}
}

// Debug proxies the phone number metadata query, returning the platform's
// status, content type and body verbatim.
func (h *Handler) Debug(w http.ResponseWriter, r *http.Request) {
	resp, err := h.debug.PhoneNumberInfo(r.Context())
	if err != nil {
		h.log.Error("debug query failed", "error", err.Error())
		code := http.StatusBadGateway
		if client.IsConfigurationError(err) {
			code = http.StatusInternalServerError
		}
		writeJSON(w, code, map[string]any{"error": err.Error()})
		return
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
