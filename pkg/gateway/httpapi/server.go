// Package httpapi exposes the gateway's HTTP trigger endpoint: the
// monitoring system posts notifications here and auxiliary tooling can
// push raw chat messages.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/a3rd/molniya/pkg/gateway"
)

// Server is the HTTP trigger listener.
type Server struct {
	addr   string
	router *gateway.Router
	chat   gateway.ChatTransport
	logger *zap.SugaredLogger
}

// NewServer wires the trigger endpoint onto the notification router and
// the chat transport.
func NewServer(addr string, router *gateway.Router, chat gateway.ChatTransport, logger *zap.SugaredLogger) *Server {
	return &Server{addr: addr, router: router, chat: chat, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost},
	}))

	r.Post("/contact/{contact}/notify", s.handleNotify)
	r.Post("/contact/{jid}/send", s.handleSend)

	return r
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Infow("HTTP trigger endpoint listening", zap.String("addr", s.addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "can't serve HTTP trigger endpoint")
	}

	return nil
}

// handleNotify submits one notification for a contact under a policy
// chain. Form fields: policy (semicolon-separated chain), type, host,
// service, state, output.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	chain := splitChain(r.Form.Get("policy"))
	if len(chain) == 0 {
		http.Error(w, "policy chain is empty", http.StatusBadRequest)
		return
	}

	n, err := gateway.NotificationFromValues(r.Form)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	contact := chi.URLParam(r, "contact")
	logger := s.logger.With(zap.Stringer("id", n.ID), zap.String("contact", contact))
	logger.Debugw("Notification trigger", zap.Strings("chain", chain), zap.String("referent", n.Ident()))

	if err := s.router.Route(r.Context(), contact, chain, n); err != nil {
		logger.Errorw("Routing failed", zap.Error(err))

		status := http.StatusInternalServerError
		if errors.Is(err, gateway.ErrUnknownContact) ||
			errors.Is(err, gateway.ErrUnknownPolicy) ||
			errors.Is(err, gateway.ErrNoReferent) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSend pushes raw text to a chat address. The text comes from the
// message form field or, failing that, the raw request body.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	jid := chi.URLParam(r, "jid")
	logger := s.logger.With(zap.Stringer("id", uuid.New()), zap.String("addr", jid))

	message := r.FormValue("message")
	if message == "" {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "can't read body", http.StatusBadRequest)
			return
		}

		message = strings.TrimSpace(string(raw))
	}

	if message == "" {
		http.Error(w, "message is empty", http.StatusBadRequest)
		return
	}

	if err := s.chat.Send(jid, message); err != nil {
		logger.Errorw("Send failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	logger.Debugw("Sent chat message")
	w.WriteHeader(http.StatusNoContent)
}

func splitChain(raw string) []string {
	var chain []string
	for _, p := range strings.Split(raw, ";") {
		if p = strings.TrimSpace(p); p != "" {
			chain = append(chain, p)
		}
	}

	return chain
}
