// Package callback serves the deep-link target of emailed verification
// links. Tapping the link in a mail client opens a local URL; the handler
// verifies the embedded code and tells the view layer where to navigate.
package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/campus-connect/appcore/internal/domain"
	"github.com/campus-connect/appcore/internal/nav"
	"github.com/campus-connect/appcore/internal/pkg/validate"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Verifier is the slice of the session provider the listener needs.
type Verifier interface {
	VerifyOneTimeCode(ctx context.Context, email, code string) (*domain.Session, error)
}

// Handler verifies email-link callbacks and reports navigation outcomes.
type Handler struct {
	verifier Verifier
	notify   func(nav.Destination)
}

// NewHandler builds a callback handler. notify receives the destination the
// view should switch to once a link resolves; it may be nil.
func NewHandler(verifier Verifier, notify func(nav.Destination)) *Handler {
	if notify == nil {
		notify = func(nav.Destination) {}
	}
	return &Handler{verifier: verifier, notify: notify}
}

// Router builds the listener's HTTP handler. serviceOrigin, when set,
// becomes the only origin allowed by CORS so hosted pages can complete the
// handshake without opening the listener to arbitrary sites.
func (h *Handler) Router(serviceOrigin string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	origins := []string{"*"}
	if serviceOrigin != "" {
		origins = []string{serviceOrigin}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/callback", h.handleCallback)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		h.notify(nav.NotFound)
		http.Error(w, "not found", http.StatusNotFound)
	})
	return r
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email := q.Get("email")
	code := q.Get("token")
	if q.Get("type") != "email" || !validate.Email(email) || code == "" {
		http.Error(w, "malformed verification link", http.StatusBadRequest)
		return
	}
	sess, err := h.verifier.VerifyOneTimeCode(r.Context(), email, code)
	if err != nil {
		http.Error(w, fmt.Sprintf("verification failed: %v", err), http.StatusUnauthorized)
		return
	}
	if sess != nil {
		h.notify(nav.Main)
	} else {
		h.notify(nav.SignIn)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Email confirmed. You can return to the app.")
}
