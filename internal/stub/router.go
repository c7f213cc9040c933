package stub

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Options configures the emulator server.
type Options struct {
	AnonKey        string
	RoleKey        string
	JWTSecret      string
	TokenTTL       time.Duration
	ResendCooldown time.Duration
	AllowedOrigins []string
	Mailer         Mailer
}

// Server is the emulator: the REST surface the client consumes, backed by
// in-memory state.
type Server struct {
	store          *Store
	tokens         *TokenProvider
	mailer         Mailer
	anonKey        string
	roleKey        string
	resendCooldown time.Duration
}

// NewServer builds an emulator from the given options.
func NewServer(opts Options) *Server {
	if opts.TokenTTL == 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.ResendCooldown == 0 {
		opts.ResendCooldown = 60 * time.Second
	}
	if opts.Mailer == nil {
		opts.Mailer = NewLogMailer()
	}
	return &Server{
		store:          NewStore(),
		tokens:         NewTokenProvider(opts.JWTSecret, opts.TokenTTL),
		mailer:         opts.Mailer,
		anonKey:        opts.AnonKey,
		roleKey:        opts.RoleKey,
		resendCooldown: opts.ResendCooldown,
	}
}

// Store exposes the backing store; handler tests seed state through it.
func (s *Server) Store() *Store { return s.store }

// Router builds the emulator's HTTP handler.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "apikey"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second with a burst of 10 on credential and mail endpoints.
	sensitiveRL := NewRateLimiter(rate.Limit(5), 10)

	r.Get("/health", s.handleHealth)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.With(sensitiveRL.Limit).Post("/token", s.handleToken)
		r.With(sensitiveRL.Limit).Post("/signup", s.handleSignup)
		r.With(sensitiveRL.Limit).Post("/resend", s.handleResend)
		r.Post("/verify", s.handleVerify)

		r.Group(func(r chi.Router) {
			r.Use(s.auth)
			r.Post("/logout", s.handleLogout)
			r.Get("/user", s.handleGetUser)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireRoleKey)
			r.Delete("/admin/users/{id}", s.handleAdminDeleteUser)
		})
	})

	r.Route("/rest/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Use(s.auth)
		r.Delete("/profiles/{id}", s.handleDeleteProfile)
	})

	return r
}
