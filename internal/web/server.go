package web

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/quizdeck/internal/deckstore"
	"github.com/conorfennell/quizdeck/internal/progress"
	"github.com/conorfennell/quizdeck/internal/quiz"
)

// SessionStore persists per-visitor progress between requests.
type SessionStore interface {
	LoadProgress(ctx context.Context, sessionID string) (progress.State, error)
	SaveProgress(ctx context.Context, sessionID string, st progress.State) error
}

// Options tunes a Server.
type Options struct {
	// Seed fixes question generation when non-zero.
	Seed        uint64
	CORSOrigins []string
	Logger      *slog.Logger
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	decks    *deckstore.Store
	sessions SessionStore
	router   chi.Router
	validate *validator.Validate
	log      *slog.Logger
	seed     uint64
}

// NewServer creates and configures a new server.
func NewServer(decks *deckstore.Store, sessions SessionStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New()
	// Report JSON field names in validation messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{
		decks:    decks,
		sessions: sessions,
		router:   chi.NewRouter(),
		validate: v,
		log:      logger,
		seed:     opts.Seed,
	}
	s.routes(opts.CORSOrigins)
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes(origins []string) {
	s.router.Use(middleware.RequestID, middleware.RealIP, s.logRequests, middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/healthz", s.handleHealth())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.session)

		// Deck management
		r.Post("/decks", s.handlePostDeck())
		r.Get("/decks", s.handleListDecks())
		r.Get("/decks/{id}", s.handleGetDeck())
		r.Get("/decks/{id}/multiple-choice", s.handleMultipleChoice())

		// Levels, gated in order
		r.Get("/decks/{id}/level1", s.handleLevel1())
		r.Get("/decks/{id}/level2", s.handleLevel2())
		r.Get("/decks/{id}/level3", s.handleLevel3())
		r.Post("/decks/{id}/level3/next", s.handleLevel3Next())
		r.Post("/level3/final", s.handleLevel3Final())

		// Answers
		r.Post("/answers/true-false", s.handleAnswerTrueFalse())
		r.Post("/answers/recall", s.handleAnswerRecall())
		r.Post("/answers/matching", s.handleAnswerMatching())

		r.Get("/progress", s.handleProgress())
	})
}

// rand returns a source for one request. A fixed seed makes every request
// generate the same questions for the same deck.
func (s *Server) rand() *rand.Rand {
	return quiz.NewRand(s.seed)
}

// logRequests writes one structured log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
