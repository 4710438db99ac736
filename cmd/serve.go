package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miriamhowe1992-eng/smilemap/internal/featured"
	"github.com/miriamhowe1992-eng/smilemap/internal/search"
	"github.com/miriamhowe1992-eng/smilemap/internal/submit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the practice search API and webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		resolver := initResolver(st)
		featuredSvc := featured.NewService(st)

		env := serverEnv{
			search:   search.NewEngine(st, resolver, featuredSvc),
			submit:   submit.NewService(st, resolver),
			featured: featuredSvc,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// serverEnv holds the services backing the HTTP surface.
type serverEnv struct {
	search   *search.Engine
	submit   *submit.Service
	featured *featured.Service
}

func newRouter(env serverEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/practices", env.handleSearch)
	r.Post("/api/practices", env.handleSubmit)
	r.Post("/webhook/featured", env.handleFeatured)

	return r
}

func (env serverEnv) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := search.Params{
		Postcode:     q.Get("postcode"),
		Availability: q.Get("availability"),
		PracticeType: q.Get("practice_type"),
		Wheelchair:   q.Get("wheelchair") == "1",
		Toilet:       q.Get("toilet") == "1",
		Parking:      q.Get("parking") == "1",
		Sort:         q.Get("sort"),
	}

	if raw := q.Get("radius"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius < 0 {
			writeError(w, http.StatusBadRequest, "invalid radius")
			return
		}
		params.RadiusMiles = radius
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		params.Limit = limit
	}

	resp, err := env.search.Search(r.Context(), params)
	if err != nil {
		zap.L().Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (env serverEnv) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub submit.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, err := env.submit.Accept(r.Context(), sub)
	var verr *submit.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	case err != nil:
		zap.L().Error("submission failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "submission failed")
	default:
		// Honeypot hits land here too: the caller cannot tell them apart
		// from an accepted submission.
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func (env serverEnv) handleFeatured(w http.ResponseWriter, r *http.Request) {
	var ev featured.ActivationEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	promo, err := env.featured.Activate(r.Context(), ev)
	if err != nil {
		zap.L().Warn("featured activation rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid activation event")
		return
	}
	writeJSON(w, http.StatusOK, promo)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
