package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geoleads/leadgen-cli/internal/model"
	"github.com/geoleads/leadgen-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for searches and enrichment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, env, cfg.Server.AllowedOrigins),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP API. Search and enrichment kickoffs return
// 202 immediately and run on the server's base context so an individual
// client disconnect does not abort the job.
func newRouter(baseCtx context.Context, env *appEnv, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/searches", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Method      string   `json:"search_method"`
				Coordinates string   `json:"coordinates"`
				Radius      int      `json:"radius"`
				City        string   `json:"city"`
				Country     string   `json:"country"`
				Categories  []string `json:"categories"`
				CreatedBy   string   `json:"created_by"`
				Currency    string   `json:"currency"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if len(body.Categories) == 0 {
				writeError(w, http.StatusBadRequest, "categories are required")
				return
			}

			job := &model.SearchJob{
				Method:      model.SearchMethod(body.Method),
				Coordinates: body.Coordinates,
				Radius:      body.Radius,
				City:        body.City,
				Country:     body.Country,
				Categories:  body.Categories,
				CreatedBy:   body.CreatedBy,
				Currency:    body.Currency,
			}
			switch job.Method {
			case model.SearchMethodCoordinates:
				if job.Coordinates == "" || job.Radius <= 0 {
					writeError(w, http.StatusBadRequest, "coordinates and radius are required")
					return
				}
			case model.SearchMethodCity:
				if job.City == "" {
					writeError(w, http.StatusBadRequest, "city is required")
					return
				}
			default:
				writeError(w, http.StatusBadRequest, "search_method must be coordinates or city")
				return
			}

			if err := env.store.CreateSearchJob(req.Context(), job); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}

			go func() {
				if err := env.runner.Execute(baseCtx, job.ID); err != nil {
					zap.L().Error("search job failed", zap.String("job", job.ID), zap.Error(err))
				}
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID, "status": string(model.SearchStatusPending)})
		})

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			jobs, err := env.store.ListSearchJobs(req.Context(), 50)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, jobs)
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			job, err := env.store.GetSearchJob(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, http.StatusNotFound, "search job not found")
				return
			}
			writeJSON(w, http.StatusOK, job)
		})

		r.Post("/{id}/retry", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			if err := env.store.ResetSearchJob(req.Context(), id); err != nil {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			go func() {
				if err := env.runner.Execute(baseCtx, id); err != nil {
					zap.L().Error("search retry failed", zap.String("job", id), zap.Error(err))
				}
			}()
			writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(model.SearchStatusPending)})
		})
	})

	r.Route("/api/enrichments", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				LeadIDs    []string `json:"lead_ids"`
				AllMissing bool     `json:"all_missing"`
				Limit      int      `json:"limit"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}

			var leads []model.Lead
			var err error
			switch {
			case len(body.LeadIDs) > 0:
				leads, err = env.store.GetLeadsByIDs(req.Context(), body.LeadIDs)
			case body.AllMissing:
				leads, err = env.store.ListLeads(req.Context(), store.LeadFilter{MissingEmail: true, Limit: body.Limit})
			default:
				writeError(w, http.StatusBadRequest, "lead_ids or all_missing is required")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if len(leads) == 0 {
				writeError(w, http.StatusNotFound, "no leads matched")
				return
			}

			job := env.tracker.Create(len(leads), leads[0].Name)
			go func() {
				if _, err := env.orchestrator.Run(baseCtx, job.ID, leads); err != nil {
					zap.L().Error("enrichment job failed", zap.String("job", job.ID), zap.Error(err))
				}
			}()

			writeJSON(w, http.StatusAccepted, job)
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			job, ok := env.tracker.Get(chi.URLParam(req, "id"))
			if !ok {
				writeError(w, http.StatusNotFound, "enrichment job not found")
				return
			}
			writeJSON(w, http.StatusOK, job)
		})

		r.Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			if !env.tracker.Cancel(id) {
				if _, ok := env.tracker.Get(id); !ok {
					writeError(w, http.StatusNotFound, "enrichment job not found")
					return
				}
				writeError(w, http.StatusConflict, "enrichment job already finished")
				return
			}
			job, _ := env.tracker.Get(id)
			writeJSON(w, http.StatusOK, job)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
