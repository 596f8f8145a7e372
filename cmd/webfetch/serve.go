package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/always-cache/webfetch"
	"github.com/always-cache/webfetch/cache"
	"github.com/always-cache/webfetch/pkg/textview"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve fetches and cache state over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := newFetcher(cmd)
			if err != nil {
				return err
			}
			defer f.History().Close()

			srv := &http.Server{
				Addr:    fmt.Sprintf(":%d", portFlag),
				Handler: newRouter(f),
			}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info().Msgf("Listening on port %d", portFlag)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	return cmd
}

func newRouter(f *webfetch.Fetcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/fetch", func(w http.ResponseWriter, r *http.Request) {
		serveFetch(f, w, r, false)
	})
	r.Get("/text", func(w http.ResponseWriter, r *http.Request) {
		serveFetch(f, w, r, true)
	})
	r.Get("/cache", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, struct {
			Stats   cache.Stats       `json:"stats"`
			Entries []cache.EntryInfo `json:"entries"`
		}{f.Stats(), f.CacheEntries()})
	})
	r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.URL.Query().Get("n"))
		if err != nil || n <= 0 {
			n = 20
		}
		records, err := f.History().Recent(n)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		type record struct {
			URL         string    `json:"url"`
			Status      int       `json:"status"`
			CacheStatus string    `json:"cacheStatus"`
			FetchedAt   time.Time `json:"fetchedAt"`
		}
		out := make([]record, 0, len(records))
		for _, rec := range records {
			out = append(out, record{rec.URL, rec.StatusCode, rec.CacheStatus, rec.FetchedAt})
		}
		writeJSON(w, out)
	})
	return r
}

// serveFetch fetches the url query parameter and writes its body.
// The upstream status is passed through; local resources are served as 200.
func serveFetch(f *webfetch.Fetcher, w http.ResponseWriter, r *http.Request, stripTags bool) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}
	result, status, err := f.FetchResult(r.Context(), raw)
	if err != nil {
		http.Error(w, err.Error(), fetchErrorStatus(err))
		return
	}
	body := result.Response.Text()
	if stripTags {
		body = textview.Strip(body)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Status", status.String())
	code := result.Response.StatusCode
	if result.Response.Local {
		code = http.StatusOK
	}
	w.WriteHeader(code)
	w.Write([]byte(body))
}

func fetchErrorStatus(err error) int {
	switch {
	case errors.Is(err, webfetch.ErrInvalidLocator):
		return http.StatusBadRequest
	case errors.Is(err, webfetch.ErrLocalAccess):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Could not write JSON response")
	}
}
