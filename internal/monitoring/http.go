package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// StatusFunc returns a JSON encodable snapshot of the logger's progress.
type StatusFunc func() interface{}

type HTTP struct {
	server *http.Server
	logger logrus.FieldLogger

	port   int
	status StatusFunc
}

func NewHTTP(port int, status StatusFunc, logger logrus.FieldLogger) *HTTP {
	return &HTTP{
		port:   port,
		status: status,
		logger: logger,
	}
}

func (h *HTTP) Listen() error {
	h.logger.Infof("HTTP server listening on port: %d", h.port)

	h.server = &http.Server{
		Handler: h.Router(),
		Addr:    fmt.Sprintf(":%d", h.port),
	}

	go func() {
		err := h.server.ListenAndServe()

		if err == http.ErrServerClosed {
			return
		} else if err != nil {
			h.logger.WithError(err).Errorf("Could not start HTTP server")
		}
	}()

	return nil
}

func (h *HTTP) Router() http.Handler {
	router := chi.NewRouter()
	router.Get("/INFO", h.Info)
	router.Handle("/metrics", promhttp.Handler())
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debugf("Could not find HTTP response for URL: %s", r.URL.String())

		http.NotFound(w, r)
	})

	return router
}

func (h *HTTP) Info(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(h.status()); err != nil {
		h.logger.WithError(err).Error("Could not encode status")
	}
}

func (h *HTTP) Close() error {
	h.logger.Debugf("Closing HTTP listener")

	if h.server == nil {
		return nil
	}

	return h.server.Close()
}
