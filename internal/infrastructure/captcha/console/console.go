// Package console exposes pending captcha challenges over HTTP so a
// human can review the image and post the solution back.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"

	"formageddon/internal/application/port/output"
	"formageddon/internal/infrastructure/captcha"
)

// SolutionFunc is invoked when a human posts a captcha answer. The
// callback owns resuming the paused delivery.
type SolutionFunc func(ctx context.Context, letterID, solution string) error

type Config struct {
	Addr       string
	Sink       *captcha.FileSink
	OnSolution SolutionFunc
	Logger     output.LoggerPort
}

// Console is the HTTP side-channel for human captcha solving.
type Console struct {
	cfg    Config
	server *http.Server
	logger output.LoggerPort
}

func New(cfg Config) *Console {
	if cfg.Logger == nil {
		cfg.Logger = output.NopLogger{}
	}
	c := &Console{cfg: cfg, logger: cfg.Logger}

	requestLogger := httplog.NewLogger("formageddon-console", httplog.Options{
		Concise: true,
		JSON:    true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(requestLogger))

	r.Get("/challenges", c.listChallenges)
	r.Get("/challenges/{letterID}/image", c.challengeImage)
	r.Post("/challenges/{letterID}/solution", c.postSolution)

	c.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return c
}

// Start serves until Shutdown. It blocks, so run it in its own
// goroutine.
func (c *Console) Start() error {
	c.logger.Info("captcha console listening", "addr", c.cfg.Addr)
	err := c.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (c *Console) Shutdown(ctx context.Context) error {
	return c.server.Shutdown(ctx)
}

// SetOnSolution installs the resume callback. Must be called before Start;
// the DI container builds the console before the caller decides how a
// solved challenge restarts the delivery.
func (c *Console) SetOnSolution(fn SolutionFunc) {
	c.cfg.OnSolution = fn
}

// Handler exposes the router for tests.
func (c *Console) Handler() http.Handler {
	return c.server.Handler
}

type challengeList struct {
	Pending []string `json:"pending"`
}

func (c *Console) listChallenges(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(challengeList{Pending: c.cfg.Sink.Pending()})
}

func (c *Console) challengeImage(w http.ResponseWriter, r *http.Request) {
	letterID := chi.URLParam(r, "letterID")
	path, ok := c.cfg.Sink.ImagePath(letterID)
	if !ok {
		http.Error(w, "no pending challenge", http.StatusNotFound)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, "challenge image unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

type solutionRequest struct {
	Solution string `json:"solution"`
}

func (c *Console) postSolution(w http.ResponseWriter, r *http.Request) {
	letterID := chi.URLParam(r, "letterID")
	if _, ok := c.cfg.Sink.ImagePath(letterID); !ok {
		http.Error(w, "no pending challenge", http.StatusNotFound)
		return
	}

	var req solutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Solution == "" {
		http.Error(w, "solution is required", http.StatusBadRequest)
		return
	}

	if c.cfg.OnSolution != nil {
		if err := c.cfg.OnSolution(r.Context(), letterID, req.Solution); err != nil {
			c.logger.Error("captcha solution rejected", "letter_id", letterID, "error", err)
			http.Error(w, "could not apply solution", http.StatusConflict)
			return
		}
	}
	c.cfg.Sink.Clear(letterID)
	w.WriteHeader(http.StatusAccepted)
}
