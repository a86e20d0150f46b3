package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"querymind/app/config"
	"querymind/app/service/pipeline"
	"querymind/app/service/session"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
)

const shutdownTimeout = 10 * time.Second

// Pipeline is the part of the chat pipeline exposed over HTTP.
type Pipeline interface {
	ProcessMessage(ctx context.Context, sessionID, query string) (*pipeline.Result, error)
	Messages(ctx context.Context, sessionID string) ([]session.Message, error)
	Summary(ctx context.Context, sessionID string) (*session.Summary, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Stats() pipeline.UsageStats
}

var _ do.Shutdownable = (*Server)(nil)

type Server struct {
	addr     string
	app      *fiber.App
	pipeline Pipeline
}

func New(di *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return NewServer(cfg.Server.Addr, do.MustInvoke[*pipeline.Service](di)), nil
}

func NewServer(addr string, p Pipeline) *Server {
	s := &Server{
		addr:     addr,
		pipeline: p,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "querymind",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Post("/chat", s.chat)
	api.Get("/stats", s.stats)
	api.Get("/sessions/:id/messages", s.messages)
	api.Get("/sessions/:id/summary", s.summary)
	api.Delete("/sessions/:id", s.deleteSession)

	return s
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.addr)
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.app.ShutdownWithContext(ctx)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
	case errors.Is(err, session.ErrInvalidID), errors.Is(err, pipeline.ErrEmptyQuery):
		code = fiber.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = fiber.StatusRequestTimeout
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}
