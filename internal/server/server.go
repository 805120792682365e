// Package server exposes the bot over HTTP: the Telegram webhook, the hh.ru
// OAuth redirect target, health, metrics and an admin auto-reply trigger.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"go-hh-autoreply/internal/auth"
	"go-hh-autoreply/internal/autoreply"
	"go-hh-autoreply/internal/chat"
	"go-hh-autoreply/internal/config"
	"go-hh-autoreply/internal/metrics"
	"go-hh-autoreply/internal/models"
	"go-hh-autoreply/internal/telegram"
)

const (
	headerRequestID = "X-Request-ID"
	headerSecret    = "X-Telegram-Bot-Api-Secret-Token"
	maxUpdateBytes  = 1 << 20
)

type Authenticator interface {
	AuthURL(userID int64) string
	Complete(ctx context.Context, code, state string) (auth.Completion, error)
}

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u tgbotapi.Update)
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, out chat.Outbound) error
}

type AutoReplier interface {
	Run(ctx context.Context, userID int64, src autoreply.Source) ([]models.Outcome, error)
}

type Deps struct {
	Auth      Authenticator
	Updates   UpdateHandler
	Notifier  Notifier
	AutoReply AutoReplier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type Server struct {
	Deps
	cfg           config.ServerConfig
	webhookSecret string
	engine        *gin.Engine
}

func New(cfg config.ServerConfig, webhookSecret string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{Deps: deps, cfg: cfg, webhookSecret: webhookSecret}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog())

	r.GET("/", s.health)
	r.GET("/health", s.health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	r.GET("/oauth/authorize", s.authorize)
	r.GET("/oauth/callback", s.callback)
	r.POST("/webhook/telegram", s.webhook)
	r.POST("/users/:id/auto-reply", s.requireAdmin(), s.autoReply)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("server listening", "port", s.cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Info("http request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "hh auto-reply bot is running",
		"status":  "healthy",
	})
}

func (s *Server) authorize(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user"), 10, 64)
	if err != nil || userID <= 0 {
		c.String(http.StatusBadRequest, "user query parameter is required")
		return
	}
	c.Redirect(http.StatusFound, s.Auth.AuthURL(userID))
}

// callback finishes the OAuth flow and reports to the user's chat.
func (s *Server) callback(c *gin.Context) {
	ctx := c.Request.Context()
	if reason := c.Query("error"); reason != "" {
		c.String(http.StatusBadRequest, "Авторизация отклонена: %s", reason)
		return
	}
	code := c.Query("code")
	if code == "" {
		c.String(http.StatusBadRequest, "code query parameter is required")
		return
	}

	done, err := s.Auth.Complete(ctx, code, c.Query("state"))
	if errors.Is(err, auth.ErrBadState) {
		c.String(http.StatusBadRequest, "invalid state")
		return
	}
	if err != nil {
		s.Logger.Error("oauth completion failed", "request_id", c.GetString("request_id"), "error", err)
		s.Metrics.IncError("oauth")
		c.String(http.StatusBadGateway, "Не удалось завершить авторизацию на hh.ru. Попробуйте ещё раз.")
		return
	}

	for _, out := range completionMessages(done) {
		if err := s.Notifier.Notify(ctx, done.UserID, out); err != nil {
			s.Logger.Warn("oauth notification failed", "user_id", done.UserID, "error", err)
			break
		}
	}
	c.String(http.StatusOK, "Готово! Вернитесь в Telegram.")
}

func completionMessages(done auth.Completion) []chat.Outbound {
	msgs := []chat.Outbound{chat.SendText("✅ Доступ к аккаунту HH получен!", nil)}
	switch {
	case done.Selected != nil:
		msgs = append(msgs, chat.SendText("📄 Резюме по умолчанию: "+html.EscapeString(done.Selected.Title)+"\n\n"+chat.HelpText, nil))
	case len(done.Resumes) == 0:
		msgs = append(msgs, chat.SendText("У вас нет опубликованных резюме. Опубликуйте резюме на hh.ru и выполните /resumes.", nil))
	default:
		text, kb := chat.ResumeChoices(done.Resumes)
		msgs = append(msgs, chat.SendText(text, kb))
	}
	return msgs
}

func (s *Server) webhook(c *gin.Context) {
	if s.webhookSecret != "" {
		got := c.GetHeader(headerSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "bad secret"})
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUpdateBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "read error"})
		return
	}
	u, err := telegram.DecodeUpdate(body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "decode error"})
		return
	}

	// Telegram may drop the connection; the update is still processed.
	s.Updates.HandleUpdate(context.WithoutCancel(c.Request.Context()), u)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminToken == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "admin api disabled"})
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.AdminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) autoReply(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	outcomes, err := s.AutoReply.Run(c.Request.Context(), userID, autoreply.SourceSearch)
	switch {
	case errors.Is(err, auth.ErrNotAuthorized), errors.Is(err, autoreply.ErrNoResume):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.Logger.Error("auto-reply run failed", "user_id", userID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": autoreply.OutcomeError(err)})
		return
	}
	if outcomes == nil {
		outcomes = []models.Outcome{}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "outcomes": outcomes})
}
