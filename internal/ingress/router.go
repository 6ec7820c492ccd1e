// Package ingress implements C5: the HTTP submission surface and the
// Discord chat-embed listener, both normalizing into models.Submission and
// handing off to the submission pipeline (§4.1).
package ingress

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/droptracker-go/pipeline/internal/chat"
	"github.com/droptracker-go/pipeline/internal/hof"
	"github.com/droptracker-go/pipeline/internal/kvstore"
	"github.com/droptracker-go/pipeline/internal/lootboard"
	"github.com/droptracker-go/pipeline/internal/sqlstore"
	"github.com/droptracker-go/pipeline/internal/submission"
	"github.com/droptracker-go/pipeline/internal/supervisor"
)

// Metrics is the narrow recorder surface ingress drives per submission
// (§4.1 final paragraph); implemented by internal/metrics.
type Metrics interface {
	RecordSubmission(kind string, success bool, source string)
}

type Settings struct {
	Port           int
	WebhookRPS     int
	SubmitRPS      int
	RequestBudget  time.Duration
	HealthBudget   time.Duration
	ImageDir       string
	AllowedOrigins []string
	ClaimCodeTTL   time.Duration
}

type Server struct {
	pipeline  *submission.Pipeline
	store     *sqlstore.Store
	kv        *kvstore.Client
	hof       *hof.Renderer
	lootboard *lootboard.Generator
	gateway   *chat.DiscordGateway
	metrics   Metrics
	cfg       Settings
	log       *zap.SugaredLogger

	checkMisses   *missTracker
	limiters      *sourceLimiters
	lastHealthyAt atomic.Int64

	sup  *supervisor.Supervisor
	logs *supervisor.LogRegistry
}

// SetSupervisor wires the process supervisor for the /admin/tasks surface
// the monitor CLI drives (§6). Optional: without it, /admin/tasks responds
// 503.
func (s *Server) SetSupervisor(sup *supervisor.Supervisor, logs *supervisor.LogRegistry) {
	s.sup = sup
	s.logs = logs
}

func New(pipeline *submission.Pipeline, store *sqlstore.Store, kv *kvstore.Client, hofRenderer *hof.Renderer, lb *lootboard.Generator, gateway *chat.DiscordGateway, metrics Metrics, cfg Settings, log *zap.SugaredLogger) *Server {
	return &Server{
		pipeline:    pipeline,
		store:       store,
		kv:          kv,
		hof:         hofRenderer,
		lootboard:   lb,
		gateway:     gateway,
		metrics:     metrics,
		cfg:         cfg,
		log:         log,
		checkMisses: newMissTracker(),
		limiters:    newSourceLimiters(cfg.WebhookRPS, cfg.SubmitRPS),
	}
}

// ListenChat registers a Discord MessageCreate handler so embeds posted
// directly into a monitored channel (not via the /webhook HTTP path) still
// reach the submission pipeline (§4.1's chat-embed listener).
func (s *Server) ListenChat() {
	if s.gateway == nil {
		return
	}
	s.gateway.Session().AddHandler(s.onChatMessage)
}

// Router builds the chi router, the process's HTTP entry point.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/ping", s.handlePing)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.With(s.rateLimit(s.cfg.WebhookRPS)).Post("/webhook", s.handleWebhook)
	r.With(s.rateLimit(s.cfg.SubmitRPS)).Post("/submit", s.handleWebhook)
	r.Post("/check", s.handleCheck)
	r.Post("/claim", s.handleClaim)
	r.Post("/claim/generate", s.handleClaimGenerate)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/hof/{group}/{npc}/render", s.handleAdminHoFRender)
		r.Post("/lootboard/{group}/render", s.handleAdminLootboardRender)

		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{task}", s.handleTaskStatus)
		r.Post("/tasks/{task}/start", s.handleTaskStart)
		r.Post("/tasks/{task}/stop", s.handleTaskStop)
		r.Post("/tasks/{task}/restart", s.handleTaskRestart)
		r.Get("/tasks/{task}/logs", s.handleTaskLogs)
	})

	return r
}

// handlePing answers the liveness probe (§6).
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pong"})
}

// handleHealth answers the readiness probe (§6), checking the dependencies
// each submission touches: SQL, KV, and the in-memory metrics window.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context(), s.cfg.HealthBudget)
	defer cancel()

	checks := map[string]string{"database": "ok", "redis": "ok", "metrics": "ok"}
	healthy := true

	if err := s.store.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := s.kv.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}
	if s.metrics == nil {
		checks["metrics"] = "not configured"
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"server":    "ingress",
		"checks":    checks,
	})
}
