package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "relaychat/docs"
	"relaychat/internal/metrics"
	"relaychat/internal/service"
	"relaychat/internal/ws"
)

// ConnectivityChecker reports whether a backing connection is up.
type ConnectivityChecker interface {
	IsConnected() bool
}

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Auth           Authenticator
	Dispatcher     *service.Dispatcher
	Messages       *service.MessageService
	Friends        *service.FriendService
	Files          *service.FileService
	Hub            *ws.Hub
	NATS           ConnectivityChecker // nil when fan-out is disabled
	CORSOrigins    []string
	MaxUploadBytes int64
	Log            *zap.Logger
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Log.Named("http")))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handleHealth(d.Hub, d.NATS))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(d.Auth))

		// File transfers stream for as long as the body takes and are left
		// out of the request timeout.
		r.Mount("/files", FileRoutes(d.Files, d.MaxUploadBytes, d.Log.Named("files")))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Post("/messages", handleSendMessage(d.Dispatcher))
			r.Get("/messages/{peer}", handleHistory(d.Messages))
			r.Post("/messages/{peer}/read", handleMarkRead(d.Messages))

			r.Route("/friends", func(r chi.Router) {
				r.Post("/", handleAddFriend(d.Friends))
				r.Get("/", handleListFriends(d.Friends))
			})
		})
	})

	r.Get("/ws", ws.MakeHandler(d.Hub, d.Auth, d.Dispatcher, d.Messages, d.CORSOrigins, d.Log))

	return r
}

// handleHealth reports "degraded" while the fan-out bus is disconnected.
// Deliveries then reach local connections only.
func handleHealth(hub *ws.Hub, bus ConnectivityChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":      "healthy",
			"connections": hub.Count(),
		}
		if bus != nil {
			connected := bus.IsConnected()
			body["nats"] = connected
			if !connected {
				body["status"] = "degraded"
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
