package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/Dosada05/trivia-duel/docs"
	"github.com/Dosada05/trivia-duel/handlers"
	"github.com/Dosada05/trivia-duel/middleware"
	"github.com/Dosada05/trivia-duel/models"
)

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
}

func SetupRoutes(
	router *chi.Mux,
	opts Options,
	healthHandler *handlers.HealthHandler,
	matchmakingHandler *handlers.MatchmakingHandler,
	matchHandler *handlers.MatchHandler,
	userHandler *handlers.UserHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Get("/healthz", healthHandler.Health)
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// WebSocket живёт дольше любого таймаута запроса, поэтому без Timeout
	router.With(authenticate).Get("/ws/matches/{matchID}", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Get("/subjects", matchmakingHandler.ListSubjects)
		r.Get("/users/me/stats", userHandler.GetMyStats)

		r.Route("/matchmaking", func(r chi.Router) {
			r.Post("/join", matchmakingHandler.JoinQueue)
			r.Delete("/leave", matchmakingHandler.LeaveQueue)
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", matchHandler.GetMatch)
			r.Post("/start", matchHandler.StartMatch)
			r.With(middleware.RequireRole(models.RoleAdmin)).Post("/cancel", matchHandler.CancelMatch)
			r.Get("/question", matchHandler.GetCurrentQuestion)
			r.Post("/answer", matchHandler.SubmitAnswer)
			r.Get("/scores", matchHandler.GetScores)
			r.Get("/results", matchHandler.GetResults)
			r.Get("/stats", matchHandler.GetUserMatchStats)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"code":"NOT_FOUND","error":"the requested resource could not be found"}`))
	})
}
