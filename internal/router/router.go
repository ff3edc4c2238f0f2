package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"artico/internal/handlers"
	"artico/internal/middleware"
	"artico/internal/websocket"
)

func New(
	generateHandler *handlers.GenerateHandler,
	chatHandler *handlers.ChatHandler,
	wsRelay *websocket.ChatRelay,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", generateHandler.Generate)
		r.Post("/chat", chatHandler.Chat)
		r.Get("/chat/ws", wsRelay.HandleWebSocket)
	})

	return r
}
