// Package roomserver exposes the relay's REST and WebSocket endpoints.
package roomserver

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"meandu-go/internal/auth"
	"meandu-go/internal/config"
	"meandu-go/internal/middleware"
)

// NewRouter wires the relay routes behind the auth middleware and CORS.
// blacklist may be nil.
func NewRouter(rooms *RoomHandler, sockets *WebSocketHandler, cfg config.Config, blacklist auth.TokenBlacklist) http.Handler {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return middleware.AuthMiddleware(next, cfg.Auth, blacklist)
	})

	roomRouter := r.PathPrefix("/room").Subrouter()
	roomRouter.HandleFunc("/messages", rooms.GetMessagesHandler).Methods(http.MethodGet)
	roomRouter.HandleFunc("/fetch", rooms.FetchRoomHandler).Methods(http.MethodGet)
	roomRouter.HandleFunc("/list", rooms.ListRoomsHandler).Methods(http.MethodGet)
	roomRouter.HandleFunc("/create", rooms.CreateRoomHandler).Methods(http.MethodPost)

	r.HandleFunc(cfg.Server.WebSocketPath, sockets.ServeWS).Methods(http.MethodGet)

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.Server.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.Server.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.Server.CORS.AllowedHeaders),
		handlers.MaxAge(cfg.Server.CORS.MaxAge),
	}
	if cfg.Server.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	return handlers.CombinedLoggingHandler(accessLog{}, handlers.CORS(corsOptions...)(r))
}

// accessLog sends access log lines to zerolog at debug level.
type accessLog struct{}

func (accessLog) Write(p []byte) (int, error) {
	log.Debug().Msg("[http] " + strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
