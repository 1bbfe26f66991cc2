/*
Package handler provides the HTTP handlers and routing setup for the HotelChat service.

This file defines the main Router, applying necessary middleware like logging, CORS,
identity extraction and keyed rate limiting before delegating requests to specific handlers
(API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/auth/jwt"
	"hotelchat/internal/pkg/limiter"
	"hotelchat/internal/pkg/logx"
	"hotelchat/internal/pkg/resp"
)

const (
	AuthRate   = 0.2
	AuthBurst  = 10
	OfferRate  = 0.1
	OfferBurst = 5
	LiveRate   = 0.5
	LiveBurst  = 10
)

// Limiters holds the keyed rate limiters of the router so the caller can stop them.
type Limiters struct {
	Auth  *limiter.KeyedRateLimiter
	Offer *limiter.KeyedRateLimiter
	Live  *limiter.KeyedRateLimiter
}

// NewLimiters creates the default limiters.
func NewLimiters() *Limiters {
	return &Limiters{
		Auth:  limiter.New(rate.Limit(AuthRate), AuthBurst),
		Offer: limiter.New(rate.Limit(OfferRate), OfferBurst),
		Live:  limiter.New(rate.Limit(LiveRate), LiveBurst),
	}
}

// Stop ends the limiters' sweepers.
func (l *Limiters) Stop() {
	l.Auth.Stop()
	l.Offer.Stop()
	l.Live.Stop()
}

// byIdentity keys authenticated requests by identity id.
func byIdentity(r *http.Request) string {
	if payload := jwt.GetPayloadFromContext(r); payload != nil {
		return payload.ID
	}
	return limiter.ClientIP(r)
}

// Router sets up the main HTTP routing table (chi.Router) for the application.
func Router(deps *AppDeps, limiters *Limiters) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if deps.Config.IsDevelopment() || origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "HotelChat Service",
		})
	})

	operatorsOnly := jwt.RequireRoles(model.RoleOperator)
	guestsOnly := jwt.RequireRoles(model.RoleGuest)

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.Use(limiters.Auth.Middleware(limiter.ClientIP))
			auth.Post("/register", HandleRegister(deps))
			auth.Post("/login", HandleLogin(deps))
		})

		api.Route("/user", func(user chi.Router) {
			user.Use(jwt.RequireIdentity)
			user.Get("/role", HandleGetRole(deps))
			user.Get("/profile", HandleGetProfile(deps))
			user.Put("/profile", HandleUpdateProfile(deps))
			user.Get("/avatar", HandleGetAvatar(deps))
			user.Post("/avatar", HandlePresignAvatar(deps))
		})

		api.Route("/chat", func(chat chi.Router) {
			chat.Use(jwt.RequireIdentity)

			chat.With(guestsOnly, limiters.Offer.Middleware(byIdentity)).Post("/offer/{placeId}", HandleOffer(deps))
			chat.Get("/", HandleListRooms(deps, false))
			chat.With(jwt.RequireRoles(model.RoleOperator, model.RoleAdmin)).Get("/all", HandleListRooms(deps, true))

			chat.Route("/{roomId}", func(room chi.Router) {
				room.Get("/", HandleGetRoom(deps))
				room.With(operatorsOnly).Delete("/", HandleCloseRoom(deps))
				room.Post("/message", HandleSendMessage(deps))
				room.Post("/read", HandleMarkRead(deps))
			})
		})

		api.Route("/hotel", func(h chi.Router) {
			h.Get("/", HandleListHotels(deps))
			h.With(operatorsOnly).Post("/", HandleCreateHotel(deps))
			h.With(guestsOnly).Get("/favorites", HandleListFavorites(deps))

			h.Route("/place/{placeId}", func(place chi.Router) {
				place.Get("/", HandleGetHotel(deps))
				place.With(operatorsOnly).Delete("/", HandleDeleteHotel(deps))

				place.Route("/favorite", func(fav chi.Router) {
					fav.Use(guestsOnly)
					fav.Get("/", HandleIsFavorite(deps))
					fav.Post("/", HandleAddFavorite(deps))
					fav.Delete("/", HandleRemoveFavorite(deps))
					fav.Patch("/", HandleToggleFavorite(deps))
				})
			})
		})
	})

	r.Route("/ws", func(ws chi.Router) {
		ws.Use(jwt.QueryTokenMiddleware(deps.Config.JWTSecret))
		ws.Use(jwt.RequireIdentity)
		ws.With(limiters.Live.Middleware(byIdentity)).Get("/chat/{roomId}", HandleWebSocket(deps, wsUpgrader))
	})

	return r
}
