/*
Package clienttest runs the real service in-process for tests of the client packages.

A Service is the HTTP router over the in-memory store, with rate limiting disabled. Clients built
from it share nothing but the service, so several of them behave like separate users on separate
machines.
*/
package clienttest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"hotelchat/internal/app/chat"
	"hotelchat/internal/app/favorite"
	"hotelchat/internal/app/hotel"
	"hotelchat/internal/app/live"
	"hotelchat/internal/app/memstore"
	"hotelchat/internal/app/user"
	"hotelchat/internal/client/api"
	"hotelchat/internal/client/gateway"
	"hotelchat/internal/client/session"
	"hotelchat/internal/configs"
	"hotelchat/internal/handler"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/limiter"
	"hotelchat/internal/pkg/resp"
)

// OperatorCode is the operator registration code of a test service.
const OperatorCode = "test-operator-code"

// Password is the password of every account created by SignUp.
const Password = "secret-pass"

// Service is an in-process service.
type Service struct {
	URL  string
	Deps *handler.AppDeps

	// requests counts every request that reached the service.
	requests atomic.Int64
	revoked  atomic.Bool
}

// NewService starts a service that is stopped when the test ends.
func NewService(t *testing.T) *Service {
	t.Helper()

	store := memstore.New()
	hub := live.NewHub()
	hotels := hotel.NewRegistry(store)

	svc := &Service{Deps: &handler.AppDeps{
		Config: &configs.AppConfig{
			Environment:  configs.EnvDevelopment,
			JWTSecret:    "client-test-secret",
			OperatorCode: OperatorCode,
		},
		Users:     user.NewService(store, OperatorCode),
		Hotels:    hotels,
		Chats:     chat.NewEngine(store, hotels, chat.WithNotifier(hub)),
		Favorites: favorite.NewLedger(store, hotels),
		Live:      hub,
	}}

	limiters := &handler.Limiters{
		Auth:  limiter.New(rate.Inf, 1),
		Offer: limiter.New(rate.Inf, 1),
		Live:  limiter.New(rate.Inf, 1),
	}
	router := handler.Router(svc.Deps, limiters)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		svc.requests.Add(1)
		if svc.revoked.Load() && strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		server.Close()
		hub.Shutdown()
		limiters.Stop()
	})

	svc.URL = server.URL
	return svc
}

// Requests returns the number of requests the service received so far.
func (s *Service) Requests() int64 {
	return s.requests.Load()
}

// RevokeTokens makes the service reject every bearer token from now on.
func (s *Service) RevokeTokens() {
	s.revoked.Store(true)
}

// Client is one user's client: transport, session store and gateway.
type Client struct {
	API     *api.Client
	Store   *session.Store
	Gateway *gateway.Gateway
	Dir     string
}

// NewClient returns a client without a session whose session files live in a fresh directory.
func (s *Service) NewClient(t *testing.T) *Client {
	t.Helper()
	return s.NewClientIn(t, t.TempDir())
}

// NewClientIn returns a client keeping its session under dir. Two clients of the same dir share
// the session like two terminals of one user.
func (s *Service) NewClientIn(t *testing.T, dir string) *Client {
	t.Helper()

	backend, err := session.NewFileBackend(dir, "default", 10*time.Millisecond)
	require.NoError(t, err)

	store := session.NewStore(backend)
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	client := api.New(s.URL, store)
	return &Client{API: client, Store: store, Gateway: gateway.New(client, store), Dir: dir}
}

// SignUp registers username with role through a new client, which keeps the session.
func (s *Service) SignUp(t *testing.T, username string, role model.Role) *Client {
	t.Helper()

	c := s.NewClient(t)
	in := gateway.RegisterInput{
		Username:   username,
		Email:      username + "@example.com",
		Password:   Password,
		FirstName:  strings.ToUpper(username[:1]) + username[1:],
		LastName:   "Tester",
		RoleIntent: role,
	}
	if role == model.RoleOperator {
		in.OperatorCode = OperatorCode
	}

	sess, err := c.Gateway.Register(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, role, sess.Identity.Role)
	return c
}

// Identity returns the identity of the client's session.
func (c *Client) Identity(t *testing.T) model.Identity {
	t.Helper()
	id, ok := c.Gateway.CurrentIdentity()
	require.True(t, ok, "client has no session")
	return id
}

// CreateHotel registers a hotel staffed by the operator op.
func (s *Service) CreateHotel(t *testing.T, op *Client, placeID, name string) model.Hotel {
	t.Helper()
	h, err := s.Deps.Hotels.Create(context.Background(), op.Identity(t), hotel.CreateInput{PlaceID: placeID, Name: name})
	require.NoError(t, err)
	return h
}

// DeleteHotel removes a hotel, orphaning its rooms.
func (s *Service) DeleteHotel(t *testing.T, op *Client, placeID string) {
	t.Helper()
	require.NoError(t, s.Deps.Hotels.Delete(context.Background(), op.Identity(t), placeID))
}
