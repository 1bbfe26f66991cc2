package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelchat/internal/client/api"
	"hotelchat/internal/client/clienttest"
	"hotelchat/internal/client/gateway"
	"hotelchat/internal/client/session"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
)

func TestGateway_RegisterEstablishesSession(t *testing.T) {
	svc := clienttest.NewService(t)
	c := svc.SignUp(t, "alice", model.RoleGuest)

	assert.True(t, c.Gateway.IsAuthenticated())
	assert.True(t, c.Gateway.HasRole(model.RoleGuest))
	assert.False(t, c.Gateway.HasRole(model.RoleOperator, model.RoleAdmin))

	id := c.Identity(t)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.Equal(t, "Alice", id.Profile.FirstName)

	sess, ok := c.Store.Current()
	require.True(t, ok)
	assert.True(t, sess.Resolved)
}

func TestGateway_RegisterErrors(t *testing.T) {
	svc := clienttest.NewService(t)
	svc.SignUp(t, "taken", model.RoleGuest)
	c := svc.NewClient(t)
	ctx := context.Background()

	t.Run("field level", func(t *testing.T) {
		_, err := c.Gateway.Register(ctx, gateway.RegisterInput{
			Username: "ab", Email: "not-an-email", Password: "123", FirstName: "A", LastName: "B",
		})
		customErr, ok := errs.As(err)
		require.True(t, ok)
		assert.Equal(t, errs.ErrValidation, customErr.Code)
		assert.Contains(t, customErr.Fields, "username")
		assert.Contains(t, customErr.Fields, "email")
		assert.Contains(t, customErr.Fields, "password")
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := c.Gateway.Register(ctx, gateway.RegisterInput{
			Username: "other", Email: "taken@example.com", Password: clienttest.Password, FirstName: "A", LastName: "B",
		})
		customErr, ok := errs.As(err)
		require.True(t, ok)
		assert.Equal(t, errs.KindValidation, customErr.Kind)
		assert.Contains(t, customErr.Fields, "email")
	})

	t.Run("operator without code", func(t *testing.T) {
		_, err := c.Gateway.Register(ctx, gateway.RegisterInput{
			Username: "sneaky", Email: "sneaky@example.com", Password: clienttest.Password,
			FirstName: "S", LastName: "N", RoleIntent: model.RoleOperator,
		})
		customErr, ok := errs.As(err)
		require.True(t, ok)
		assert.Contains(t, customErr.Fields, "operatorCode")
	})

	assert.False(t, c.Gateway.IsAuthenticated(), "failed registrations never start a session")
}

func TestGateway_RegisterWithoutFieldsFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":5000,"message":"boom"}`))
	}))
	defer srv.Close()

	store := newStore(t)
	g := gateway.New(api.New(srv.URL, store), store)

	_, err := g.Register(context.Background(), gateway.RegisterInput{Username: "x"})
	assert.True(t, errs.Is(err, errs.ErrRegistrationFailed))
}

func newStore(t *testing.T) *session.Store {
	t.Helper()
	backend, err := session.NewFileBackend(t.TempDir(), "default", 10*time.Millisecond)
	require.NoError(t, err)
	store := session.NewStore(backend)
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGateway_LoginAndLogout(t *testing.T) {
	svc := clienttest.NewService(t)
	svc.SignUp(t, "bob", model.RoleOperator)

	c := svc.NewClient(t)
	ctx := context.Background()

	_, err := c.Gateway.Login(ctx, "bob@example.com", "wrong")
	assert.True(t, errs.Is(err, errs.ErrInvalidCredentials))
	assert.Equal(t, errs.KindAuthentication, errs.KindOf(err))
	assert.False(t, c.Gateway.IsAuthenticated())

	updates, cancel := c.Store.Subscribe()
	defer cancel()

	sess, err := c.Gateway.Login(ctx, " bob@example.com ", clienttest.Password)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOperator, sess.Identity.Role)
	assert.True(t, c.Gateway.HasRole(model.RoleOperator))

	snap := <-updates
	assert.True(t, snap.Session.Authenticated(), "login is broadcast")

	require.NoError(t, c.Gateway.Logout(ctx))
	require.NoError(t, c.Gateway.Logout(ctx))
	_, ok := c.Gateway.CurrentIdentity()
	assert.False(t, ok)

	snap = <-updates
	assert.False(t, snap.Session.Authenticated(), "logout is broadcast")
}

func TestGateway_LoginNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	store := newStore(t)
	g := gateway.New(api.New(srv.URL, store), store)

	_, err := g.Login(context.Background(), "a@example.com", "pw")
	assert.Equal(t, errs.KindNetwork, errs.KindOf(err))
	assert.False(t, g.IsAuthenticated())
}

// legacyService answers logins without a role, like accounts created before roles existed.
func legacyService(t *testing.T, roleStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"message":"success","data":{"token":"legacy-token","user":{"id":"u1","email":"old@example.com","username":"old"}}}`))
	})
	mux.HandleFunc("/api/user/role", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer legacy-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(roleStatus)
		if roleStatus == http.StatusOK {
			_, _ = w.Write([]byte(`{"code":0,"message":"success","data":{"role":"user"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":5000,"message":"boom"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGateway_LoginResolvesMissingRole(t *testing.T) {
	srv := legacyService(t, http.StatusOK)
	store := newStore(t)
	g := gateway.New(api.New(srv.URL, store), store)

	sess, err := g.Login(context.Background(), "old@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, model.RoleGuest, sess.Identity.Role, "legacy \"user\" is a guest")
	assert.True(t, sess.Resolved)
	assert.Equal(t, "old@example.com", sess.Identity.Email)
}

func TestGateway_LoginRoleLookupFailureStoresNothing(t *testing.T) {
	srv := legacyService(t, http.StatusInternalServerError)
	store := newStore(t)
	g := gateway.New(api.New(srv.URL, store), store)

	_, err := g.Login(context.Background(), "old@example.com", "pw")
	require.Error(t, err)
	assert.False(t, g.IsAuthenticated())
}

func TestGateway_ProfileUpdates(t *testing.T) {
	svc := clienttest.NewService(t)
	c := svc.SignUp(t, "carol", model.RoleGuest)
	ctx := context.Background()

	id, err := c.Gateway.UpdateProfile(ctx, gateway.ProfileInput{FirstName: "Caroline", LastName: "Tester", Bio: "Frequent traveller"})
	require.NoError(t, err)
	assert.Equal(t, "Frequent traveller", id.Profile.Bio)
	assert.Equal(t, "Frequent traveller", c.Identity(t).Profile.Bio)
	assert.Equal(t, model.RoleGuest, c.Identity(t).Role)

	_, err = c.Gateway.UpdateProfile(ctx, gateway.ProfileInput{Bio: strings.Repeat("x", 501)})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	refreshed, err := c.Gateway.RefreshProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Caroline", refreshed.Profile.FirstName)

	_, err = c.Gateway.AvatarURL(ctx)
	assert.True(t, errs.Is(err, errs.ErrStorageNotConfigured))
}

func TestGateway_LateProfileAfterLogoutIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/avatar", func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"code":0,"message":"success","data":{"url":"http://cdn/a.png","avatarRef":"avatars/u1/a.png"}}`))
	})
	mux.HandleFunc("/api/user/profile", func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"code":0,"message":"success","data":{"user":{"id":"u1","username":"late","role":"guest","version":9}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newStore(t)
	g := gateway.New(api.New(srv.URL, store), store)
	ctx := context.Background()

	_, err := store.Set(ctx, "tok-1", model.Identity{ID: "u1", Username: "first", Role: model.RoleGuest, Version: 1})
	require.NoError(t, err)

	avatarDone := make(chan error, 1)
	profileDone := make(chan error, 1)
	go func() {
		_, err := g.AvatarURL(ctx)
		avatarDone <- err
	}()
	go func() {
		_, err := g.RefreshProfile(ctx)
		profileDone <- err
	}()

	// Give both requests time to be sent under the first session.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, g.Logout(ctx))
	close(release)

	assert.ErrorIs(t, <-avatarDone, session.ErrStale)
	assert.ErrorIs(t, <-profileDone, session.ErrStale)
	assert.False(t, g.IsAuthenticated(), "a late answer must not repopulate the session")
}

func TestGateway_RejectedTokenEndsSession(t *testing.T) {
	svc := clienttest.NewService(t)
	c := svc.SignUp(t, "dave", model.RoleGuest)
	ctx := context.Background()

	svc.RevokeTokens()

	_, err := c.Gateway.RefreshProfile(ctx)
	assert.True(t, errs.Is(err, errs.ErrSessionExpired))
	assert.False(t, c.Gateway.IsAuthenticated())

	sent := svc.Requests()
	_, err = c.Gateway.RefreshProfile(ctx)
	assert.True(t, errs.Is(err, errs.ErrUnauthorized))
	assert.Equal(t, sent, svc.Requests(), "no request is sent with the stale token")
}

func TestGateway_ResolveRoleOfRestoredSession(t *testing.T) {
	svc := clienttest.NewService(t)
	op := svc.SignUp(t, "erin", model.RoleOperator)
	token, _ := op.Store.Credential()

	c := svc.NewClient(t)
	ctx := context.Background()
	_, err := c.Store.Set(ctx, token, model.Identity{ID: op.Identity(t).ID})
	require.NoError(t, err)

	sess, _ := c.Store.Current()
	require.False(t, sess.Resolved)

	role, err := c.Gateway.ResolveRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOperator, role)

	sess, _ = c.Store.Current()
	assert.True(t, sess.Resolved)
	assert.True(t, c.Gateway.HasRole(model.RoleOperator))
}
