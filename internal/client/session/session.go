/*
Package session holds the client's active session: the bearer token and the cached identity.

A Store is the single owner of the session in a process. Components read it through Snapshot,
Current and Credential and observe changes through Subscribe. Every change is persisted to a
Backend, which also reports changes made by other processes of the same profile so that all of
them converge on the last written session.

Each login starts a new revision. Responses to requests issued under an older revision are
stale: UpdateIdentity and Invalidate ignore them, so a late answer can never repopulate or clear
a session it does not belong to.
*/
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/logx"
	"hotelchat/internal/pkg/randx"
)

// ErrStale reports that the session changed while a request was in flight.
var ErrStale = errors.New("session changed while the request was in flight")

// subscriberBuffer is the number of snapshots a slow subscriber may lag behind.
const subscriberBuffer = 8

// Session is the active credential and cached identity.
type Session struct {
	Token    string         `json:"token"`
	Identity model.Identity `json:"user"`

	// Resolved reports whether the identity's role has been looked up.
	Resolved bool `json:"resolved"`

	// Revision identifies the login that created the session. Zero means no session.
	Revision int64 `json:"revision"`
}

// Authenticated reports whether the session carries a token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Snapshot is the view of a Store at one moment. Loaded is false until the persisted session
// has been read at start-up.
type Snapshot struct {
	Session Session
	Loaded  bool
}

// Store owns the session of the process.
type Store struct {
	mu      sync.RWMutex
	current Session
	loaded  bool

	subs    map[int]chan Snapshot
	nextSub int

	backend Backend
	origin  string
	now     func() time.Time

	watchCancel context.CancelFunc
	watchDone   chan struct{}

	logger zerolog.Logger
}

// NewStore returns a store persisting to backend. Call Start to load the persisted session.
func NewStore(backend Backend) *Store {
	return &Store{
		subs:    make(map[int]chan Snapshot),
		backend: backend,
		origin:  randx.NewID(),
		now:     time.Now,
		logger:  logx.Component("session"),
	}
}

// Start loads the persisted session and begins following changes made by other processes.
// The store counts as loaded afterwards even when the backend failed.
func (s *Store) Start(ctx context.Context) error {
	rec, ok, loadErr := s.backend.Load(ctx)
	if loadErr != nil {
		s.logger.Error().Err(loadErr).Msg("Failed to load persisted session")
	}

	s.mu.Lock()
	if ok && rec.Token != "" {
		s.current = rec.session()
	}
	s.loaded = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)

	watchCtx, cancel := context.WithCancel(context.Background())
	changes, err := s.backend.Watch(watchCtx)
	if err != nil {
		cancel()
		s.logger.Warn().Err(err).Msg("Session changes of other processes will not be observed")
		return errors.Join(loadErr, err)
	}

	s.watchCancel = cancel
	s.watchDone = make(chan struct{})
	go s.follow(changes)

	return loadErr
}

func (s *Store) follow(changes <-chan Record) {
	defer close(s.watchDone)
	for rec := range changes {
		s.applyRemote(rec)
	}
}

// applyRemote applies a change written by another process. Clears always win; a login wins
// when it is newer than ours; an identity update applies to the same login only.
func (s *Store) applyRemote(rec Record) {
	if rec.Origin == s.origin {
		return
	}

	s.mu.Lock()
	cur := s.current
	switch {
	case rec.Token == "":
		if !cur.Authenticated() {
			s.mu.Unlock()
			return
		}
		s.current = Session{}
	case rec.Revision > cur.Revision:
		s.current = rec.session()
	case rec.Revision == cur.Revision && rec.Token == cur.Token:
		merged := model.MergeIdentity(cur.Identity, rec.Identity)
		if merged == cur.Identity {
			s.mu.Unlock()
			return
		}
		s.current.Identity = merged
		s.current.Resolved = cur.Resolved || merged.Role.Valid()
	default:
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug().Int64("revision", snap.Session.Revision).Bool("authenticated", snap.Session.Authenticated()).Msg("Session changed in another process")
	s.publish(snap)
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Session: s.current, Loaded: s.loaded}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Current returns the active session, if any.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current.Authenticated()
}

// Revision returns the revision of the active session, zero without one.
func (s *Store) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Revision
}

// Credential implements api.Credentials.
func (s *Store) Credential() (string, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token, s.current.Revision
}

// nextRevision returns a revision newer than cur. Revisions are wall-clock based so that the
// latest login of any process wins.
func (s *Store) nextRevision(cur int64) int64 {
	return max(s.now().UnixNano(), cur+1)
}

// Set starts a new session for token and identity and persists it.
func (s *Store) Set(ctx context.Context, token string, identity model.Identity) (Session, error) {
	s.mu.Lock()
	s.current = Session{
		Token:    token,
		Identity: identity,
		Resolved: identity.Role.Valid(),
		Revision: s.nextRevision(s.current.Revision),
	}
	s.loaded = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	s.logger.Info().Str("user_id", identity.ID).Str("role", string(identity.Role)).Msg("Session started")

	if err := s.backend.Save(ctx, s.record(snap.Session)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist session")
		return snap.Session, err
	}
	return snap.Session, nil
}

// UpdateIdentity merges identity into the session of the given revision. It returns ErrStale
// when that session is no longer active.
func (s *Store) UpdateIdentity(ctx context.Context, revision int64, identity model.Identity) (Session, error) {
	return s.update(ctx, revision, func(cur *Session) {
		cur.Identity = model.MergeIdentity(cur.Identity, identity)
		cur.Resolved = cur.Resolved || cur.Identity.Role.Valid()
	})
}

// Resolve records the outcome of a role lookup for the session of the given revision. An empty
// role marks the lookup as finished without a usable role.
func (s *Store) Resolve(ctx context.Context, revision int64, role model.Role) (Session, error) {
	return s.update(ctx, revision, func(cur *Session) {
		if role.Valid() {
			cur.Identity = model.MergeIdentity(cur.Identity, model.Identity{ID: cur.Identity.ID, Role: role})
		}
		cur.Resolved = true
	})
}

func (s *Store) update(ctx context.Context, revision int64, fn func(*Session)) (Session, error) {
	s.mu.Lock()
	if !s.current.Authenticated() || s.current.Revision != revision {
		s.mu.Unlock()
		return Session{}, ErrStale
	}
	fn(&s.current)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)

	if err := s.backend.Save(ctx, s.record(snap.Session)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist session")
		return snap.Session, err
	}
	return snap.Session, nil
}

// Clear ends the active session. It is synchronous and safe to call without a session.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if !s.current.Authenticated() {
		s.mu.Unlock()
		return nil
	}
	ended := s.current
	s.current = Session{}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	s.logger.Info().Str("user_id", ended.Identity.ID).Msg("Session ended")

	tombstone := Record{Revision: s.nextRevision(ended.Revision), Origin: s.origin}
	if err := s.backend.Clear(ctx, tombstone); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear persisted session")
		return err
	}
	return nil
}

// Invalidate clears the session of the given revision after its token was rejected. Calls for
// an older revision are ignored.
func (s *Store) Invalidate(revision int64, reason string) {
	s.mu.RLock()
	active := s.current.Authenticated() && s.current.Revision == revision
	s.mu.RUnlock()
	if !active {
		return
	}

	s.logger.Warn().Int64("revision", revision).Str("reason", reason).Msg("Session invalidated")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.clearRevision(ctx, revision); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear invalidated session")
	}
}

// clearRevision clears the session only while it still has the given revision.
func (s *Store) clearRevision(ctx context.Context, revision int64) error {
	s.mu.Lock()
	if !s.current.Authenticated() || s.current.Revision != revision {
		s.mu.Unlock()
		return nil
	}
	s.current = Session{}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return s.backend.Clear(ctx, Record{Revision: s.nextRevision(revision), Origin: s.origin})
}

// Subscribe returns a channel receiving every subsequent snapshot and a function that ends the
// subscription. A subscriber that falls behind loses the oldest snapshots, never the latest.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
}

func (s *Store) publish(snap Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Full: drop the oldest snapshot to make room for the latest.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Store) record(sess Session) Record {
	return Record{Token: sess.Token, Identity: sess.Identity, Revision: sess.Revision, Origin: s.origin}
}

// Close stops following other processes and closes the backend. Subscriptions are ended.
func (s *Store) Close() error {
	if s.watchCancel != nil {
		s.watchCancel()
		<-s.watchDone
	}

	s.mu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	return s.backend.Close()
}
