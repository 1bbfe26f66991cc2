package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"hotelchat/internal/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	tokenFile = "token"
	userFile  = "user.json"

	// DefaultPollInterval is how often a FileBackend looks for changes of other processes.
	DefaultPollInterval = time.Second
)

// userDocument is the content of user.json. The token lives in its own file so it can be read by
// tools that only need the bearer token.
type userDocument struct {
	Revision int64               `json:"revision"`
	Origin   string              `json:"origin"`
	User     jsoniter.RawMessage `json:"user,omitempty"`
}

// FileBackend persists the session as two files under <dir>/<profile>.
type FileBackend struct {
	dir          string
	pollInterval time.Duration
}

// NewFileBackend returns a backend storing the session of profile under dir.
func NewFileBackend(dir, profile string, pollInterval time.Duration) (*FileBackend, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	path := filepath.Join(dir, profile)
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory %s: %w", path, err)
	}
	return &FileBackend{dir: path, pollInterval: pollInterval}, nil
}

func (b *FileBackend) Load(_ context.Context) (Record, bool, error) {
	rec, err := b.read()
	if err != nil {
		return Record{}, false, err
	}
	return rec, rec.Token != "", nil
}

func (b *FileBackend) read() (Record, error) {
	var rec Record

	token, err := os.ReadFile(filepath.Join(b.dir, tokenFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return rec, fmt.Errorf("failed to read session token: %w", err)
	}
	rec.Token = strings.TrimSpace(string(token))

	raw, err := os.ReadFile(filepath.Join(b.dir, userFile))
	if errors.Is(err, fs.ErrNotExist) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("failed to read session user: %w", err)
	}

	var doc userDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		// A corrupt document keeps the token usable; the identity is fetched again.
		logx.Warn("Ignoring unreadable session user file", "error", err.Error())
		return rec, nil
	}
	rec.Revision = doc.Revision
	rec.Origin = doc.Origin
	if len(doc.User) > 0 {
		if err := json.Unmarshal(doc.User, &rec.Identity); err != nil {
			logx.Warn("Ignoring unreadable cached identity", "error", err.Error())
		}
	}
	return rec, nil
}

func (b *FileBackend) Save(_ context.Context, rec Record) error {
	user, err := json.Marshal(rec.Identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	doc, err := json.Marshal(userDocument{Revision: rec.Revision, Origin: rec.Origin, User: user})
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}

	// The token goes first: a reader that sees the new revision must also see its token.
	if err := writeFileAtomic(filepath.Join(b.dir, tokenFile), []byte(rec.Token)); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(b.dir, userFile), doc)
}

func (b *FileBackend) Clear(_ context.Context, tombstone Record) error {
	if err := os.Remove(filepath.Join(b.dir, tokenFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session token: %w", err)
	}
	doc, err := json.Marshal(userDocument{Revision: tombstone.Revision, Origin: tombstone.Origin})
	if err != nil {
		return fmt.Errorf("failed to encode session tombstone: %w", err)
	}
	return writeFileAtomic(filepath.Join(b.dir, userFile), doc)
}

// Watch polls the files and emits a record whenever the revision, origin or token changes.
func (b *FileBackend) Watch(ctx context.Context) (<-chan Record, error) {
	last, err := b.read()
	if err != nil {
		return nil, err
	}

	out := make(chan Record, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(b.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			rec, err := b.read()
			if err != nil {
				logx.Warn("Failed to poll session files", "error", err.Error())
				continue
			}
			if rec.Revision == last.Revision && rec.Origin == last.Origin && rec.Token == last.Token && rec.Identity == last.Identity {
				continue
			}
			last = rec

			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *FileBackend) Close() error { return nil }

// writeFileAtomic replaces path with data through a rename so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}
