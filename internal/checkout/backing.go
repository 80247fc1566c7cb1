package checkout

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gorilla/sessions"
)

// SessionName is the name of the browser session holding checkout drafts
const SessionName = "checkout"

// MaxSessionLength bounds the encoded server-side session. Drafts with many
// attendees outgrow the 4096 byte securecookie default.
const MaxSessionLength = 64 * 1024

// NewFilesystemSessionStore keeps session values on disk so the cookie only
// carries the session id.
func NewFilesystemSessionStore(dir string, keyPairs ...[]byte) *sessions.FilesystemStore {
	store := sessions.NewFilesystemStore(dir, keyPairs...)
	store.MaxLength(MaxSessionLength)
	return store
}

// Backing is the key/value persistence a DraftStore writes through
type Backing interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// SessionBacking stores drafts in the buyer's browser session. Each write
// is saved to the response immediately.
type SessionBacking struct {
	session *sessions.Session
	r       *http.Request
	w       http.ResponseWriter
}

// NewSessionBacking opens the checkout session for the request. A cookie
// that cannot be decoded (tampered or rotated secret) yields the fresh
// session the store returns with the error, so the request still proceeds.
func NewSessionBacking(store sessions.Store, w http.ResponseWriter, r *http.Request) *SessionBacking {
	session, _ := store.Get(r, SessionName)
	if session == nil {
		session = sessions.NewSession(store, SessionName)
		session.IsNew = true
	}
	return &SessionBacking{session: session, r: r, w: w}
}

// Session exposes the underlying session for non-draft values
func (b *SessionBacking) Session() *sessions.Session {
	return b.session
}

func (b *SessionBacking) Get(key string) (string, bool) {
	value, ok := b.session.Values[key].(string)
	return value, ok
}

func (b *SessionBacking) Set(key, value string) error {
	b.session.Values[key] = value
	return b.session.Save(b.r, b.w)
}

func (b *SessionBacking) Delete(key string) error {
	delete(b.session.Values, key)
	return b.session.Save(b.r, b.w)
}

// MemoryBacking keeps values in process memory
type MemoryBacking struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryBacking creates an empty in-memory backing
func NewMemoryBacking() *MemoryBacking {
	return &MemoryBacking{values: make(map[string]string)}
}

func (b *MemoryBacking) Get(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	value, ok := b.values[key]
	return value, ok
}

func (b *MemoryBacking) Set(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

func (b *MemoryBacking) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}

// FileBacking stores one file per key in a directory
type FileBacking struct {
	dir string
}

// NewFileBacking creates the directory if needed
func NewFileBacking(dir string) (*FileBacking, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create draft directory: %w", err)
	}
	return &FileBacking{dir: dir}, nil
}

func (b *FileBacking) path(key string) string {
	return filepath.Join(b.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+".json")
}

func (b *FileBacking) Get(key string) (string, bool) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Set writes through a temporary file so readers never see a partial draft.
func (b *FileBacking) Set(key, value string) error {
	tmp, err := os.CreateTemp(b.dir, ".draft-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), b.path(key))
}

func (b *FileBacking) Delete(key string) error {
	err := os.Remove(b.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
