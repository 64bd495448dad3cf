package userdir

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
	"github.com/google/uuid"
)

var (
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	ErrInvalidIdentifier   = errors.New("identifier must not be empty")
)

type record struct {
	id         string
	identifier string
	hash       string
	role       string
	active     bool
}

// Directory is an in-process user store. It satisfies goSession.UserDirectory
// and goSession.ResetDirectory and is safe for concurrent use.
//
// Identifiers are matched case-insensitively after trimming spaces.
type Directory struct {
	hasher password.Hasher
	logger *slog.Logger

	mu           sync.RWMutex
	byID         map[string]*record
	byIdentifier map[string]string

	// decoyHash is verified against for unknown identifiers so that both
	// paths cost one hash computation.
	decoyOnce sync.Once
	decoyHash string
}

var (
	_ goSession.UserDirectory  = (*Directory)(nil)
	_ goSession.ResetDirectory = (*Directory)(nil)
)

// Option configures a Directory.
type Option func(*Directory)

// WithHasher replaces the default hasher.
func WithHasher(h password.Hasher) Option {
	return func(d *Directory) {
		if h != nil {
			d.hasher = h
		}
	}
}

// WithLogger sets the logger used for rehash failures.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New returns an empty Directory. The default hasher is Argon2id with
// password.DefaultConfig and accepts bcrypt records as legacy.
func New(opts ...Option) (*Directory, error) {
	d := &Directory{
		logger:       slog.Default(),
		byID:         make(map[string]*record),
		byIdentifier: make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.hasher == nil {
		primary, err := password.NewArgon2(password.DefaultConfig())
		if err != nil {
			return nil, err
		}
		legacy, err := password.NewBcrypt(0)
		if err != nil {
			return nil, err
		}
		d.hasher = password.Chain{Primary: primary, Legacy: []password.Hasher{legacy}}
	}
	return d, nil
}

// Create registers an active user and returns its identity.
func (d *Directory) Create(_ context.Context, identifier, secret, role string) (goSession.Identity, error) {
	key := normalize(identifier)
	if key == "" {
		return goSession.Identity{}, ErrInvalidIdentifier
	}
	hash, err := d.hasher.Hash(secret)
	if err != nil {
		return goSession.Identity{}, err
	}
	return d.insert(key, hash, role)
}

// Import registers a user whose secret is already hashed, for example a bcrypt
// record migrated from another system. The hash must be owned by the
// directory's hasher.
func (d *Directory) Import(_ context.Context, identifier, encodedHash, role string) (goSession.Identity, error) {
	key := normalize(identifier)
	if key == "" {
		return goSession.Identity{}, ErrInvalidIdentifier
	}
	if !d.hasher.Owns(encodedHash) {
		return goSession.Identity{}, password.ErrUnknownFormat
	}
	return d.insert(key, encodedHash, role)
}

func (d *Directory) insert(key, hash, role string) (goSession.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byIdentifier[key]; exists {
		return goSession.Identity{}, ErrDuplicateIdentifier
	}
	rec := &record{
		id:         uuid.NewString(),
		identifier: key,
		hash:       hash,
		role:       role,
		active:     true,
	}
	d.byID[rec.id] = rec
	d.byIdentifier[key] = rec.id
	return rec.identity(), nil
}

// SetRole changes the role of userID. The engine reads it on the next
// authorize or refresh.
func (d *Directory) SetRole(_ context.Context, userID, role string) error {
	return d.update(userID, func(r *record) { r.role = role })
}

// SetActive enables or disables userID.
func (d *Directory) SetActive(_ context.Context, userID string, active bool) error {
	return d.update(userID, func(r *record) { r.active = active })
}

// Remove deletes userID. Its live tokens fail authorization from then on.
func (d *Directory) Remove(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.byID[userID]
	if !ok {
		return goSession.ErrIdentityNotFound
	}
	delete(d.byID, userID)
	delete(d.byIdentifier, rec.identifier)
	return nil
}

// Len reports the number of users.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

func (d *Directory) Resolve(_ context.Context, subjectID string) (goSession.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.byID[subjectID]
	if !ok {
		return goSession.Identity{}, goSession.ErrIdentityNotFound
	}
	return rec.identity(), nil
}

// VerifyCredentials checks secret and, when the stored hash uses an older
// scheme or weaker parameters, replaces it with a fresh primary hash. A failed
// rehash is logged and does not fail the login.
func (d *Directory) VerifyCredentials(_ context.Context, identifier, secret string) (goSession.Identity, error) {
	key := normalize(identifier)

	d.mu.RLock()
	var (
		rec  record
		seen bool
	)
	if id, ok := d.byIdentifier[key]; ok {
		rec, seen = *d.byID[id], true
	}
	d.mu.RUnlock()

	if !seen {
		_, _ = d.hasher.Verify(secret, d.decoy())
		return goSession.Identity{}, goSession.ErrInvalidCredentials
	}

	ok, err := d.hasher.Verify(secret, rec.hash)
	if err != nil || !ok {
		return goSession.Identity{}, goSession.ErrInvalidCredentials
	}

	if upgrade, err := d.hasher.NeedsUpgrade(rec.hash); err == nil && upgrade {
		d.rehash(rec.id, rec.hash, secret)
	}
	return rec.identity(), nil
}

func (d *Directory) LookupIdentifier(_ context.Context, identifier string) (goSession.Identity, error) {
	key := normalize(identifier)

	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byIdentifier[key]
	if !ok {
		return goSession.Identity{}, goSession.ErrIdentityNotFound
	}
	return d.byID[id].identity(), nil
}

func (d *Directory) UpdateSecret(_ context.Context, userID, newSecret string) error {
	hash, err := d.hasher.Hash(newSecret)
	if err != nil {
		return err
	}
	return d.update(userID, func(r *record) { r.hash = hash })
}

func (d *Directory) update(userID string, fn func(*record)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.byID[userID]
	if !ok {
		return goSession.ErrIdentityNotFound
	}
	fn(rec)
	return nil
}

// rehash swaps the stored hash only if nobody changed it in the meantime.
func (d *Directory) rehash(userID, previous, secret string) {
	hash, err := d.hasher.Hash(secret)
	if err != nil {
		d.logger.Warn("userdir: rehash failed", "user_id", userID, "error", err.Error())
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if rec, ok := d.byID[userID]; ok && rec.hash == previous {
		rec.hash = hash
	}
}

func (d *Directory) decoy() string {
	d.decoyOnce.Do(func() {
		h, err := d.hasher.Hash(uuid.NewString())
		if err != nil {
			d.logger.Warn("userdir: decoy hash unavailable", "error", err.Error())
			return
		}
		d.decoyHash = h
	})
	return d.decoyHash
}

func (r *record) identity() goSession.Identity {
	return goSession.Identity{ID: r.id, Role: r.role, Active: r.active}
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
