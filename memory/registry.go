package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/domgolonka/ai-investment-agent-sub001/logging"
)

// Role is a memory-using pipeline role.
type Role string

const (
	RoleBull        Role = "bull"
	RoleBear        Role = "bear"
	RoleTrader      Role = "trader"
	RoleInvestJudge Role = "invest_judge"
	RoleRiskManager Role = "risk_manager"
)

// Roles returns the fixed set of roles a subject gets stores for.
func Roles() []Role {
	return []Role{RoleBull, RoleBear, RoleTrader, RoleInvestJudge, RoleRiskManager}
}

const collectionSuffix = "_memory"

// ErrEmptySubject is returned when scoping memory to an empty subject.
var ErrEmptySubject = errors.New("memory subject is empty")

// Sanitize normalizes a subject id into a namespace segment: every rune
// outside [A-Za-z0-9_] (".", "-", spaces, slashes, ...) becomes "_". Distinct
// subjects may collide after sanitization ("BRK.B" and "BRK-B"); this layer
// does not resolve that.
func Sanitize(subject string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(subject))
}

// CollectionName returns "{sanitized}_{role}_memory".
func CollectionName(subject string, role Role) string {
	return Sanitize(subject) + "_" + string(role) + collectionSuffix
}

// unscopedPrefix contains a rune Sanitize never emits, so no subject's
// collection can share a name with a fallback store.
const unscopedPrefix = "unscoped:"

// UnscopedCollectionName returns the name of the unscoped fallback store of role.
func UnscopedCollectionName(role Role) string {
	return unscopedPrefix + string(role) + collectionSuffix
}

func unscopedRole(name string) (Role, bool) {
	if !strings.HasPrefix(name, unscopedPrefix) || !strings.HasSuffix(name, collectionSuffix) {
		return "", false
	}
	return Role(strings.TrimSuffix(strings.TrimPrefix(name, unscopedPrefix), collectionSuffix)), true
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Path of the persistent vector database; empty keeps memory in process.
	Path string
	// Embedder is shared by every store of the registry.
	Embedder Embedder
	// EmbedderFactory builds the shared embedder lazily when Embedder is nil.
	EmbedderFactory func() (Embedder, error)
	Logger          logging.Logger
	Clock           func() time.Time
}

// Registry creates and tracks subject scoped role stores over one vector
// database. The registry's own bookkeeping is safe for concurrent use; the
// collections it hands out are not synchronized against concurrent mutation.
type Registry struct {
	opts RegistryOptions

	dbOnce sync.Once
	db     *chromem.DB
	dbErr  error

	embOnce  sync.Once
	embedder Embedder
	embErr   error

	mu       sync.Mutex
	stores   map[string]*Store
	unscoped map[Role]*Store
	// adopted holds collections persisted by earlier processes that no
	// CreateInstances call has claimed yet. They only serve cleanup and stats.
	adopted map[string]*Store

	logger logging.Logger
}

// NewRegistry creates a registry. Opening the database and building the
// embedder are deferred to the first store; failures there surface as
// unavailable stores, never as errors.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Clock: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		opts:     opts,
		stores:   map[string]*Store{},
		unscoped: map[Role]*Store{},
		adopted:  map[string]*Store{},
		logger:   logging.OrNoOp(opts.Logger),
	}
}

func (r *Registry) openDB() (*chromem.DB, error) {
	r.dbOnce.Do(func() { r.db, r.dbErr = openDB(r.opts.Path) })
	return r.db, r.dbErr
}

func (r *Registry) sharedEmbedder() (Embedder, error) {
	r.embOnce.Do(func() {
		switch {
		case r.opts.Embedder != nil:
			r.embedder = r.opts.Embedder
		case r.opts.EmbedderFactory != nil:
			r.embedder, r.embErr = r.opts.EmbedderFactory()
		default:
			r.embErr = errors.New("no embedding backend configured")
		}
	})
	return r.embedder, r.embErr
}

func (r *Registry) newStore(ctx context.Context, name, subject string, unscoped bool) *Store {
	return NewStore(ctx, name, subject, func(o *StoreOptions) {
		o.EmbedderFactory = r.sharedEmbedder
		o.OpenDB = r.openDB
		o.Logger = r.logger
		o.Clock = r.opts.Clock
		o.unscoped = unscoped
	})
}

// CreateInstances returns the role stores of subject keyed by collection
// name, creating the ones not yet known.
func (r *Registry) CreateInstances(ctx context.Context, subject string) (map[string]*Store, error) {
	if Sanitize(subject) == "" {
		return nil, ErrEmptySubject
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*Store, len(Roles()))
	for _, role := range Roles() {
		name := CollectionName(subject, role)
		s, ok := r.stores[name]
		if !ok {
			s = r.newStore(ctx, name, subject, false)
			r.stores[name] = s
			delete(r.adopted, name)
		}
		out[name] = s
	}

	r.logger.Info("memory.registry.instances", "subject", subject, "sanitized", Sanitize(subject), "count", len(out))
	return out, nil
}

// Store returns the store of (subject, role) if CreateInstances made it.
func (r *Registry) Store(subject string, role Role) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[CollectionName(subject, role)]
	return s, ok
}

// Unscoped returns the single fallback store of role that is not tied to a
// subject. Every use of it logs a warning.
func (r *Registry) Unscoped(ctx context.Context, role Role) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.unscoped[role]
	if !ok {
		s = r.newStore(ctx, UnscopedCollectionName(role), "", true)
		r.unscoped[role] = s
	}
	r.logger.Warn("memory.unscoped.handed_out", "collection", s.Name(), "role", string(role))
	return s
}

// CleanupAll clears entries older than days (0 clears everything) and
// returns the deletion count per collection. With a subject only that
// subject's role collections are touched; otherwise every known and every
// persisted memory collection is.
func (r *Registry) CleanupAll(ctx context.Context, days int, subject string) map[string]int {
	targets := r.targets(ctx, subject)

	out := make(map[string]int, len(targets))
	for _, s := range targets {
		out[s.Name()] = s.ClearOldMemories(ctx, days)
	}

	r.logger.Info("memory.registry.cleanup", "subject", subject, "days", days, "collections", len(out))
	return out
}

// AllStats returns the stats of every known and persisted memory collection.
func (r *Registry) AllStats(ctx context.Context) map[string]Stats {
	targets := r.targets(ctx, "")
	out := make(map[string]Stats, len(targets))
	for _, s := range targets {
		out[s.Name()] = s.Stats()
	}
	return out
}

// Names returns the sorted names of the stores the registry tracks.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.stores)+len(r.unscoped))
	for n := range r.stores {
		names = append(names, n)
	}
	for _, s := range r.unscoped {
		names = append(names, s.Name())
	}
	sort.Strings(names)
	return names
}

func (r *Registry) targets(ctx context.Context, subject string) []*Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := map[string]bool{}
	if subject != "" {
		for _, role := range Roles() {
			wanted[CollectionName(subject, role)] = true
		}
	}
	match := func(name string) bool {
		if subject != "" {
			return wanted[name]
		}
		return strings.HasSuffix(name, collectionSuffix)
	}

	byName := map[string]*Store{}
	for name, s := range r.stores {
		if match(name) {
			byName[name] = s
		}
	}
	for name, s := range r.adopted {
		if _, ok := byName[name]; !ok && match(name) {
			byName[name] = s
		}
	}
	if subject == "" {
		for _, s := range r.unscoped {
			byName[s.Name()] = s
		}
	}

	// Collections persisted by earlier processes are adopted without a
	// subject; CreateInstances replaces them with properly scoped stores.
	if db, err := r.openDB(); err == nil {
		for name := range db.ListCollections() {
			if _, ok := byName[name]; ok || !match(name) {
				continue
			}
			if role, ok := unscopedRole(name); ok {
				s := r.newStore(ctx, name, "", true)
				r.unscoped[role] = s
				byName[name] = s
				continue
			}
			s := r.newStore(ctx, name, "", false)
			r.adopted[name] = s
			byName[name] = s
		}
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]*Store, 0, len(names))
	for _, n := range names {
		out = append(out, byName[n])
	}
	return out
}
