package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/domgolonka/ai-investment-agent-sub001/logging"
)

// NoRelevantMemories is returned by GetRelevantMemory when nothing matched.
const NoRelevantMemories = "No relevant past memories found."

// Metadata keys stored with every entry.
const (
	MetaSubject   = "subject"
	MetaTimestamp = "timestamp"
)

// probeText is embedded to enumerate a collection; any vector of the
// collection's dimensionality works.
const probeText = "memory collection scan"

// Match is one similarity search hit.
type Match struct {
	ID       string
	Document string
	Metadata map[string]string
	Distance float32 // 1 - cosine similarity, lower is closer
}

// Stats summarises a store.
type Stats struct {
	Available bool   `json:"available"`
	Name      string `json:"name"`
	Count     int    `json:"count"`
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// Embedder is used directly when set.
	Embedder Embedder
	// EmbedderFactory builds the embedder when Embedder is nil.
	EmbedderFactory func() (Embedder, error)
	// OpenDB returns the vector database holding the collection. When nil
	// a persistent DB at Path is opened, or an in-memory DB if Path is empty.
	OpenDB func() (*chromem.DB, error)
	Path   string
	Logger logging.Logger
	Clock  func() time.Time

	unscoped bool
}

// Store is one isolated collection of embedded situations scoped to a
// (subject, role) pair.
type Store struct {
	name      string
	subject   string
	col       *chromem.Collection
	embedder  Embedder
	available bool
	unscoped  bool
	logger    logging.Logger
	now       func() time.Time
}

// NewStore initializes the store named name. It never fails: any error while
// building the embedder or opening the collection leaves the store
// unavailable for its whole lifetime.
func NewStore(ctx context.Context, name, subject string, optFns ...func(o *StoreOptions)) *Store {
	opts := StoreOptions{Clock: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Store{
		name:     name,
		subject:  subject,
		unscoped: opts.unscoped,
		logger:   logging.OrNoOp(opts.Logger),
		now:      opts.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}

	if err := s.initialize(ctx, opts); err != nil {
		s.logger.Warn("memory.store.unavailable", "collection", name, "error", err.Error())
		return s
	}
	s.available = true
	s.logger.Debug("memory.store.initialized", "collection", name, "count", s.col.Count())
	return s
}

func (s *Store) initialize(ctx context.Context, opts StoreOptions) error {
	emb := opts.Embedder
	if emb == nil {
		if opts.EmbedderFactory == nil {
			return errors.New("no embedding backend configured")
		}
		var err error
		if emb, err = opts.EmbedderFactory(); err != nil {
			return fmt.Errorf("building embedder: %w", err)
		}
	}
	if p, ok := emb.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("embedding backend unreachable: %w", err)
		}
	}

	open := opts.OpenDB
	if open == nil {
		open = func() (*chromem.DB, error) { return openDB(opts.Path) }
	}
	db, err := open()
	if err != nil {
		return fmt.Errorf("opening vector db: %w", err)
	}

	col, err := db.GetOrCreateCollection(s.name, map[string]string{MetaSubject: s.subject}, embeddingFunc(emb))
	if err != nil {
		return fmt.Errorf("opening collection: %w", err)
	}

	s.embedder = emb
	s.col = col
	return nil
}

func openDB(path string) (*chromem.DB, error) {
	if path == "" {
		return chromem.NewDB(), nil
	}
	return chromem.NewPersistentDB(path, false)
}

func embeddingFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.Embed(ctx, text)
	}
}

// Name returns the collection name.
func (s *Store) Name() string { return s.name }

// Subject returns the subject the store is scoped to. It is empty for the
// unscoped fallback and for collections a registry adopted from disk.
func (s *Store) Subject() string { return s.subject }

// Available reports whether the store initialized successfully.
func (s *Store) Available() bool { return s.available }

func (s *Store) warnUnscoped(op string) {
	if s.unscoped {
		s.logger.Warn("memory.unscoped.used", "collection", s.name, "operation", op,
			"hint", "create subject scoped stores through the registry")
	}
}

// AddSituations embeds and stores texts. It returns true only if the whole
// batch was stored; on failure nothing from the batch remains.
func (s *Store) AddSituations(ctx context.Context, texts []string) bool {
	s.warnUnscoped("add_situations")
	if !s.available || len(texts) == 0 {
		return false
	}
	start := time.Now()

	ts := s.now().UTC().Format(time.RFC3339)
	docs := make([]chromem.Document, 0, len(texts))
	ids := make([]string, 0, len(texts))
	for _, text := range texts {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			s.logger.Warn("memory.add.embed_failed", "collection", s.name, "error", err.Error())
			return false
		}
		id := uuid.NewString()
		ids = append(ids, id)
		docs = append(docs, chromem.Document{
			ID:        id,
			Content:   text,
			Embedding: vec,
			Metadata:  map[string]string{MetaSubject: s.subject, MetaTimestamp: ts},
		})
	}

	if err := s.col.AddDocuments(ctx, docs, 1); err != nil {
		s.logger.Warn("memory.add.failed", "collection", s.name, "error", err.Error())
		if derr := s.col.Delete(ctx, nil, nil, ids...); derr != nil {
			s.logger.Error("memory.add.rollback_failed", "collection", s.name, "error", derr.Error())
		}
		return false
	}

	logging.LogMemoryOp(s.logger, s.name, "add", len(docs), time.Since(start))
	return true
}

// QuerySimilarSituations returns at most n entries of this store's own
// collection ordered by ascending distance to query.
func (s *Store) QuerySimilarSituations(ctx context.Context, query string, n int) []Match {
	s.warnUnscoped("query_similar_situations")
	if !s.available || n <= 0 {
		return nil
	}
	count := s.col.Count()
	if count == 0 {
		return nil
	}
	if n > count {
		n = count
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("memory.query.embed_failed", "collection", s.name, "error", err.Error())
		return nil
	}

	return s.queryEmbedding(ctx, vec, n)
}

func (s *Store) queryEmbedding(ctx context.Context, vec []float32, n int) []Match {
	results, err := s.col.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		s.logger.Warn("memory.query.failed", "collection", s.name, "error", err.Error())
		return nil
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			ID:       r.ID,
			Document: r.Content,
			Metadata: r.Metadata,
			Distance: 1 - r.Similarity,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	return matches
}

// GetRelevantMemory formats the n closest situations to summary as prompt
// context for subject.
func (s *Store) GetRelevantMemory(ctx context.Context, subject, summary string, n int) string {
	matches := s.QuerySimilarSituations(ctx, summary, n)
	if len(matches) == 0 {
		return NoRelevantMemories
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Relevant past memories for %s:\n", subject)
	for i, m := range matches {
		fmt.Fprintf(&b, "\n[%d] similarity %.2f", i+1, 1-m.Distance)
		if ts := m.Metadata[MetaTimestamp]; ts != "" {
			fmt.Fprintf(&b, ", recorded %s", ts)
		}
		b.WriteString("\n")
		b.WriteString(m.Document)
		b.WriteString("\n")
	}
	return b.String()
}

// ClearOldMemories deletes entries older than daysToKeep days and returns how
// many were deleted. daysToKeep == 0 deletes every entry.
func (s *Store) ClearOldMemories(ctx context.Context, daysToKeep int) int {
	s.warnUnscoped("clear_old_memories")
	if !s.available {
		return 0
	}
	count := s.col.Count()
	if count == 0 {
		return 0
	}
	if daysToKeep < 0 {
		daysToKeep = 0
	}

	probe, err := s.embedder.Embed(ctx, probeText)
	if err != nil {
		s.logger.Warn("memory.clear.embed_failed", "collection", s.name, "error", err.Error())
		return 0
	}

	start := time.Now()
	now := s.now().UTC()
	keep := time.Duration(daysToKeep) * 24 * time.Hour

	var ids []string
	for _, m := range s.queryEmbedding(ctx, probe, count) {
		if daysToKeep == 0 {
			ids = append(ids, m.ID)
			continue
		}
		ts, err := time.Parse(time.RFC3339, m.Metadata[MetaTimestamp])
		if err != nil {
			s.logger.Warn("memory.clear.bad_timestamp", "collection", s.name, "id", m.ID, "timestamp", m.Metadata[MetaTimestamp])
			continue
		}
		if now.Sub(ts) > keep {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return 0
	}

	if err := s.col.Delete(ctx, nil, nil, ids...); err != nil {
		s.logger.Warn("memory.clear.failed", "collection", s.name, "error", err.Error())
		return 0
	}

	logging.LogMemoryOp(s.logger, s.name, "clear", len(ids), time.Since(start))
	return len(ids)
}

// Stats returns availability, name and entry count.
func (s *Store) Stats() Stats {
	st := Stats{Available: s.available, Name: s.name}
	if s.available {
		st.Count = s.col.Count()
	}
	return st
}
