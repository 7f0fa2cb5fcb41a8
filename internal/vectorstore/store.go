package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/onsikgu/famiq/internal/errs"
	"github.com/onsikgu/famiq/internal/metrics"
	"github.com/onsikgu/famiq/internal/qa"
	"github.com/onsikgu/famiq/internal/vectordb"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Backend is the subset of the Chroma client the store uses.
type Backend interface {
	Add(ctx context.Context, req vectordb.AddRequest) error
	Query(ctx context.Context, req vectordb.QueryRequest) (*vectordb.QueryResponse, error)
	Get(ctx context.Context, req vectordb.GetRequest) (*vectordb.GetResponse, error)
	Delete(ctx context.Context, req vectordb.DeleteRequest) ([]string, error)
}

// Config holds store tuning knobs.
type Config struct {
	// MaxConcurrent bounds in-flight backend calls. The backend client is
	// treated as a blocking dependency and must not be allowed to saturate
	// the scheduler.
	MaxConcurrent int64
	// ExpectedDim guards against embedding model drift. Zero disables.
	ExpectedDim int
}

// Store persists QA records as vectors and answers member- and
// family-scoped retrieval. Records are append-only; supersedence happens by
// storing newer records, never by update.
type Store struct {
	backend Backend
	embed   Embedder
	sem     *semaphore.Weighted
	logger  *zap.Logger
	cfg     Config

	lastMillis atomic.Int64
}

// New creates a Store.
func New(backend Backend, embed Embedder, cfg Config, logger *zap.Logger) *Store {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		embed:   embed,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:  logger,
		cfg:     cfg,
	}
}

// nextID builds the vector id for a record. The millisecond component is
// forced strictly increasing within this process so two stores in the same
// millisecond cannot collide.
func (s *Store) nextID(rec qa.Record) string {
	now := time.Now().UnixMilli()
	for {
		last := s.lastMillis.Load()
		if now <= last {
			now = last + 1
		}
		if s.lastMillis.CompareAndSwap(last, now) {
			break
		}
	}
	return fmt.Sprintf("%s_%s_%d", rec.FamilyID, rec.MemberID, now)
}

func (s *Store) withSem(ctx context.Context, fn func(context.Context) error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return fn(ctx)
}

// Store appends one record. Failures are fatal to the caller.
func (s *Store) Store(ctx context.Context, rec qa.Record) error {
	body := rec.EmbeddingText()
	vec, err := s.embed.Embed(ctx, body)
	if err != nil {
		return fmt.Errorf("%w: embed record: %v", errs.ErrUpstream, err)
	}
	if s.cfg.ExpectedDim > 0 && len(vec) != s.cfg.ExpectedDim {
		return fmt.Errorf("%w: embedding dimension %d, expected %d",
			errs.ErrPersistence, len(vec), s.cfg.ExpectedDim)
	}

	start := time.Now()
	err = s.withSem(ctx, func(ctx context.Context) error {
		return s.backend.Add(ctx, vectordb.AddRequest{
			IDs:        []string{s.nextID(rec)},
			Embeddings: [][]float32{vec},
			Documents:  []string{body},
			Metadatas: []vectordb.Metadata{{
				"family_id":   rec.FamilyID,
				"member_id":   rec.MemberID,
				"role_label":  rec.RoleLabel,
				"answered_at": rec.AnsweredAt.Format(time.RFC3339),
			}},
		})
	})
	if err != nil {
		metrics.RecordVectorSearchMetrics("store", "error", time.Since(start).Seconds())
		return fmt.Errorf("%w: store record: %v", errs.ErrPersistence, err)
	}
	metrics.RecordVectorSearchMetrics("store", "ok", time.Since(start).Seconds())
	metrics.VectorRecordsStored.Inc()
	return nil
}

// SearchByMember returns up to k records for one member ranked by similarity
// to the query record. On transport failure the result is empty and the
// error is returned for the caller to log; retrieval is best-effort.
func (s *Store) SearchByMember(ctx context.Context, memberID string, query qa.Record, k int) ([]qa.Record, error) {
	return s.search(ctx, "search_by_member", vectordb.Metadata{"member_id": memberID}, query, k)
}

// SearchByFamily returns up to k records for one family.
func (s *Store) SearchByFamily(ctx context.Context, familyID string, query qa.Record, k int) ([]qa.Record, error) {
	return s.search(ctx, "search_by_family", vectordb.Metadata{"family_id": familyID}, query, k)
}

func (s *Store) search(ctx context.Context, op string, where vectordb.Metadata, query qa.Record, k int) ([]qa.Record, error) {
	vec, err := s.embed.Embed(ctx, query.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", errs.ErrUpstream, err)
	}

	start := time.Now()
	var resp *vectordb.QueryResponse
	err = s.withSem(ctx, func(ctx context.Context) error {
		var qerr error
		resp, qerr = s.backend.Query(ctx, vectordb.QueryRequest{
			QueryEmbeddings: [][]float32{vec},
			NResults:        k,
			Where:           where,
		})
		return qerr
	})
	if err != nil {
		metrics.RecordVectorSearchMetrics(op, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrUpstream, op, err)
	}
	metrics.RecordVectorSearchMetrics(op, "ok", time.Since(start).Seconds())

	if len(resp.Documents) == 0 {
		return nil, nil
	}
	docs := resp.Documents[0]
	var metas []vectordb.Metadata
	if len(resp.Metadatas) > 0 {
		metas = resp.Metadatas[0]
	}
	out := make([]qa.Record, 0, len(docs))
	for i := range docs {
		if i >= len(metas) {
			s.logger.Warn("Skipping malformed stored record", zap.String("operation", op))
			continue
		}
		rec, ok := recordFromStored(docs[i], metas[i])
		if !ok {
			s.logger.Warn("Skipping malformed stored record", zap.String("operation", op))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// SearchSimilarQuestions is the novelty probe: it embeds the raw question
// text, not the date-tokenized rendering, because novelty is about phrasing.
// Returns top-1 similarity in [0,1] among the member's vectors, 0 when the
// member has none.
func (s *Store) SearchSimilarQuestions(ctx context.Context, questionText, memberID string) (float64, error) {
	vec, err := s.embed.Embed(ctx, questionText)
	if err != nil {
		return 0, fmt.Errorf("%w: embed probe: %v", errs.ErrUpstream, err)
	}

	start := time.Now()
	var resp *vectordb.QueryResponse
	err = s.withSem(ctx, func(ctx context.Context) error {
		var qerr error
		resp, qerr = s.backend.Query(ctx, vectordb.QueryRequest{
			QueryEmbeddings: [][]float32{vec},
			NResults:        1,
			Where:           vectordb.Metadata{"member_id": memberID},
		})
		return qerr
	})
	if err != nil {
		metrics.RecordVectorSearchMetrics("similarity_probe", "error", time.Since(start).Seconds())
		return 0, fmt.Errorf("%w: similarity probe: %v", errs.ErrUpstream, err)
	}
	metrics.RecordVectorSearchMetrics("similarity_probe", "ok", time.Since(start).Seconds())

	if len(resp.Distances) == 0 || len(resp.Distances[0]) == 0 {
		return 0, nil
	}
	sim := clamp01(1 - resp.Distances[0][0])
	metrics.NoveltyProbeSimilarity.Observe(sim)
	return sim, nil
}

// RecentByMember returns the member's most recent records, newest first.
func (s *Store) RecentByMember(ctx context.Context, memberID string, limit int) ([]qa.Record, error) {
	recs, err := s.scan(ctx, "recent_by_member", vectordb.Metadata{"member_id": memberID})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].AnsweredAt.After(recs[j].AnsweredAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// RecentByFamily groups the family's records by member and returns up to
// limitPerMember newest records from each group. Ordering across groups is
// unspecified.
func (s *Store) RecentByFamily(ctx context.Context, familyID string, limitPerMember int) ([]qa.Record, error) {
	recs, err := s.scan(ctx, "recent_by_family", vectordb.Metadata{"family_id": familyID})
	if err != nil {
		return nil, err
	}

	byMember := make(map[string][]qa.Record)
	memberOrder := make([]string, 0)
	for _, rec := range recs {
		if _, seen := byMember[rec.MemberID]; !seen {
			memberOrder = append(memberOrder, rec.MemberID)
		}
		byMember[rec.MemberID] = append(byMember[rec.MemberID], rec)
	}

	out := make([]qa.Record, 0, len(recs))
	for _, memberID := range memberOrder {
		group := byMember[memberID]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].AnsweredAt.After(group[j].AnsweredAt)
		})
		if limitPerMember > 0 && len(group) > limitPerMember {
			group = group[:limitPerMember]
		}
		out = append(out, group...)
	}
	return out, nil
}

// ByFamilyInRange returns the family's records with start <= answered_at <=
// end, ascending by time.
func (s *Store) ByFamilyInRange(ctx context.Context, familyID string, start, end time.Time) ([]qa.Record, error) {
	recs, err := s.scan(ctx, "family_in_range", vectordb.Metadata{"family_id": familyID})
	if err != nil {
		return nil, err
	}

	out := make([]qa.Record, 0, len(recs))
	for _, rec := range recs {
		if rec.AnsweredAt.Before(start) || rec.AnsweredAt.After(end) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AnsweredAt.Before(out[j].AnsweredAt)
	})
	return out, nil
}

// DeleteByMember removes every vector owned by the member and returns the
// count deleted. Zero means the member never stored anything.
func (s *Store) DeleteByMember(ctx context.Context, memberID string) (int, error) {
	start := time.Now()
	var ids []string
	err := s.withSem(ctx, func(ctx context.Context) error {
		var derr error
		ids, derr = s.backend.Delete(ctx, vectordb.DeleteRequest{
			Where: vectordb.Metadata{"member_id": memberID},
		})
		return derr
	})
	if err != nil {
		metrics.RecordVectorSearchMetrics("delete_by_member", "error", time.Since(start).Seconds())
		return 0, fmt.Errorf("%w: delete by member: %v", errs.ErrUpstream, err)
	}
	metrics.RecordVectorSearchMetrics("delete_by_member", "ok", time.Since(start).Seconds())
	metrics.VectorRecordsDeleted.Add(float64(len(ids)))
	return len(ids), nil
}

// scan does a filtered metadata scan. The backend does not sort by metadata,
// so callers sort in memory.
func (s *Store) scan(ctx context.Context, op string, where vectordb.Metadata) ([]qa.Record, error) {
	start := time.Now()
	var resp *vectordb.GetResponse
	err := s.withSem(ctx, func(ctx context.Context) error {
		var gerr error
		resp, gerr = s.backend.Get(ctx, vectordb.GetRequest{Where: where})
		return gerr
	})
	if err != nil {
		metrics.RecordVectorSearchMetrics(op, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrUpstream, op, err)
	}
	metrics.RecordVectorSearchMetrics(op, "ok", time.Since(start).Seconds())

	out := make([]qa.Record, 0, len(resp.Documents))
	for i := range resp.Documents {
		if i >= len(resp.Metadatas) {
			s.logger.Warn("Skipping malformed stored record", zap.String("operation", op))
			continue
		}
		rec, ok := recordFromStored(resp.Documents[i], resp.Metadatas[i])
		if !ok {
			s.logger.Warn("Skipping malformed stored record", zap.String("operation", op))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// recordFromStored rebuilds a record from the stored document body and
// metadata. The body is the canonical source for question and answer.
func recordFromStored(document string, meta vectordb.Metadata) (qa.Record, bool) {
	familyID, _ := meta["family_id"].(string)
	memberID, _ := meta["member_id"].(string)
	roleLabel, _ := meta["role_label"].(string)
	answeredAtRaw, _ := meta["answered_at"].(string)
	if familyID == "" || memberID == "" {
		return qa.Record{}, false
	}
	answeredAt, err := time.Parse(time.RFC3339, answeredAtRaw)
	if err != nil {
		return qa.Record{}, false
	}

	question, answer := qa.ParseEmbeddingText(document)
	rec, err := qa.NewRecord(familyID, memberID, roleLabel, question, answer, answeredAt)
	if err != nil {
		return qa.Record{}, false
	}
	return rec, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
