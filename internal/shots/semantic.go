package shots

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
)

const rrfK = 60

// DefaultMinSimilarity is the cosine floor for a shot to get a semantic rank.
const DefaultMinSimilarity = 0.35

// Reranker fuses lexical shot ranking with embedding similarity using
// reciprocal rank fusion.
type Reranker struct {
	embedder embedding.Embedder
	minSim   float64

	mu   sync.Mutex
	vecs map[string][]float64
}

// NewReranker creates a reranker. minSim <= 0 uses DefaultMinSimilarity.
func NewReranker(e embedding.Embedder, minSim float64) *Reranker {
	if minSim <= 0 {
		minSim = DefaultMinSimilarity
	}
	return &Reranker{embedder: e, minSim: minSim, vecs: make(map[string][]float64)}
}

// Rerank reorders the lexical hits by fusing their lexical rank with their
// embedding similarity to query. Only lexical hits are returned, so every
// shot keeps a positive Relevance.
func (r *Reranker) Rerank(ctx context.Context, query string, lexical []Shot) ([]Shot, error) {
	if len(lexical) < 2 {
		return lexical, nil
	}
	if err := r.ensureVectors(ctx, lexical); err != nil {
		return nil, err
	}
	qv, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qv) == 0 {
		return nil, fmt.Errorf("embed query: empty result")
	}

	type scored struct {
		id  string
		sim float64
	}
	var semantic []scored
	r.mu.Lock()
	for _, s := range lexical {
		if sim := cosine(qv[0], r.vecs[s.ID]); sim >= r.minSim {
			semantic = append(semantic, scored{id: s.ID, sim: sim})
		}
	}
	r.mu.Unlock()
	sort.SliceStable(semantic, func(i, j int) bool { return semantic[i].sim > semantic[j].sim })

	fused := make(map[string]float64, len(lexical))
	for i, s := range lexical {
		fused[s.ID] += 1.0 / float64(rrfK+i+1)
	}
	for i, s := range semantic {
		fused[s.id] += 1.0 / float64(rrfK+i+1)
	}

	out := append([]Shot(nil), lexical...)
	sort.SliceStable(out, func(i, j int) bool {
		return fused[out[i].ID] > fused[out[j].ID]
	})
	return out, nil
}

func (r *Reranker) ensureVectors(ctx context.Context, all []Shot) error {
	r.mu.Lock()
	var missing []Shot
	for _, s := range all {
		if _, ok := r.vecs[s.ID]; !ok {
			missing = append(missing, s)
		}
	}
	r.mu.Unlock()
	if len(missing) == 0 {
		return nil
	}

	texts := make([]string, len(missing))
	for i, s := range missing {
		texts[i] = s.Title + "\n" + s.Description
	}
	vecs, err := r.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed shots: %w", err)
	}
	if len(vecs) != len(missing) {
		return fmt.Errorf("embed shots: got %d vectors for %d texts", len(vecs), len(missing))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range missing {
		r.vecs[s.ID] = vecs[i]
	}
	return nil
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
