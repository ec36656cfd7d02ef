// Package similarity implements the Skill Similarity Filter: narrowing a
// candidate pool to the top-K employees by mean-pairwise cosine similarity
// between task-skill and employee-skill embeddings.
//
// Grounded on the cosine-similarity shape of a skill-matching filter (see
// original_source's skill_similarity_filter.py), with the aggregation
// formula replaced by the pairwise mean this spec pins: candidates with many
// covering skills are rewarded, rather than only their single best match.
package similarity

import (
	"context"

	"github.com/taskloop/assignengine/internal/embedding"
	"github.com/taskloop/assignengine/internal/model"
	"github.com/taskloop/assignengine/internal/ranking"
)

// DefaultK is the default number of candidates the filter returns.
const DefaultK = 3

// Candidate is an employee considered for a task, along with the similarity
// score the filter computed for it.
type Candidate struct {
	Employee   model.Employee
	Similarity float64
}

// Filter narrows a candidate pool by skill similarity.
type Filter struct {
	provider embedding.Provider
	k        int
}

// New creates a Filter. k is the number of candidates to keep; DefaultK is
// used when k <= 0.
func New(provider embedding.Provider, k int) *Filter {
	if k <= 0 {
		k = DefaultK
	}
	return &Filter{provider: provider, k: k}
}

// TopK ranks pool by mean-pairwise cosine similarity to task's required
// skills and returns the best k. Any internal failure degrades gracefully
// to returning the unfiltered pool rather than blocking assignment.
func (f *Filter) TopK(ctx context.Context, task model.Task, pool []model.Employee) (out []Candidate) {
	defer func() {
		if recover() != nil {
			out = asCandidates(pool, nil) // never block assignment on a filter panic
		}
	}()

	if len(task.SkillEmbeddings) == 0 {
		return asCandidates(pool, nil)
	}

	// Backfill any candidate missing cached embeddings from the provider;
	// failures here are non-fatal (§4.2 step 2) and leave that candidate at
	// similarity 0 but still eligible.
	pool = f.ensureEmbeddings(ctx, pool)

	anyEmployeeHasSkills := false
	for _, e := range pool {
		if len(e.Embeddings) > 0 {
			anyEmployeeHasSkills = true
			break
		}
	}
	if !anyEmployeeHasSkills {
		return asCandidates(pool, nil)
	}

	scores := make(map[string]float64, len(pool))
	for _, e := range pool {
		scores[e.ID] = meanPairwiseCosine(task.SkillEmbeddings, e.Embeddings)
	}

	rs := ranking.New(func(a, b ranking.Item) bool {
		ea, eb := byID(pool, a.ID), byID(pool, b.ID)
		if ea.ProductivityScore != eb.ProductivityScore {
			return ea.ProductivityScore > eb.ProductivityScore
		}
		if ea.Workload != eb.Workload {
			return ea.Workload < eb.Workload
		}
		return ea.ID < eb.ID
	})
	for _, e := range pool {
		rs.Insert(ranking.Item{ID: e.ID, Score: scores[e.ID]})
	}

	k := f.k
	if k > len(pool) {
		k = len(pool)
	}
	top := rs.TopK(k)

	out = make([]Candidate, 0, len(top))
	for _, item := range top {
		out = append(out, Candidate{Employee: byID(pool, item.ID), Similarity: item.Score})
	}
	return out
}

// ensureEmbeddings generates embeddings for candidates missing them via the
// provider. On provider failure the candidate keeps similarity 0 but stays
// eligible, per §4.2 step 2.
func (f *Filter) ensureEmbeddings(ctx context.Context, pool []model.Employee) []model.Employee {
	out := make([]model.Employee, len(pool))
	copy(out, pool)
	for i, e := range out {
		if len(e.Embeddings) > 0 || len(e.Skills) == 0 || f.provider == nil {
			continue
		}
		names := make([]string, len(e.Skills))
		for j, s := range e.Skills {
			names[j] = s.Name
		}
		vecs, err := f.provider.Embed(ctx, names)
		if err != nil {
			continue // degrade gracefully: similarity stays 0 for this candidate
		}
		embs := make([]model.Embedding, len(vecs))
		for j, v := range vecs {
			embs[j] = v
		}
		out[i].Embeddings = embs
	}
	return out
}

// meanPairwiseCosine computes s_j = (1/(m*n)) * sum_a sum_b max(0, t_a . e_b).
func meanPairwiseCosine(task []model.Embedding, emp []model.Embedding) float64 {
	if len(task) == 0 || len(emp) == 0 {
		return 0
	}
	var sum float64
	for _, t := range task {
		for _, e := range emp {
			if d := dot(t, e); d > 0 {
				sum += d
			}
		}
	}
	return sum / float64(len(task)*len(emp))
}

func dot(a, b model.Embedding) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func asCandidates(pool []model.Employee, scores map[string]float64) []Candidate {
	out := make([]Candidate, 0, len(pool))
	for _, e := range pool {
		sim := 0.0
		if scores != nil {
			sim = scores[e.ID]
		}
		out = append(out, Candidate{Employee: e, Similarity: sim})
	}
	return out
}

func byID(pool []model.Employee, id string) model.Employee {
	for _, e := range pool {
		if e.ID == id {
			return e
		}
	}
	return model.Employee{}
}
