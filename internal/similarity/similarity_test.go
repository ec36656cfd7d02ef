package similarity_test

import (
	"context"
	"testing"

	"github.com/taskloop/assignengine/internal/model"
	"github.com/taskloop/assignengine/internal/similarity"
	. "github.com/smartystreets/goconvey/convey"
)

type stubProvider struct {
	dim int
	err error
}

func (s stubProvider) Dimension() int { return s.dim }

func (s stubProvider) Embed(_ context.Context, skills []string) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(skills))
	for i := range skills {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

func TestFilter_TopK(t *testing.T) {
	Convey("Given a task with skill embeddings and a pool of employees", t, func() {
		task := model.Task{SkillEmbeddings: []model.Embedding{{1, 0}}}
		pool := []model.Employee{
			{ID: "a", Embeddings: []model.Embedding{{1, 0}}, ProductivityScore: 0.5},
			{ID: "b", Embeddings: []model.Embedding{{0, 1}}, ProductivityScore: 0.9},
			{ID: "c", Embeddings: []model.Embedding{{0.7, 0.7}}, ProductivityScore: 0.3},
		}
		f := similarity.New(nil, 2)

		Convey("When ranking the top 2", func() {
			out := f.TopK(context.Background(), task, pool)

			Convey("Then it should return exactly 2 candidates ordered by similarity", func() {
				So(out, ShouldHaveLength, 2)
				So(out[0].Employee.ID, ShouldEqual, "a")
				So(out[0].Similarity, ShouldEqual, 1.0)
			})
		})
	})

	Convey("Given a task with no skill embeddings", t, func() {
		task := model.Task{}
		pool := []model.Employee{{ID: "a"}, {ID: "b"}}
		f := similarity.New(nil, 1)

		Convey("When ranking", func() {
			out := f.TopK(context.Background(), task, pool)

			Convey("Then it should degrade to the unfiltered pool", func() {
				So(out, ShouldHaveLength, 2)
			})
		})
	})

	Convey("Given employees missing cached embeddings and a working provider", t, func() {
		task := model.Task{SkillEmbeddings: []model.Embedding{{1, 0}}}
		pool := []model.Employee{
			{ID: "a", Skills: []model.Skill{{Name: "go"}}},
		}
		f := similarity.New(stubProvider{dim: 2}, 1)

		Convey("When ranking", func() {
			out := f.TopK(context.Background(), task, pool)

			Convey("Then the provider should backfill embeddings and produce a score", func() {
				So(out, ShouldHaveLength, 1)
				So(out[0].Similarity, ShouldBeGreaterThan, 0)
			})
		})
	})

	Convey("Given an empty candidate pool", t, func() {
		task := model.Task{SkillEmbeddings: []model.Embedding{{1, 0}}}
		f := similarity.New(nil, 3)

		Convey("When ranking", func() {
			out := f.TopK(context.Background(), task, nil)

			Convey("Then it should return an empty slice, not panic", func() {
				So(out, ShouldBeEmpty)
			})
		})
	})
}
