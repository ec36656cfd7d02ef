package ranking_test

import (
	"testing"

	"github.com/taskloop/assignengine/internal/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func byScoreDesc(a, b ranking.Item) bool {
	return a.Score > b.Score
}

func TestSet_TopK(t *testing.T) {
	Convey("Given a Set with several inserted items", t, func() {
		s := ranking.New(byScoreDesc)
		s.Insert(ranking.Item{ID: "a", Score: 0.5})
		s.Insert(ranking.Item{ID: "b", Score: 0.9})
		s.Insert(ranking.Item{ID: "c", Score: 0.1})
		s.Insert(ranking.Item{ID: "d", Score: 0.7})

		Convey("When requesting the top 2", func() {
			top := s.TopK(2)

			Convey("Then it should return the two highest-scoring items in order", func() {
				So(top, ShouldHaveLength, 2)
				So(top[0].ID, ShouldEqual, "b")
				So(top[1].ID, ShouldEqual, "d")
			})
		})

		Convey("When requesting more than the set contains", func() {
			top := s.TopK(100)

			Convey("Then it should return every item, fully ordered", func() {
				So(top, ShouldHaveLength, 4)
				So(top[0].ID, ShouldEqual, "b")
				So(top[3].ID, ShouldEqual, "c")
			})
		})

		Convey("When requesting zero", func() {
			top := s.TopK(0)

			Convey("Then it should return an empty slice", func() {
				So(top, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a Set with a tie-break comparator", t, func() {
		s := ranking.New(func(a, b ranking.Item) bool {
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			return a.ID < b.ID
		})
		s.Insert(ranking.Item{ID: "z", Score: 1.0})
		s.Insert(ranking.Item{ID: "a", Score: 1.0})

		Convey("When two items tie on score", func() {
			top := s.TopK(2)

			Convey("Then the tie-break should decide the order", func() {
				So(top[0].ID, ShouldEqual, "a")
				So(top[1].ID, ShouldEqual, "z")
			})
		})
	})
}

func TestPackageLevelTopK(t *testing.T) {
	Convey("Given a slice of items", t, func() {
		items := []ranking.Item{
			{ID: "x", Score: 3},
			{ID: "y", Score: 1},
			{ID: "z", Score: 2},
		}

		Convey("When calling the package-level TopK helper", func() {
			top := ranking.TopK(items, 2, byScoreDesc)

			Convey("Then it should behave like building a Set and querying it", func() {
				So(top, ShouldHaveLength, 2)
				So(top[0].ID, ShouldEqual, "x")
				So(top[1].ID, ShouldEqual, "z")
			})
		})
	})
}
