package embedding_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/taskloop/assignengine/internal/embedding"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryProvider(t *testing.T) {
	Convey("Given an InMemoryProvider", t, func() {
		p := embedding.New(
			embedding.WithDimension(16),
			embedding.WithLatencyRange(time.Millisecond, 2*time.Millisecond),
		)

		Convey("When embedding a set of skill names", func() {
			vecs, err := p.Embed(context.Background(), []string{"go", "sql"})

			Convey("Then it should return one unit vector per skill with no error", func() {
				So(err, ShouldBeNil)
				So(vecs, ShouldHaveLength, 2)
				for _, v := range vecs {
					So(v, ShouldHaveLength, 16)
					So(norm(v), ShouldAlmostEqual, 1.0, 1e-9)
				}
			})
		})

		Convey("When embedding the same skill name twice", func() {
			v1, _ := p.Embed(context.Background(), []string{"go"})
			v2, _ := p.Embed(context.Background(), []string{"go"})

			Convey("Then the vectors should be identical (deterministic)", func() {
				So(v1[0], ShouldResemble, v2[0])
			})
		})

		Convey("When embedding two different skill names", func() {
			vecs, _ := p.Embed(context.Background(), []string{"go", "python"})

			Convey("Then the vectors should differ", func() {
				So(vecs[0], ShouldNotResemble, vecs[1])
			})
		})

		Convey("When the context is already canceled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := p.Embed(ctx, []string{"go"})

			Convey("Then it should return the context error", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When Dimension is queried", func() {
			Convey("Then it should match the configured dimension", func() {
				So(p.Dimension(), ShouldEqual, 16)
			})
		})
	})
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
