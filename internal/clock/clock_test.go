package clock_test

import (
	"testing"
	"time"

	"github.com/taskloop/assignengine/internal/clock"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSystemClock(t *testing.T) {
	Convey("Given a System clock", t, func() {
		c := clock.System{}

		Convey("When calling Now twice in sequence", func() {
			t1 := c.Now()
			t2 := c.Now()

			Convey("Then time should not go backwards", func() {
				So(t2.Before(t1), ShouldBeFalse)
			})
		})
	})
}

func TestFixedClock(t *testing.T) {
	Convey("Given a Fixed clock", t, func() {
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		c := clock.NewFixed(base)

		Convey("When calling Now", func() {
			Convey("Then it should return the fixed time", func() {
				So(c.Now(), ShouldResemble, base)
			})
		})

		Convey("When advancing the clock", func() {
			c.Advance(2 * time.Hour)

			Convey("Then Now should reflect the advance", func() {
				So(c.Now(), ShouldResemble, base.Add(2*time.Hour))
			})
		})

		Convey("When setting the clock to a new time", func() {
			next := base.Add(48 * time.Hour)
			c.Set(next)

			Convey("Then Now should return the new time", func() {
				So(c.Now(), ShouldResemble, next)
			})
		})
	})
}
