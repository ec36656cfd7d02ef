package dedupe_test

import (
	"fmt"
	"testing"

	"github.com/taskloop/assignengine/internal/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new Deduper", t, func() {
		Convey("When creating with default options", func() {
			d := dedupe.New()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When a key is new", func() {
			d := dedupe.New()
			seen := d.SeenAndRecord("assign:task-1")

			Convey("Then it should return false and record it", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a key was already recorded", func() {
			d := dedupe.New()
			d.SeenAndRecord("assign:task-1")
			seen := d.SeenAndRecord("assign:task-1")

			Convey("Then it should return true and not grow the set", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When Unrecord is called on a seen key", func() {
			d := dedupe.New()
			d.SeenAndRecord("assign:task-1")
			d.Unrecord("assign:task-1")

			Convey("Then the key can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				seen := d.SeenAndRecord("assign:task-1")
				So(seen, ShouldBeFalse)
			})
		})

		Convey("When bounded with a small max size", func() {
			d := dedupe.New(dedupe.WithMaxSize(3))

			for i := 0; i < 5; i++ {
				d.SeenAndRecord(fmt.Sprintf("key-%d", i))
			}

			Convey("Then it should evict down to the configured bound", func() {
				So(d.Size(), ShouldEqual, 3)
			})

			Convey("Then the most recently added keys should still be seen", func() {
				So(d.SeenAndRecord("key-4"), ShouldBeTrue)
				So(d.SeenAndRecord("key-3"), ShouldBeTrue)
			})
		})

		Convey("When unbounded", func() {
			d := dedupe.New(dedupe.WithMaxSize(0))

			for i := 0; i < 50; i++ {
				d.SeenAndRecord(fmt.Sprintf("key-%d", i))
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, 50)
			})
		})
	})
}
