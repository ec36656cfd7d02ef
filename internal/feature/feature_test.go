package feature_test

import (
	"testing"
	"time"

	"github.com/taskloop/assignengine/internal/feature"
	"github.com/taskloop/assignengine/internal/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestExtract(t *testing.T) {
	Convey("Given an Extractor with default config", t, func() {
		x := feature.New(feature.Config{})
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		Convey("When extracting for a fully-specified task and employee", func() {
			due := now.Add(24 * time.Hour)
			task := model.Task{
				Priority:       5,
				Difficulty:     10,
				RequiredSkills: []string{"go", "sql"},
				DueDate:        &due,
			}
			employee := model.Employee{
				ProductivityScore: 0.8,
				Workload:          5,
				Skills: []model.Skill{
					{Name: "go", ExperienceMonths: 30, TenureMonths: 12},
					{Name: "sql", ExperienceMonths: 60, TenureMonths: 60},
				},
			}

			v := x.Extract(task, employee, 0.6, now)

			Convey("Then it should produce an 8-dim vector with each component in [0,1]", func() {
				So(v, ShouldHaveLength, feature.Dimension)
				for _, c := range v {
					So(c, ShouldBeGreaterThanOrEqualTo, 0)
					So(c, ShouldBeLessThanOrEqualTo, 1)
				}
			})

			Convey("Then priority and difficulty should map to their max-normalized bounds", func() {
				So(v[2], ShouldEqual, 1.0) // priority 5 -> (5-1)/4 = 1
				So(v[3], ShouldEqual, 1.0) // difficulty 10 -> (10-1)/9 = 1
			})

			Convey("Then similarity should pass through clamped", func() {
				So(v[4], ShouldEqual, 0.6)
			})
		})

		Convey("When the task has no due date", func() {
			task := model.Task{Priority: 1, Difficulty: 1}
			v := x.Extract(task, model.Employee{}, 0, now)

			Convey("Then urgency should be zero", func() {
				So(v[5], ShouldEqual, 0)
			})
		})

		Convey("When the employee has no overlapping required skills", func() {
			task := model.Task{RequiredSkills: []string{"rust"}}
			employee := model.Employee{Skills: []model.Skill{{Name: "go", ExperienceMonths: 12}}}
			v := x.Extract(task, employee, 0, now)

			Convey("Then experience and tenure should both be zero", func() {
				So(v[6], ShouldEqual, 0)
				So(v[7], ShouldEqual, 0)
			})
		})

		Convey("When workload exceeds the configured cap", func() {
			employee := model.Employee{Workload: 999}
			v := x.Extract(model.Task{}, employee, 0, now)

			Convey("Then the workload component should clamp to zero, not go negative", func() {
				So(v[1], ShouldEqual, 0)
			})
		})
	})
}
