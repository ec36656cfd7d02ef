package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/taskloop/assignengine/internal/model"
	"github.com/taskloop/assignengine/internal/repository"
	"github.com/taskloop/assignengine/internal/repository/memory"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStore_AssignAndComplete(t *testing.T) {
	Convey("Given a store seeded with one employee and one task", t, func() {
		s := memory.New()
		ctx := context.Background()

		employee := model.Employee{ID: "e1", Active: true}
		task := model.Task{ID: "t1", Status: model.TaskTodo}
		_ = s.PutEmployee(ctx, employee)
		_ = s.PutTask(ctx, task)

		Convey("When assigning the task", func() {
			assignedTask := task
			assignedTask.Status = model.TaskInProgress
			assignedTask.AssigneeID = "e1"
			assignment := model.Assignment{ID: "a1", TaskID: "t1", AssigneeID: "e1", AssignedAt: time.Now()}

			err := s.Assign(ctx, repository.AssignRecord{Task: assignedTask, Assignment: assignment})

			Convey("Then it should succeed and increment workload", func() {
				So(err, ShouldBeNil)
				got, _ := s.GetEmployee(ctx, "e1")
				So(got.Workload, ShouldEqual, 1)

				open, openErr := s.GetOpenAssignmentForTask(ctx, "t1")
				So(openErr, ShouldBeNil)
				So(open.ID, ShouldEqual, "a1")
			})

			Convey("And assigning the same task again should conflict", func() {
				err := s.Assign(ctx, repository.AssignRecord{Task: assignedTask, Assignment: assignment})
				So(err, ShouldEqual, repository.ErrConflict)
			})

			Convey("When completing the task", func() {
				now := time.Now()
				doneTask := assignedTask
				doneTask.Status = model.TaskDone
				completedAssignment := assignment
				completedAssignment.CompletedAt = &now
				feedback := model.Feedback{ID: "f1", TaskID: "t1", EmployeeID: "e1", RewardValue: 1.5}
				arm := model.BanditArm{EmployeeID: "e1", A: [][]float64{{1}}, B: []float64{1}, UpdateCount: 1}

				err := s.Complete(ctx, repository.CompletionRecord{
					Task:       doneTask,
					Assignment: completedAssignment,
					Feedback:   feedback,
					Arm:        arm,
				})

				Convey("Then it should succeed, decrement workload, and persist feedback and the arm", func() {
					So(err, ShouldBeNil)

					got, _ := s.GetEmployee(ctx, "e1")
					So(got.Workload, ShouldEqual, 0)

					_, openErr := s.GetOpenAssignmentForTask(ctx, "t1")
					So(openErr, ShouldEqual, repository.ErrNotFound)

					fb, fbErr := s.GetFeedbackForTask(ctx, "t1")
					So(fbErr, ShouldBeNil)
					So(fb.RewardValue, ShouldEqual, 1.5)

					persistedArm, armErr := s.GetBanditArm(ctx, "e1")
					So(armErr, ShouldBeNil)
					So(persistedArm.UpdateCount, ShouldEqual, uint64(1))
				})

				Convey("And completing again should conflict", func() {
					err := s.Complete(ctx, repository.CompletionRecord{
						Task:       doneTask,
						Assignment: completedAssignment,
						Feedback:   feedback,
						Arm:        arm,
					})
					So(err, ShouldEqual, repository.ErrConflict)
				})
			})
		})
	})

	Convey("Given a store with no matching employee", t, func() {
		s := memory.New()
		ctx := context.Background()

		Convey("When GetEmployee is called for an unknown id", func() {
			_, err := s.GetEmployee(ctx, "ghost")

			Convey("Then it should return ErrNotFound", func() {
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})
	})
}

func TestStore_MarkRework(t *testing.T) {
	Convey("Given a task with an open assignment", t, func() {
		s := memory.New()
		ctx := context.Background()
		task := model.Task{ID: "t1"}
		assignment := model.Assignment{ID: "a1", TaskID: "t1", AssignedAt: time.Now()}
		_ = s.Assign(ctx, repository.AssignRecord{Task: task, Assignment: assignment})

		Convey("When marking it for rework twice", func() {
			_ = s.MarkRework(ctx, "t1")
			_ = s.MarkRework(ctx, "t1")

			Convey("Then the open assignment's rework count should be 2", func() {
				open, err := s.GetOpenAssignmentForTask(ctx, "t1")
				So(err, ShouldBeNil)
				So(open.ReworkCount, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a task with no open assignment", t, func() {
		s := memory.New()
		Convey("When marking it for rework", func() {
			err := s.MarkRework(context.Background(), "missing")
			Convey("Then it should return ErrNotFound", func() {
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})
	})
}
