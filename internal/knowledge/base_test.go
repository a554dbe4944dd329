package knowledge_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/tactix/internal/knowledge"
	"github.com/tactix/internal/storage"
)

func TestBase(t *testing.T) {
	ctx := context.Background()

	Convey("Given a base with two documents", t, func() {
		b := knowledge.New()
		first, err := b.Add(ctx, knowledge.Insight{
			Filename:      "pressing.png",
			DocumentType:  "Tactic Guide",
			KeyInsights:   []string{"Press high against slow centre backs"},
			TacticalRules: []string{"Use Pressing: High"},
		})
		So(err, ShouldBeNil)
		_, err = b.Add(ctx, knowledge.Insight{
			Filename:     "wings.png",
			DocumentType: "Notes",
			KeyInsights:  []string{"Overload the flanks"},
		})
		So(err, ShouldBeNil)

		Convey("Then IDs and timestamps are assigned", func() {
			_, err := uuid.Parse(first.ID)
			So(err, ShouldBeNil)
			So(first.CreatedAt.IsZero(), ShouldBeFalse)
			So(b.Len(), ShouldEqual, 2)
		})

		Convey("Then the context lists headers, rules and insights in order", func() {
			So(b.FlattenToContext(), ShouldResemble, []string{
				"--- FROM DOC: pressing.png (Tactic Guide) ---",
				"Use Pressing: High",
				"Press high against slow centre backs",
				"--- FROM DOC: wings.png (Notes) ---",
				"Overload the flanks",
			})
		})

		Convey("When the first document is removed", func() {
			removed, err := b.Remove(ctx, first.ID)
			So(err, ShouldBeNil)
			So(removed, ShouldBeTrue)

			Convey("Then only the second remains", func() {
				So(b.Len(), ShouldEqual, 1)
				So(b.List()[0].Filename, ShouldEqual, "wings.png")
			})

			Convey("And removing it again reports absent", func() {
				removed, err := b.Remove(ctx, first.ID)
				So(err, ShouldBeNil)
				So(removed, ShouldBeFalse)
			})
		})
	})

	Convey("Given an empty base", t, func() {
		Convey("Then the context is empty", func() {
			So(knowledge.New().FlattenToContext(), ShouldBeEmpty)
		})
	})
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()

	Convey("Given a persisted base", t, func() {
		backend := storage.NewMemory()
		b := knowledge.Open(ctx, backend, "tactix:1:knowledge")
		_, err := b.Add(ctx, knowledge.Insight{Filename: "a.png", DocumentType: "Guide"})
		So(err, ShouldBeNil)

		Convey("Then reopening restores it", func() {
			again := knowledge.Open(ctx, backend, "tactix:1:knowledge")
			So(again.Len(), ShouldEqual, 1)
			So(again.List()[0].Filename, ShouldEqual, "a.png")
		})
	})

	Convey("Given corrupt stored knowledge", t, func() {
		backend := storage.NewMemory()
		So(backend.Set(ctx, "k", "[{broken"), ShouldBeNil)

		Convey("Then the base opens empty", func() {
			So(knowledge.Open(ctx, backend, "k").Len(), ShouldEqual, 0)
		})
	})
}
