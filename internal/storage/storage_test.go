package storage_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tactix/internal/storage"
)

func exerciseBackend(b storage.Backend) {
	ctx := context.Background()

	Convey("When a key was never written", func() {
		v, ok, err := b.Get(ctx, "tactix:1:my_team")

		Convey("Then Get reports absent", func() {
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(v, ShouldBeEmpty)
		})
	})

	Convey("When a key is written twice", func() {
		So(b.Set(ctx, "tactix:1:my_team", `{"name":"A"}`), ShouldBeNil)
		So(b.Set(ctx, "tactix:1:my_team", `{"name":"B"}`), ShouldBeNil)

		Convey("Then the last write wins", func() {
			v, ok, err := b.Get(ctx, "tactix:1:my_team")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, `{"name":"B"}`)
		})

		Convey("And after Delete the key is absent", func() {
			So(b.Delete(ctx, "tactix:1:my_team"), ShouldBeNil)
			_, ok, err := b.Get(ctx, "tactix:1:my_team")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("When deleting a missing key", func() {
		Convey("Then it is not an error", func() {
			So(b.Delete(ctx, "nope"), ShouldBeNil)
		})
	})
}

func TestMemoryBackend(t *testing.T) {
	Convey("Given a memory backend", t, func() {
		exerciseBackend(storage.NewMemory())
	})
}

func TestFileBackend(t *testing.T) {
	Convey("Given a file backend", t, func() {
		dir := t.TempDir()
		b, err := storage.NewFile(dir)
		So(err, ShouldBeNil)

		exerciseBackend(b)

		Convey("When a value is written and the backend reopened", func() {
			So(b.Set(context.Background(), "tactix:7:opponent", "persisted"), ShouldBeNil)

			reopened, err := storage.NewFile(dir)
			So(err, ShouldBeNil)

			Convey("Then the value survives", func() {
				v, ok, err := reopened.Get(context.Background(), "tactix:7:opponent")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "persisted")
			})
		})
	})
}

func TestRedisFallback(t *testing.T) {
	Convey("Given no Redis URL", t, func() {
		b := storage.NewRedisClient(context.Background(), "")

		Convey("Then a memory backend is returned", func() {
			_, isMemory := b.(*storage.Memory)
			So(isMemory, ShouldBeTrue)
		})
	})

	Convey("Given an unparsable Redis URL", t, func() {
		b := storage.NewRedisClient(context.Background(), "::not a url::")

		Convey("Then a memory backend is returned", func() {
			_, isMemory := b.(*storage.Memory)
			So(isMemory, ShouldBeTrue)
		})
	})
}
