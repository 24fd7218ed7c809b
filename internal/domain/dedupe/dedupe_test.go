package dedupe_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	dedupe "github.com/rumbo/drivermatch/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When claiming keys", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the key is new", func() {
				id, seen := d.Claim(ctx, "req-1", "run-a")

				Convey("Then it should bind the key to the run", func() {
					So(seen, ShouldBeFalse)
					So(id, ShouldEqual, "run-a")
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key was already claimed", func() {
				d.Claim(ctx, "req-1", "run-a")
				id, seen := d.Claim(ctx, "req-1", "run-b")

				Convey("Then the first run id should be returned", func() {
					So(seen, ShouldBeTrue)
					So(id, ShouldEqual, "run-a")
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And a key is looked up", func() {
				d.Claim(ctx, "req-1", "run-a")
				id, ok := d.Lookup(ctx, "req-1")
				_, missing := d.Lookup(ctx, "req-2")

				Convey("Then only claimed keys should resolve", func() {
					So(ok, ShouldBeTrue)
					So(id, ShouldEqual, "run-a")
					So(missing, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When releasing keys", func() {
			d := dedupe.NewInMemoryDeduper()
			d.Claim(ctx, "req-1", "run-a")

			Convey("And the key exists", func() {
				d.Release(ctx, "req-1")

				Convey("Then it can be claimed by a new run", func() {
					So(d.Size(), ShouldEqual, 0)
					id, seen := d.Claim(ctx, "req-1", "run-b")
					So(seen, ShouldBeFalse)
					So(id, ShouldEqual, "run-b")
				})
			})

			Convey("And the key doesn't exist", func() {
				d.Release(ctx, "other")

				Convey("Then the size should not change", func() {
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When using bounded mode at capacity", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for i := 1; i <= 3; i++ {
				d.Claim(ctx, fmt.Sprintf("req-%d", i), fmt.Sprintf("run-%d", i))
			}
			// touch req-1 so req-2 becomes the least recently used
			d.Claim(ctx, "req-1", "ignored")
			d.Claim(ctx, "req-4", "run-4")

			Convey("Then the least recently used key should be evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				_, ok := d.Lookup(ctx, "req-2")
				So(ok, ShouldBeFalse)
				id, ok := d.Lookup(ctx, "req-1")
				So(ok, ShouldBeTrue)
				So(id, ShouldEqual, "run-1")
			})
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := range 20000 {
				d.Claim(ctx, fmt.Sprintf("req-%d", i), "run")
			}

			Convey("Then every key should be kept", func() {
				So(d.Size(), ShouldEqual, 20000)
				_, ok := d.Lookup(ctx, "req-0")
				So(ok, ShouldBeTrue)
			})

			Convey("Then release should work too", func() {
				d.Release(ctx, "req-0")
				So(d.Size(), ShouldEqual, 19999)
			})
		})
	})

	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))

		Convey("When many goroutines claim the same key", func() {
			var (
				wg     sync.WaitGroup
				mu     sync.Mutex
				firsts int
				ids    = map[string]bool{}
			)
			for i := range 50 {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					id, seen := d.Claim(ctx, "shared", fmt.Sprintf("run-%d", i))
					mu.Lock()
					defer mu.Unlock()
					if !seen {
						firsts++
					}
					ids[id] = true
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one run should win and all callers agree", func() {
				So(firsts, ShouldEqual, 1)
				So(ids, ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given edge cases", t, func() {
		Convey("When claiming an empty or very long key", func() {
			d := dedupe.NewInMemoryDeduper()
			long := strings.Repeat("k", 10000)
			_, seenEmpty := d.Claim(ctx, "", "run-a")
			_, seenLong := d.Claim(ctx, long, "run-b")

			Convey("Then both should be handled like any key", func() {
				So(seenEmpty, ShouldBeFalse)
				So(seenLong, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
			})
		})
	})
}
