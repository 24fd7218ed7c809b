package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/rumbo/drivermatch/internal/adapters/csvio"
	"github.com/rumbo/drivermatch/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestRun(t *testing.T) {
	convey.Convey("Given an output directory that does not exist yet", t, func() {
		dir := filepath.Join(t.TempDir(), "nested", "data")
		opts := options{drivers: 12, routes: 5, seed: 7, outDir: dir}

		convey.Convey("When the fleet is generated", func() {
			var out bytes.Buffer
			convey.So(run(context.Background(), opts, &out), convey.ShouldBeNil)

			convey.Convey("Then both CSV files should read back with the requested sizes", func() {
				f, err := os.Open(filepath.Join(dir, "drivers.csv"))
				convey.So(err, convey.ShouldBeNil)
				defer f.Close()
				drivers, err := csvio.ReadDrivers(f)
				convey.So(err, convey.ShouldBeNil)
				convey.So(drivers, convey.ShouldHaveLength, 12)

				g, err := os.Open(filepath.Join(dir, "routes.csv"))
				convey.So(err, convey.ShouldBeNil)
				defer g.Close()
				routes, err := csvio.ReadRoutes(g)
				convey.So(err, convey.ShouldBeNil)
				convey.So(routes, convey.ShouldHaveLength, 5)
				convey.So(out.Len(), convey.ShouldEqual, 0)
			})
		})
	})

	convey.Convey("Given negative sizes", t, func() {
		opts := options{drivers: -1, routes: 5}

		convey.Convey("Then run should fail", func() {
			convey.So(run(context.Background(), opts, &bytes.Buffer{}), convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given a submit URL nobody listens on", t, func() {
		opts := options{drivers: 3, routes: 2, submitURL: "http://127.0.0.1:1", timeout: time.Second}

		convey.Convey("Then the health check should fail", func() {
			err := run(context.Background(), opts, &bytes.Buffer{})
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "health check")
		})
	})
}
