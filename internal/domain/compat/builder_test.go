package compat_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/rumbo/drivermatch/internal/domain/compat"
	"github.com/rumbo/drivermatch/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func driver(adjusted, safety, kmBalance float64) model.Driver {
	return model.Driver{
		RawDriver:     model.RawDriver{ID: "d", Safety: safety},
		ScoreAdjusted: adjusted,
		KMBalance:     kmBalance,
	}
}

func route(final, danger float64) model.Route {
	return model.Route{RawRoute: model.RawRoute{ID: "r", Danger: danger}, ScoreFinal: final}
}

func TestWeight(t *testing.T) {
	convey.Convey("Given the default weight formula", t, func() {
		b := compat.New()

		convey.Convey("When a qualified, under-used, safe driver meets a dangerous route", func() {
			d := driver(90, 80, 2000)
			r := route(85, 75)

			convey.Convey("Then every term should contribute", func() {
				// 100 - 5 + 10 - 2 + 16
				convey.So(b.Weight(&d, &r), convey.ShouldAlmostEqual, 119, 1e-9)
			})
		})

		convey.Convey("When an under-qualified driver meets a calm route", func() {
			d := driver(40, 95, 0)
			r := route(85, 70)

			convey.Convey("Then the penalty applies and no safety bonus is paid at exactly 70", func() {
				convey.So(b.Weight(&d, &r), convey.ShouldAlmostEqual, 35, 1e-9)
			})
		})

		convey.Convey("When scores are equal", func() {
			d := driver(60, 0, -5000)
			r := route(60, 10)

			convey.Convey("Then the driver should count as qualified", func() {
				convey.So(b.Weight(&d, &r), convey.ShouldAlmostEqual, 115, 1e-9)
			})
		})

		convey.Convey("When a far mismatch makes the weight negative", func() {
			d := driver(0, 0, 30000)
			r := route(100, 0)

			convey.Convey("Then it should not be clipped", func() {
				convey.So(b.Weight(&d, &r), convey.ShouldAlmostEqual, -50, 1e-9)
			})
		})

		convey.Convey("When the bonuses are tuned", func() {
			tuned := compat.New(compat.WithSkillBonus(5, -5), compat.WithSafetyBonus(50, 0.5), compat.WithKMDivisor(500))
			d := driver(90, 80, 1000)
			r := route(85, 60)

			convey.Convey("Then the tuned constants should be used", func() {
				// 95 + 5 - 2 + 40
				convey.So(tuned.Weight(&d, &r), convey.ShouldAlmostEqual, 138, 1e-9)
			})
		})
	})
}

func TestBuild(t *testing.T) {
	convey.Convey("Given random normalized drivers and routes", t, func() {
		rng := rand.New(rand.NewPCG(42, 42))
		drivers := make([]model.Driver, 97)
		for i := range drivers {
			drivers[i] = model.Driver{
				RawDriver:     model.RawDriver{ID: fmt.Sprintf("d%d", i), Safety: rng.Float64() * 100},
				ScoreAdjusted: rng.Float64() * 100,
				KMBalance:     rng.NormFloat64() * 5000,
			}
		}
		routes := make([]model.Route, 31)
		for j := range routes {
			routes[j] = model.Route{
				RawRoute:   model.RawRoute{ID: fmt.Sprintf("r%d", j), Danger: rng.Float64() * 100},
				ScoreFinal: rng.Float64() * 100,
			}
		}
		ctx := context.Background()

		convey.Convey("When built with one and with many workers", func() {
			serial, err1 := compat.New(compat.WithWorkers(1)).Build(ctx, drivers, routes)
			parallel, err2 := compat.New(compat.WithWorkers(8)).Build(ctx, drivers, routes)

			convey.Convey("Then both matrices should be identical and match Weight", func() {
				convey.So(err1, convey.ShouldBeNil)
				convey.So(err2, convey.ShouldBeNil)
				rows, cols := parallel.Dims()
				convey.So(rows, convey.ShouldEqual, 97)
				convey.So(cols, convey.ShouldEqual, 31)
				convey.So(mat.Equal(serial, parallel), convey.ShouldBeTrue)

				b := compat.New()
				convey.So(parallel.At(13, 7), convey.ShouldEqual, b.Weight(&drivers[13], &routes[7]))
				convey.So(parallel.At(96, 30), convey.ShouldEqual, b.Weight(&drivers[96], &routes[30]))
			})
		})

		convey.Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			w, err := compat.New(compat.WithWorkers(4)).Build(cctx, drivers, routes)

			convey.Convey("Then no matrix should be returned", func() {
				convey.So(w, convey.ShouldBeNil)
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When there are no routes", func() {
			_, err := compat.New().Build(ctx, drivers, nil)

			convey.Convey("Then the input should be degenerate", func() {
				convey.So(errors.Is(err, model.ErrDegenerateInput), convey.ShouldBeTrue)
			})
		})
	})
}
