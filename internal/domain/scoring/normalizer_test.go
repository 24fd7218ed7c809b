package scoring_test

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/rumbo/drivermatch/internal/domain/model"
	"github.com/rumbo/drivermatch/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

func TestNormalizerDrivers(t *testing.T) {
	convey.Convey("Given a default normalizer", t, func() {
		n := scoring.New()

		convey.Convey("When normalizing two drivers one deviation apart", func() {
			drivers, err := n.Drivers([]model.RawDriver{
				{ID: "DRV00001", Safety: 80, Efficiency: 70, Compliance: 60, DrivenKM: 10000},
				{ID: "DRV00002", Safety: 50, Efficiency: 50, Compliance: 50, DrivenKM: 20000},
			})

			convey.Convey("Then scores should follow the weighted formula", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(drivers, convey.ShouldHaveLength, 2)
				convey.So(drivers[0].ScoreFinal, convey.ShouldAlmostEqual, 0.40*80+0.35*70+0.25*60, 1e-9)
				convey.So(drivers[0].KMBalance, convey.ShouldAlmostEqual, 5000, 1e-9)
				convey.So(drivers[0].KMBalanceScaled, convey.ShouldAlmostEqual, 5, 1e-9)
				convey.So(drivers[0].ScoreAdjusted, convey.ShouldAlmostEqual, drivers[0].ScoreFinal+0.75, 1e-9)
				convey.So(drivers[1].KMBalanceScaled, convey.ShouldAlmostEqual, -5, 1e-9)
				convey.So(drivers[1].ScoreAdjusted, convey.ShouldAlmostEqual, 49.25, 1e-9)
				convey.So(drivers[0].RawDriver.ID, convey.ShouldEqual, "DRV00001")
			})
		})

		convey.Convey("When every driver drove the same distance", func() {
			drivers, err := n.Drivers([]model.RawDriver{
				{ID: "a", Safety: 90, Efficiency: 90, Compliance: 90, DrivenKM: 15000},
				{ID: "b", Safety: 10, Efficiency: 10, Compliance: 10, DrivenKM: 15000},
				{ID: "c", Safety: 40, Efficiency: 40, Compliance: 40, DrivenKM: 15000},
			})

			convey.Convey("Then scaled balance should be zero and adjusted equal final", func() {
				convey.So(err, convey.ShouldBeNil)
				for _, d := range drivers {
					convey.So(d.KMBalance, convey.ShouldEqual, 0)
					convey.So(d.KMBalanceScaled, convey.ShouldEqual, 0)
					convey.So(d.ScoreAdjusted, convey.ShouldAlmostEqual, d.ScoreFinal, 1e-12)
				}
			})
		})

		convey.Convey("When one driver is a far outlier", func() {
			raw := make([]model.RawDriver, 10)
			for i := range raw {
				raw[i] = model.RawDriver{ID: fmt.Sprintf("d%d", i), Safety: 100, Efficiency: 100, Compliance: 100}
			}
			raw[9].DrivenKM = 100000
			drivers, err := n.Drivers(raw)

			convey.Convey("Then scaled balance should clip to [-10,10] and adjusted to [0,100]", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(drivers[9].KMBalanceScaled, convey.ShouldEqual, -10)
				convey.So(drivers[9].ScoreAdjusted, convey.ShouldAlmostEqual, 98.5, 1e-9)
				convey.So(drivers[0].ScoreAdjusted, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When a large random fleet is normalized", func() {
			rng := rand.New(rand.NewPCG(42, 7))
			raw := make([]model.RawDriver, 500)
			for i := range raw {
				raw[i] = model.RawDriver{
					ID:         fmt.Sprintf("DRV%05d", i+1),
					Safety:     rng.Float64() * 100,
					Efficiency: rng.Float64() * 100,
					Compliance: rng.Float64() * 100,
					DrivenKM:   rng.Float64() * 60000,
				}
			}
			drivers, err := scoring.New(scoring.WithAlpha(3)).Drivers(raw)

			convey.Convey("Then every driver should respect the score invariants", func() {
				convey.So(err, convey.ShouldBeNil)
				for _, d := range drivers {
					convey.So(d.ScoreAdjusted, convey.ShouldBeBetweenOrEqual, 0, 100)
					convey.So(d.KMBalanceScaled, convey.ShouldBeBetweenOrEqual, -10, 10)
				}
			})
		})

		convey.Convey("When no drivers are given", func() {
			_, err := n.Drivers(nil)

			convey.Convey("Then the input should be degenerate", func() {
				convey.So(errors.Is(err, model.ErrDegenerateInput), convey.ShouldBeTrue)
			})
		})
	})
}

func TestNormalizerDriverValidation(t *testing.T) {
	convey.Convey("Given malformed driver records", t, func() {
		n := scoring.New()
		valid := model.RawDriver{ID: "ok", Safety: 50, Efficiency: 50, Compliance: 50, DrivenKM: 1}

		cases := map[string]model.RawDriver{
			"safety_score":     {ID: "x", Safety: 100.5, Efficiency: 50, Compliance: 50},
			"efficiency_score": {ID: "x", Safety: 50, Efficiency: -1, Compliance: 50},
			"compliance_score": {ID: "x", Safety: 50, Efficiency: 50, Compliance: math.NaN()},
			"driven_km":        {ID: "x", Safety: 50, Efficiency: 50, Compliance: 50, DrivenKM: -3},
			"driver_id":        {ID: " ", Safety: 50, Efficiency: 50, Compliance: 50},
		}

		for field, bad := range cases {
			_, err := n.Drivers([]model.RawDriver{valid, bad})

			convey.Convey("Then "+field+" should be rejected", func() {
				var ie *model.InputError
				convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)
				convey.So(errors.As(err, &ie), convey.ShouldBeTrue)
				convey.So(ie.Field, convey.ShouldEqual, field)
				convey.So(ie.Index, convey.ShouldEqual, 1)
			})
		}

		convey.Convey("Then duplicate identifiers should be rejected", func() {
			_, err := n.Drivers([]model.RawDriver{valid, valid})
			convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "duplicate")
		})
	})
}

func TestNormalizerRoutes(t *testing.T) {
	convey.Convey("Given a default normalizer", t, func() {
		n := scoring.New()

		convey.Convey("When normalizing routes", func() {
			routes, err := n.Routes([]model.RawRoute{
				{ID: "RTE0001", Efficiency: 100, Complexity: 100, Danger: 100, DistanceKM: 420},
				{ID: "RTE0002", Efficiency: 50, Complexity: 40, Danger: 30},
				{ID: "RTE0003"},
			})

			convey.Convey("Then final scores and tiers should be computed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(routes[0].ScoreFinal, convey.ShouldAlmostEqual, 100, 1e-9)
				convey.So(routes[0].Tier, convey.ShouldEqual, model.TierExpert)
				convey.So(routes[0].DistanceKM, convey.ShouldEqual, 420)
				convey.So(routes[1].ScoreFinal, convey.ShouldAlmostEqual, 41, 1e-9)
				convey.So(routes[1].Tier, convey.ShouldEqual, model.TierMedium)
				convey.So(routes[2].ScoreFinal, convey.ShouldEqual, 0)
				convey.So(routes[2].Tier, convey.ShouldEqual, model.TierEasy)
			})
		})

		convey.Convey("When heavier weights push scores above 100", func() {
			routes, err := scoring.New(scoring.WithRouteWeights(scoring.RouteWeights{
				Efficiency: 1, Complexity: 1, Danger: 1,
			})).Routes([]model.RawRoute{{ID: "r", Efficiency: 90, Complexity: 90, Danger: 90}})

			convey.Convey("Then the final score should be clipped", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(routes[0].ScoreFinal, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When a random route set is normalized", func() {
			rng := rand.New(rand.NewPCG(1, 2))
			raw := make([]model.RawRoute, 300)
			for i := range raw {
				raw[i] = model.RawRoute{
					ID:         fmt.Sprintf("RTE%04d", i+1),
					Efficiency: rng.Float64() * 100,
					Complexity: rng.Float64() * 100,
					Danger:     rng.Float64() * 100,
				}
			}
			routes, err := n.Routes(raw)

			convey.Convey("Then tiers should be monotonic in the final score", func() {
				convey.So(err, convey.ShouldBeNil)
				for _, a := range routes {
					convey.So(a.ScoreFinal, convey.ShouldBeBetweenOrEqual, 0, 100)
					for _, b := range routes {
						if a.ScoreFinal <= b.ScoreFinal && a.Tier.Rank() > b.Tier.Rank() {
							convey.So(fmt.Sprintf("%s(%v) above %s(%v)", a.Tier, a.ScoreFinal, b.Tier, b.ScoreFinal), convey.ShouldBeEmpty)
						}
					}
				}
			})
		})

		convey.Convey("When a route has an out of range danger score", func() {
			_, err := n.Routes([]model.RawRoute{{ID: "r", Danger: 101}})

			convey.Convey("Then it should be invalid input", func() {
				var ie *model.InputError
				convey.So(errors.As(err, &ie), convey.ShouldBeTrue)
				convey.So(ie.Entity, convey.ShouldEqual, "route")
				convey.So(ie.Field, convey.ShouldEqual, "peligrosity_score")
			})
		})

		convey.Convey("When no routes are given", func() {
			_, err := n.Routes([]model.RawRoute{})

			convey.Convey("Then the input should be degenerate", func() {
				convey.So(errors.Is(err, model.ErrDegenerateInput), convey.ShouldBeTrue)
			})
		})
	})
}

func TestNormalizerOptions(t *testing.T) {
	convey.Convey("Given normalizer options", t, func() {
		convey.Convey("When negative weights are passed", func() {
			n := scoring.New(scoring.WithDriverWeights(scoring.DriverWeights{Safety: -1}))
			drivers, err := n.Drivers([]model.RawDriver{{ID: "a", Safety: 100, Efficiency: 0, Compliance: 0}})

			convey.Convey("Then the defaults should be kept", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(drivers[0].ScoreFinal, convey.ShouldAlmostEqual, 40, 1e-9)
			})
		})

		convey.Convey("When alpha is set", func() {
			n := scoring.New(scoring.WithAlpha(0.5))

			convey.Convey("Then it should be reported back", func() {
				convey.So(n.Alpha(), convey.ShouldEqual, 0.5)
			})
		})
	})
}
