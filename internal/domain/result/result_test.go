package result_test

import (
	"bytes"
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/rumbo/drivermatch/internal/domain/model"
	"github.com/rumbo/drivermatch/internal/domain/result"
	"github.com/smartystreets/goconvey/convey"
)

func fixture() ([]model.Driver, []model.Route, *mat.Dense) {
	drivers := []model.Driver{
		{RawDriver: model.RawDriver{ID: "DRV00001", Safety: 91, Efficiency: 80}, ScoreAdjusted: 90, KMBalance: 1200},
		{RawDriver: model.RawDriver{ID: "DRV00002", Safety: 60, Efficiency: 55}, ScoreAdjusted: 60},
		{RawDriver: model.RawDriver{ID: "DRV00003", Safety: 35, Efficiency: 42}, ScoreAdjusted: 40},
		{RawDriver: model.RawDriver{ID: "DRV00004", Safety: 20, Efficiency: 30}, ScoreAdjusted: 25},
	}
	routes := []model.Route{
		{RawRoute: model.RawRoute{ID: "RTE0002", Danger: 80, DistanceKM: 310}, ScoreFinal: 85, Tier: model.TierExpert},
		{RawRoute: model.RawRoute{ID: "RTE0001", Danger: 10, DistanceKM: 95}, ScoreFinal: 45, Tier: model.TierMedium},
		{RawRoute: model.RawRoute{ID: "RTE0003", Danger: 20, DistanceKM: 120}, ScoreFinal: 62, Tier: model.TierHard},
	}
	w := mat.NewDense(4, 3, []float64{
		105, 65, 80,
		55, 95, 95,
		35, 75, 60,
		10, 70, 40,
	})
	return drivers, routes, w
}

func TestAssemble(t *testing.T) {
	convey.Convey("Given solved pairs over a small fleet", t, func() {
		drivers, routes, w := fixture()
		pairs := []model.Pair{
			{DriverIndex: 0, RouteIndex: 0},
			{DriverIndex: 2, RouteIndex: 1},
			{DriverIndex: 1, RouteIndex: 2},
		}

		convey.Convey("When assembling", func() {
			out, err := result.Assemble(drivers, routes, w, pairs)

			convey.Convey("Then assignments should be ranked by weight", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldHaveLength, 3)
				convey.So(out[0].RouteID, convey.ShouldEqual, "RTE0002")
				convey.So(out[1].Weight, convey.ShouldEqual, 95)
				convey.So(out[2].Weight, convey.ShouldEqual, 75)
			})

			convey.Convey("Then derived fields should be filled", func() {
				top := out[0]
				convey.So(top.DriverID, convey.ShouldEqual, "DRV00001")
				convey.So(top.ScoreDifference, convey.ShouldEqual, 5)
				convey.So(top.Band, convey.ShouldEqual, model.BandWellMatched)
				convey.So(top.Tier, convey.ShouldEqual, model.TierExpert)
				convey.So(top.RouteDistanceKM, convey.ShouldEqual, 310)
				convey.So(top.RouteDanger, convey.ShouldEqual, 80)
				convey.So(top.DriverSafety, convey.ShouldEqual, 91)
				convey.So(top.KMBalance, convey.ShouldEqual, 1200)

				convey.So(out[2].ScoreDifference, convey.ShouldEqual, -5)
				convey.So(out[1].ScoreDifference, convey.ShouldEqual, -2)
			})
		})

		convey.Convey("When two assignments tie on weight", func() {
			w.Set(2, 1, 95)
			out, err := result.Assemble(drivers, routes, w, pairs)

			convey.Convey("Then the route id should break the tie", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out[1].RouteID, convey.ShouldEqual, "RTE0001")
				convey.So(out[2].RouteID, convey.ShouldEqual, "RTE0003")
			})
		})

		convey.Convey("When a pair points past the driver list", func() {
			out, err := result.Assemble(drivers[:2], routes, w, pairs)

			convey.Convey("Then it should be a missing join", func() {
				convey.So(out, convey.ShouldBeNil)
				convey.So(errors.Is(err, model.ErrMissingJoin), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a pair has a negative route index", func() {
			_, err := result.Assemble(drivers, routes, w, []model.Pair{{DriverIndex: 0, RouteIndex: -1}})

			convey.Convey("Then it should be a missing join", func() {
				convey.So(errors.Is(err, model.ErrMissingJoin), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When listing unassigned drivers", func() {
			left := result.Unassigned(drivers, pairs)

			convey.Convey("Then only the idle driver should remain", func() {
				convey.So(left, convey.ShouldHaveLength, 1)
				convey.So(left[0].ID, convey.ShouldEqual, "DRV00004")
			})
		})
	})
}

func TestSummarizeAndReport(t *testing.T) {
	convey.Convey("Given an assembled run", t, func() {
		drivers, routes, w := fixture()
		pairs := []model.Pair{
			{DriverIndex: 0, RouteIndex: 0},
			{DriverIndex: 3, RouteIndex: 1},
			{DriverIndex: 1, RouteIndex: 2},
		}
		out, err := result.Assemble(drivers, routes, w, pairs)
		convey.So(err, convey.ShouldBeNil)
		left := result.Unassigned(drivers, pairs)
		s := result.Summarize(drivers, routes, out, left)

		convey.Convey("Then counts and weights should add up", func() {
			convey.So(s.Drivers, convey.ShouldEqual, 4)
			convey.So(s.Routes, convey.ShouldEqual, 3)
			convey.So(s.Assigned, convey.ShouldEqual, 3)
			convey.So(s.Unassigned, convey.ShouldEqual, 1)
			convey.So(s.TotalWeight, convey.ShouldEqual, 270)
			convey.So(s.MeanWeight, convey.ShouldEqual, 90)
		})

		convey.Convey("Then score differences should use population statistics", func() {
			// differences: 5, -20, -2
			convey.So(s.MeanScoreDifference, convey.ShouldAlmostEqual, -17.0/3, 1e-9)
			convey.So(s.StdScoreDifference, convey.ShouldAlmostEqual, 10.530379332620877, 1e-9)
		})

		convey.Convey("Then bands and tiers should be counted", func() {
			convey.So(s.Bands[model.BandWellMatched], convey.ShouldEqual, 2)
			convey.So(s.Bands[model.BandUnderQualified], convey.ShouldEqual, 1)
			convey.So(s.Bands[model.BandOverQualified], convey.ShouldEqual, 0)
			convey.So(s.BandShare(model.BandUnderQualified), convey.ShouldAlmostEqual, 1.0/3, 1e-12)
			convey.So(s.Tiers, convey.ShouldHaveLength, 4)
			convey.So(s.Tiers[0].Count, convey.ShouldEqual, 0)
			convey.So(s.Tiers[3], convey.ShouldResemble, result.TierStat{Tier: model.TierExpert, Count: 1, MeanDriverScore: 90})
		})

		convey.Convey("Then the unassigned driver should be described", func() {
			convey.So(s.UnassignedScores, convey.ShouldResemble, result.ScoreStats{Count: 1, Mean: 40, Min: 40, Max: 40})
		})

		convey.Convey("When rendering the report", func() {
			var buf bytes.Buffer
			err := result.WriteReport(&buf, s, out, 2)
			text := buf.String()

			convey.Convey("Then every section should be present", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(text, convey.ShouldContainSubstring, "DRIVER-ROUTE MATCHING REPORT")
				convey.So(text, convey.ShouldContainSubstring, "Successful assignments: 3")
				convey.So(text, convey.ShouldContainSubstring, "under-qualified: 1 (33.3%)")
				convey.So(text, convey.ShouldContainSubstring, "Expert: 1 assignments (avg driver score: 90.00)")
				convey.So(text, convey.ShouldContainSubstring, "TOP 2 BEST MATCHES")
				convey.So(text, convey.ShouldContainSubstring, "DRV00001 -> RTE0002")
				convey.So(text, convey.ShouldContainSubstring, "Fit: +5.00 points")
				convey.So(text, convey.ShouldContainSubstring, "Score range: [40.00, 40.00]")
				convey.So(text, convey.ShouldNotContainSubstring, "Easy:")
			})
		})
	})
}
