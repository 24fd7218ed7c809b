package result

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rumbo/drivermatch/internal/domain/model"
)

// DefaultTopMatches is how many assignments the report lists in detail.
const DefaultTopMatches = 10

const reportWidth = 80

// WriteReport renders the plain-text matching report. assignments must be
// ranked as returned by Assemble.
func WriteReport(w io.Writer, s Summary, assignments []model.Assignment, top int) error {
	bw := bufio.NewWriter(w)
	rule := strings.Repeat("=", reportWidth)
	thin := strings.Repeat("-", reportWidth)
	line := func(format string, args ...any) {
		fmt.Fprintf(bw, format+"\n", args...)
	}

	line(rule)
	line("DRIVER-ROUTE MATCHING REPORT")
	line(rule)
	line("")

	line("MATCHING STATISTICS")
	line(thin)
	line("Total drivers available: %d", s.Drivers)
	line("Total routes to assign: %d", s.Routes)
	line("Successful assignments: %d", s.Assigned)
	line("Unassigned drivers: %d", s.Unassigned)
	line("")
	line("Match Quality Metrics:")
	line("  Total match score: %.2f", s.TotalWeight)
	line("  Average match score: %.2f", s.MeanWeight)
	line("  Average score difference: %.2f", s.MeanScoreDifference)
	line("  Std score difference: %.2f", s.StdScoreDifference)
	line("")

	line("Driver-Route Fit Analysis:")
	for _, b := range []model.Band{model.BandOverQualified, model.BandWellMatched, model.BandUnderQualified} {
		line("  %s: %d (%.1f%%)", b, s.Bands[b], s.BandShare(b)*100)
	}
	line("")

	line("Assignments by Route Difficulty:")
	for _, t := range s.Tiers {
		if t.Count == 0 {
			continue
		}
		line("  %s: %d assignments (avg driver score: %.2f)", t.Tier, t.Count, t.MeanDriverScore)
	}
	line("")

	if top <= 0 {
		top = DefaultTopMatches
	}
	top = min(top, len(assignments))
	line("TOP %d BEST MATCHES", top)
	line(thin)
	for _, a := range assignments[:top] {
		line("%s -> %s", a.DriverID, a.RouteID)
		line("  Match Score: %.2f", a.Weight)
		line("  Driver: %.2f (Safety: %.2f, Efficiency: %.2f)", a.DriverScore, a.DriverSafety, a.DriverEfficiency)
		line("  Route: %.2f (%s, %.0f km)", a.RouteScore, a.Tier, a.RouteDistanceKM)
		line("  Fit: %+.2f points", a.ScoreDifference)
		line("")
	}

	if u := s.UnassignedScores; u.Count > 0 {
		line("UNASSIGNED DRIVERS ANALYSIS")
		line(thin)
		line("Total unassigned: %d", u.Count)
		line("Average score: %.2f", u.Mean)
		line("Score range: [%.2f, %.2f]", u.Min, u.Max)
		line("")
	}

	line(rule)
	return bw.Flush()
}
