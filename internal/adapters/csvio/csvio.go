// Package csvio reads raw drivers and routes from CSV and writes
// assignments and fleets back out.
package csvio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rumbo/drivermatch/internal/domain/model"
)

// Column headers.
var (
	DriverHeader = []string{"driver_id", "safety_score", "efficiency_score", "compliance_score", "driven_km"}                         //nolint:gochecknoglobals // file contract
	RouteHeader  = []string{"route_id", "efficiency_score", "operational_complexity_score", "peligrosity_score", "total_distance_km"} //nolint:gochecknoglobals // file contract
	OutputHeader = []string{                                                                                                          //nolint:gochecknoglobals // file contract
		"driver_id", "route_id", "driver_score", "route_score", "match_score", "score_difference", "fit",
		"km_balance", "driver_safety", "driver_efficiency", "route_difficulty", "route_distance_km", "route_peligrosity",
	}
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF} //nolint:gochecknoglobals // constant bytes

// table is a CSV body with columns resolved by header name.
type table struct {
	entity string
	index  map[string]int
	rows   [][]string
}

func readTable(r io.Reader, entity string, required []string) (*table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &model.InputError{Entity: entity, Index: -1, Field: "header", Reason: "empty file"}
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", entity, err)
	}

	t := &table{entity: entity, index: make(map[string]int, len(header))}
	for i, h := range header {
		t.index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			return nil, &model.InputError{Entity: entity, Index: -1, Field: col, Reason: "missing column"}
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s rows: %w", entity, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func (t *table) str(row int, col string) string {
	rec := t.rows[row]
	i := t.index[col]
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *table) float(row int, col string) (float64, error) {
	s := t.str(row, col)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &model.InputError{
			Entity: t.entity,
			Index:  row,
			ID:     t.str(row, t.idColumn()),
			Field:  col,
			Reason: fmt.Sprintf("%q is not a number", s),
		}
	}
	return v, nil
}

func (t *table) idColumn() string {
	if t.entity == "route" {
		return "route_id"
	}
	return "driver_id"
}

// ReadDrivers parses a drivers CSV. Columns are matched by header name and
// extra columns are ignored.
func ReadDrivers(r io.Reader) ([]model.RawDriver, error) {
	t, err := readTable(r, "driver", DriverHeader)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawDriver, len(t.rows))
	for i := range t.rows {
		d := model.RawDriver{ID: t.str(i, "driver_id")}
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{"safety_score", &d.Safety},
			{"efficiency_score", &d.Efficiency},
			{"compliance_score", &d.Compliance},
			{"driven_km", &d.DrivenKM},
		} {
			if *f.dst, err = t.float(i, f.col); err != nil {
				return nil, err
			}
		}
		out[i] = d
	}
	return out, nil
}

// ReadRoutes parses a routes CSV.
func ReadRoutes(r io.Reader) ([]model.RawRoute, error) {
	t, err := readTable(r, "route", RouteHeader)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawRoute, len(t.rows))
	for i := range t.rows {
		rt := model.RawRoute{ID: t.str(i, "route_id")}
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{"efficiency_score", &rt.Efficiency},
			{"operational_complexity_score", &rt.Complexity},
			{"peligrosity_score", &rt.Danger},
			{"total_distance_km", &rt.DistanceKM},
		} {
			if *f.dst, err = t.float(i, f.col); err != nil {
				return nil, err
			}
		}
		out[i] = rt
	}
	return out, nil
}

func f2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeAll(w io.Writer, header []string, n int, row func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAssignments writes ranked assignments with two decimals.
func WriteAssignments(w io.Writer, assignments []model.Assignment) error {
	return writeAll(w, OutputHeader, len(assignments), func(i int) []string {
		a := &assignments[i]
		return []string{
			a.DriverID, a.RouteID,
			f2(a.DriverScore), f2(a.RouteScore), f2(a.Weight), f2(a.ScoreDifference), string(a.Band),
			f2(a.KMBalance), f2(a.DriverSafety), f2(a.DriverEfficiency),
			string(a.Tier), f2(a.RouteDistanceKM), f2(a.RouteDanger),
		}
	})
}

// WriteDrivers writes raw drivers in the input format.
func WriteDrivers(w io.Writer, drivers []model.RawDriver) error {
	return writeAll(w, DriverHeader, len(drivers), func(i int) []string {
		d := &drivers[i]
		return []string{d.ID, f2(d.Safety), f2(d.Efficiency), f2(d.Compliance), f2(d.DrivenKM)}
	})
}

// WriteRoutes writes raw routes in the input format.
func WriteRoutes(w io.Writer, routes []model.RawRoute) error {
	return writeAll(w, RouteHeader, len(routes), func(i int) []string {
		r := &routes[i]
		return []string{r.ID, f2(r.Efficiency), f2(r.Complexity), f2(r.Danger), f2(r.DistanceKM)}
	})
}
