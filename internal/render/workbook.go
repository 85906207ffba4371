package render

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/unklstewy/hilalscope/internal/scan"
	"github.com/unklstewy/hilalscope/internal/visibility"
	"github.com/unklstewy/hilalscope/pkg/coordinates"
)

// Sheet names of an exported scan.
const (
	VisibilitySheet = "Visibility"
	SummarySheet    = "Summary"
)

// Workbook collects a scan for XLSX export. Points are buffered and written
// with a stream writer when the workbook is saved.
type Workbook struct {
	// IncludeNotVisible keeps NOT_VISIBLE rows in the export.
	IncludeNotVisible bool

	geo        *GeoJSON
	completion *scan.Completion
}

// NewWorkbook returns an empty workbook sink.
func NewWorkbook() *Workbook {
	geo := NewGeoJSON()
	geo.IncludeNotVisible = true
	return &Workbook{geo: geo}
}

func (w *Workbook) ClearTier(tier visibility.Tier) { w.geo.ClearTier(tier) }

func (w *Workbook) AddPoint(tier visibility.Tier, lat, lon float64, color string) {
	if tier == visibility.NotVisible && !w.IncludeNotVisible {
		return
	}
	w.geo.AddPoint(tier, lat, lon, color)
}

func (w *Workbook) SetMarker(lat, lon float64, label string) { w.geo.SetMarker(lat, lon, label) }

func (w *Workbook) DrawLine(from, to coordinates.Geographic, style string) {
	w.geo.DrawLine(from, to, style)
}

// Complete records the scan metadata shown on the summary sheet.
func (w *Workbook) Complete(c scan.Completion) {
	w.completion = &c
}

// Save writes the workbook to path.
func (w *Workbook) Save(path string) error {
	f, err := w.build()
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return eris.Wrapf(err, "failed to save workbook %s", path)
	}
	return nil
}

// WriteTo writes the workbook to out.
func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	f, err := w.build()
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := f.WriteTo(out)
	if err != nil {
		return n, eris.Wrap(err, "failed to write workbook")
	}
	return n, nil
}

func (w *Workbook) build() (*excelize.File, error) {
	f := excelize.NewFile()

	if _, err := f.NewSheet(VisibilitySheet); err != nil {
		return nil, eris.Wrap(err, "failed to create visibility sheet")
	}
	sw, err := f.NewStreamWriter(VisibilitySheet)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open stream writer")
	}

	headers := []interface{}{"Latitude", "Longitude", "Tier", "Label", "Color"}
	if err := sw.SetRow("A1", headers); err != nil {
		return nil, eris.Wrap(err, "failed to write header row")
	}

	counts := make(map[visibility.Tier]int)
	points := w.geo.Points()
	for i, p := range points {
		counts[p.Tier]++
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{p.Latitude, p.Longitude, p.Tier.String(), p.Tier.Label(), p.Color}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, eris.Wrapf(err, "failed to write row %d", i+2)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, eris.Wrap(err, "failed to flush visibility sheet")
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, eris.Wrap(err, "failed to create summary sheet")
	}
	rows := [][]interface{}{{"Field", "Value"}}
	if c := w.completion; c != nil {
		rows = append(rows,
			[]interface{}{"Date", c.Date.UTC().Format("2006-01-02")},
			[]interface{}{"Run ID", c.RunID},
			[]interface{}{"Generation", uint64(c.Generation)},
			[]interface{}{"Cells", c.Cells},
			[]interface{}{"Elapsed", c.Elapsed.Round(time.Millisecond).String()},
		)
	}
	for _, t := range visibility.Tiers {
		rows = append(rows, []interface{}{t.Label(), counts[t]})
	}
	if m, ok := w.marker(); ok {
		rows = append(rows, []interface{}{"Selected", m.Label},
			[]interface{}{"Selected latitude", m.Latitude},
			[]interface{}{"Selected longitude", m.Longitude})
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return nil, eris.Wrapf(err, "failed to write summary row %d", i+1)
		}
	}

	f.DeleteSheet("Sheet1")
	index, err := f.GetSheetIndex(VisibilitySheet)
	if err != nil {
		return nil, eris.Wrap(err, "failed to locate visibility sheet")
	}
	f.SetActiveSheet(index)
	return f, nil
}

func (w *Workbook) marker() (Marker, bool) {
	w.geo.mu.Lock()
	defer w.geo.mu.Unlock()
	if w.geo.marker == nil {
		return Marker{}, false
	}
	return *w.geo.marker, true
}
