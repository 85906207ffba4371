package render

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/unklstewy/hilalscope/internal/summary"
	"github.com/unklstewy/hilalscope/pkg/ephemeris"
	"github.com/unklstewy/hilalscope/pkg/qibla"
)

// Formatter renders numbers and instants for display. Numbers follow the
// configured locale; instants are shown in the configured zone and always
// carry the zone abbreviation so UTC is never implied.
type Formatter struct {
	printer *message.Printer
	loc     *time.Location
}

// NewFormatter builds a formatter for a BCP 47 locale and an IANA zone name.
func NewFormatter(locale, zone string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid locale %q", locale)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid timezone %q", zone)
	}
	return &Formatter{printer: message.NewPrinter(tag), loc: loc}, nil
}

// DefaultFormatter formats in English with UTC times.
func DefaultFormatter() *Formatter {
	return &Formatter{printer: message.NewPrinter(language.English), loc: time.UTC}
}

// Location returns the display zone.
func (f *Formatter) Location() *time.Location { return f.loc }

// Sprintf formats according to the locale.
func (f *Formatter) Sprintf(format string, args ...interface{}) string {
	return f.printer.Sprintf(format, args...)
}

// Number formats v with the given number of decimals.
func (f *Formatter) Number(v float64, decimals int) string {
	return f.printer.Sprintf(fmt.Sprintf("%%.%df", decimals), v)
}

// Degrees formats an angle with one decimal.
func (f *Formatter) Degrees(v float64) string {
	return f.Number(v, 1) + "°"
}

// Time formats an instant in the display zone, e.g. "14:57 UTC".
func (f *Formatter) Time(t time.Time) string {
	return t.In(f.loc).Format("15:04 MST")
}

// Occurrence formats a rise/set result. Absent events are reported as
// ("", false) so callers omit the row.
func (f *Formatter) Occurrence(o ephemeris.Occurrence) (string, bool) {
	t, ok := o.Get()
	if !ok {
		return "", false
	}
	return f.Time(t), true
}

// Duration formats d as hours and minutes, e.g. "1h 35m".
func (f *Formatter) Duration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h == 0 {
		return f.printer.Sprintf("%dm", m)
	}
	return f.printer.Sprintf("%dh %dm", h, m)
}

// Row is one label/value line of the detail panel.
type Row struct {
	Label string
	Value string
}

// SummaryRows lays out a summary and the Qibla result for display. Absent
// rise/set rows are omitted.
func (f *Formatter) SummaryRows(s summary.Summary, q qibla.Result) []Row {
	rows := []Row{
		{"Date", s.Date.Format("2006-01-02")},
		{"Illumination", f.Number(s.Illumination, 1) + "%"},
		{"Moon age", f.Number(s.AgeDays, 1) + " days"},
		{"Phase", s.PhaseName},
	}
	if v, ok := f.Occurrence(s.Sunset); ok {
		rows = append(rows, Row{"Sunset", v})
	}
	if v, ok := f.Occurrence(s.Moonrise); ok {
		rows = append(rows, Row{"Moonrise", v})
	}
	if v, ok := f.Occurrence(s.Moonset); ok {
		rows = append(rows, Row{"Moonset", v})
	}
	if lag, ok := s.LagTime(); ok {
		rows = append(rows, Row{"Lag time", f.Duration(lag)})
	}
	rows = append(rows,
		Row{"Qibla", f.Degrees(q.BearingDegrees) + " " + qibla.Cardinal(q.BearingDegrees)},
		Row{"Distance to Kaaba", f.Number(q.DistanceKm, 0) + " km"},
	)
	return rows
}
