// Package datefmt normalizes the date representations found in milestone
// data into the canonical YYYY-MM-DD storage form and renders them back.
package datefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/upstream-pm/upstream/internal/host"
)

// Layout is the canonical storage layout.
const Layout = "2006-01-02"

// DefaultDisplayLayout is used when no display layout is configured.
const DefaultDisplayLayout = "January 2, 2006"

// Format selects how a stored date is rendered.
type Format string

const (
	// MySQL returns the stored string unchanged.
	MySQL Format = "mysql"
	// Unix returns the epoch seconds of midnight in the site timezone.
	Unix Format = "unix"
	// Upstream returns the date in the site display layout.
	Upstream Format = "upstream"
)

// ParseFormat validates a format name. The empty string selects MySQL.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", MySQL:
		return MySQL, nil
	case Unix:
		return Unix, nil
	case Upstream:
		return Upstream, nil
	}
	return "", host.Validationf("unknown date format %q (want mysql, unix or upstream)", s)
}

var (
	datePattern   = regexp.MustCompile(`[0-9]{4}-[0-9]{2}-[0-9]{2}`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
)

// Formatter converts dates using the site timezone and display layout.
type Formatter struct {
	loc    *time.Location
	layout string
}

// NewFormatter returns a Formatter. A nil location means UTC and an empty
// layout means DefaultDisplayLayout.
func NewFormatter(loc *time.Location, displayLayout string) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	if displayLayout == "" {
		displayLayout = DefaultDisplayLayout
	}
	return &Formatter{loc: loc, layout: displayLayout}
}

// Location returns the site timezone.
func (f *Formatter) Location() *time.Location { return f.loc }

// Normalize converts v into a canonical YYYY-MM-DD string.
//
// Strings containing a NNNN-NN-NN sequence are taken as already canonical,
// even when the rest of the string would parse differently. All-digit
// strings and integers are unix epochs. Anything else is parsed as a free
// form date in the site timezone. Empty input, nil and a zero epoch
// normalize to "", which clears the date.
func (f *Formatter) Normalize(v any) (string, error) {
	switch d := v.(type) {
	case nil:
		return "", nil
	case string:
		return f.normalizeString(d)
	case int:
		return f.fromEpoch(int64(d)), nil
	case int32:
		return f.fromEpoch(int64(d)), nil
	case int64:
		return f.fromEpoch(d), nil
	case uint:
		return f.fromEpoch(int64(d)), nil
	case time.Time:
		if d.IsZero() {
			return "", nil
		}
		return d.In(f.loc).Format(Layout), nil
	case fmt.Stringer:
		return f.normalizeString(d.String())
	}
	return "", host.Validationf("unsupported date value of type %T", v)
}

func (f *Formatter) normalizeString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if m := datePattern.FindString(s); m != "" {
		if _, err := time.ParseInLocation(Layout, m, f.loc); err != nil {
			return "", host.Validationf("%q is not a valid calendar date", m)
		}
		return m, nil
	}
	if digitsPattern.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return "", host.Validationf("date %q is out of range", s)
		}
		return f.fromEpoch(n), nil
	}
	t, err := dateparse.ParseIn(s, f.loc)
	if err != nil {
		return "", host.Validationf("%q is not a valid date", s)
	}
	return t.In(f.loc).Format(Layout), nil
}

func (f *Formatter) fromEpoch(n int64) string {
	if n == 0 {
		return ""
	}
	return time.Unix(n, 0).In(f.loc).Format(Layout)
}

// Value wraps a stored date string.
func (f *Formatter) Value(stored string) Value {
	return Value{raw: stored, f: f}
}

// Value is a stored date together with the formatter that renders it.
type Value struct {
	raw string
	f   *Formatter
}

// IsZero reports whether no date is stored.
func (v Value) IsZero() bool { return strings.TrimSpace(v.raw) == "" }

// MySQL returns the stored string.
func (v Value) MySQL() string { return v.raw }

// Time interprets the stored string as midnight of its date in the site
// timezone. Legacy epoch strings are accepted too.
func (v Value) Time() (time.Time, bool) {
	if v.IsZero() || v.f == nil {
		return time.Time{}, false
	}
	s := strings.TrimSpace(v.raw)
	if digitsPattern.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0).In(v.f.loc), true
	}
	if m := datePattern.FindString(s); m != "" {
		t, err := time.ParseInLocation(Layout, m, v.f.loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	t, err := dateparse.ParseIn(s, v.f.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Unix returns epoch seconds, or 0 when no valid date is stored.
func (v Value) Unix() int64 {
	t, ok := v.Time()
	if !ok {
		return 0
	}
	return t.Unix()
}

// Display renders the date with the site display layout.
func (v Value) Display() string {
	t, ok := v.Time()
	if !ok {
		return ""
	}
	return t.Format(v.f.layout)
}

// Format renders the date in the requested format. Unix renders decimal
// seconds.
func (v Value) Format(f Format) string {
	switch f {
	case Unix:
		if n := v.Unix(); n != 0 {
			return strconv.FormatInt(n, 10)
		}
		return ""
	case Upstream:
		return v.Display()
	}
	return v.MySQL()
}

func (v Value) String() string { return v.raw }
