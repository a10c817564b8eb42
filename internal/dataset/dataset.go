package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred type tag of a column.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
	KindDate    Kind = "date"
	KindBoolean Kind = "boolean"
)

// Column is a named, typed column of a Dataset.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Dataset is an in-memory table of string cells with inferred column kinds.
// Cells are kept verbatim; typed accessors parse on demand so analysis never mutates them.
type Dataset struct {
	Name     string
	Columns  []Column
	Rows     [][]string
	Warnings []string

	opt Options
}

// missingTokens mirrors the NA spellings pandas treats as missing on read.
var missingTokens = map[string]struct{}{
	"": {}, "nan": {}, "-nan": {}, "null": {}, "none": {}, "n/a": {}, "na": {}, "#n/a": {}, "<na>": {}, "#na": {},
}

// IsMissing reports whether a raw cell value counts as missing.
func IsMissing(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// New builds a Dataset from a header and rows using DefaultOptions for parsing.
func New(name string, header []string, rows [][]string) *Dataset {
	return build(name, header, rows, DefaultOptions())
}

func build(name string, header []string, rows [][]string, opt Options) *Dataset {
	ds := &Dataset{Name: name, opt: opt}
	seen := map[string]int{}
	for i, h := range header {
		n := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if n == "" {
			n = fmt.Sprintf("Unnamed: %d", i)
		}
		if c, dup := seen[n]; dup {
			seen[n] = c + 1
			n = fmt.Sprintf("%s.%d", n, c+1)
		} else {
			seen[n] = 0
		}
		ds.Columns = append(ds.Columns, Column{Name: n})
	}
	ncol := len(ds.Columns)
	ds.Rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		if len(r) < ncol {
			tmp := make([]string, ncol)
			copy(tmp, r)
			r = tmp
		}
		ds.Rows = append(ds.Rows, r[:ncol])
	}
	for j := range ds.Columns {
		ds.Columns[j].Kind = ds.inferKind(j)
	}
	return ds
}

// inferKind picks the predominant parse type among non-missing cells.
func (d *Dataset) inferKind(col int) Kind {
	var numCnt, dtCnt, boolCnt, txtCnt int
	for i := range d.Rows {
		v := strings.TrimSpace(d.Rows[i][col])
		if IsMissing(v) {
			continue
		}
		if _, ok := parseNumeric(v, d.opt); ok {
			numCnt++
			continue
		}
		if _, ok := parseTimeMaybe(v); ok {
			dtCnt++
			continue
		}
		if _, ok := parseBool(v); ok {
			boolCnt++
			continue
		}
		txtCnt++
	}
	switch {
	case numCnt > 0 && numCnt >= dtCnt && numCnt >= boolCnt && numCnt >= txtCnt:
		return KindNumeric
	case dtCnt > 0 && dtCnt >= boolCnt && dtCnt >= txtCnt:
		return KindDate
	case boolCnt > 0 && boolCnt >= txtCnt:
		return KindBoolean
	default:
		return KindText
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// ColumnNames returns column names in order.
func (d *Dataset) ColumnNames() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// ColumnIndex returns the index of the column with the given name (case-insensitive), or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// ColumnsOfKind returns indexes of columns with any of the given kinds, in column order.
func (d *Dataset) ColumnsOfKind(kinds ...Kind) []int {
	var out []int
	for i, c := range d.Columns {
		for _, k := range kinds {
			if c.Kind == k {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// Cell returns the trimmed raw value at row, col.
func (d *Dataset) Cell(row, col int) string {
	return strings.TrimSpace(d.Rows[row][col])
}

// Missing reports whether the cell at row, col is missing.
func (d *Dataset) Missing(row, col int) bool {
	return IsMissing(d.Rows[row][col])
}

// Float parses the cell at row, col as a number.
func (d *Dataset) Float(row, col int) (float64, bool) {
	v := d.Cell(row, col)
	if IsMissing(v) {
		return 0, false
	}
	return parseNumeric(v, d.opt)
}

// Time parses the cell at row, col as a date or timestamp.
func (d *Dataset) Time(row, col int) (time.Time, bool) {
	v := d.Cell(row, col)
	if IsMissing(v) {
		return time.Time{}, false
	}
	return parseTimeMaybe(v)
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// Month-first layouts come before day-first ones, matching the usual CSV export convention.
var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02 15:04:05",
	"01/02/2006", "1/2/2006", "02/01/2006", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "02-Jan-2006", "Jan 2006", "January 2006", "2006-01",
}

func parseTimeMaybe(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var currencySymbols = []string{"$", "€", "£", "¥"}

func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	neg := false
	if strings.HasPrefix(raw, "-") {
		neg = true
		raw = strings.TrimSpace(raw[1:])
	}
	for _, sym := range currencySymbols {
		raw = strings.TrimPrefix(raw, sym)
		raw = strings.TrimSuffix(raw, sym)
	}
	raw = strings.ReplaceAll(raw, "\u00a0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0:
			// "1,200" and "1,200,000" group thousands; "0,5" is a decimal comma.
			if strings.Count(raw, ",") > 1 || len(raw)-cpos-1 == 3 {
				dec, thou = '.', ','
			} else {
				dec = ','
			}
		case strings.Count(raw, ".") > 1:
			dec, thou = ',', '.'
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
		raw = strings.ReplaceAll(raw, " ", "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// Finite clamps overflowed values to the largest float of the same sign and maps NaN to 0.
func Finite(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case math.IsInf(x, 1):
		return math.MaxFloat64
	case math.IsInf(x, -1):
		return -math.MaxFloat64
	}
	return x
}
