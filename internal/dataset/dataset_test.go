package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var accountRows = []string{
	"\ufeffCustomer Name,Exective,Revenue,Project Status (R/G/Y),Contract End Date,Active",
	"Acme,Alice,\"$1,200\",Red,2024-01-15,true",
	"Globex,Bob,950.5,Green,2024-02-10,false",
	"Initech,Alice,,Yellow,2024-03-05,true",
	"Umbrella,Carol,2100,Red,,true",
	"Hooli,Bob,NaN,Green,2024-05-20,false",
}

func writeCSV(t *testing.T, name string, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadCSVInfersKinds(t *testing.T) {
	path := writeCSV(t, "accounts.csv", accountRows)
	ds, err := LoadCSV(path, DefaultOptions())
	if err != nil {
		t.Fatalf("LoadCSV error: %v", err)
	}
	if ds.Len() != 5 {
		t.Fatalf("expected 5 rows, got %d", ds.Len())
	}
	want := map[string]Kind{
		"Customer Name":         KindText,
		"Exective":              KindText,
		"Revenue":               KindNumeric,
		"Project Status (R/G/Y)": KindText,
		"Contract End Date":     KindDate,
		"Active":                KindBoolean,
	}
	for _, c := range ds.Columns {
		if want[c.Name] != c.Kind {
			t.Fatalf("column %q: expected kind %s, got %s", c.Name, want[c.Name], c.Kind)
		}
	}
	if ds.Columns[0].Name != "Customer Name" {
		t.Fatalf("expected BOM stripped from header, got %q", ds.Columns[0].Name)
	}
}

func TestFloatParsesCurrencyAndLocale(t *testing.T) {
	cases := map[string]float64{
		"$1,200":     1200,
		"1,200,000":  1200000,
		"0,5":        0.5,
		"1.000,25":   1000.25,
		"1,000.25":   1000.25,
		"45%":        45,
		"-€3.5":      -3.5,
		"2 500":      2500,
		"1.234.567":  1234567,
	}
	for in, want := range cases {
		got, ok := parseNumeric(in, Options{})
		if !ok {
			t.Fatalf("parseNumeric(%q) failed", in)
		}
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("parseNumeric(%q) = %v, want %v", in, got, want)
		}
	}
	for _, in := range []string{"Acme", "2024-01-15", "-", "$"} {
		if _, ok := parseNumeric(in, Options{}); ok {
			t.Fatalf("parseNumeric(%q) unexpectedly succeeded", in)
		}
	}
}

func TestMissingTokens(t *testing.T) {
	for _, v := range []string{"", "  ", "NaN", "nan", "NULL", "None", "N/A", "#N/A", "<NA>"} {
		if !IsMissing(v) {
			t.Fatalf("expected %q to be missing", v)
		}
	}
	for _, v := range []string{"0", "No", "Red", "-1"} {
		if IsMissing(v) {
			t.Fatalf("expected %q to be present", v)
		}
	}
}

func TestReadCSVMaxRowsWarns(t *testing.T) {
	in := "A,B\n1,x\n2,y\n3,z\n"
	ds, err := ReadCSV(strings.NewReader(in), "small.csv", Options{MaxRows: 2})
	if err != nil {
		t.Fatalf("ReadCSV error: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", ds.Len())
	}
	if len(ds.Warnings) != 1 || !strings.Contains(ds.Warnings[0], "2/3") {
		t.Fatalf("expected MaxRows warning, got %v", ds.Warnings)
	}
}

func TestReadCSVEmptyInput(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(""), "empty.csv", DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV error: %v", err)
	}
	if ds.Len() != 0 || len(ds.Columns) != 0 {
		t.Fatalf("expected empty dataset, got %d rows %d cols", ds.Len(), len(ds.Columns))
	}
}

func TestNewPadsShortRowsAndDedupesHeaders(t *testing.T) {
	ds := New("t", []string{"Name", "Name", ""}, [][]string{{"a"}, {"b", "c", "d"}})
	names := ds.ColumnNames()
	if names[0] != "Name" || names[1] != "Name.1" || names[2] != "Unnamed: 2" {
		t.Fatalf("unexpected column names: %v", names)
	}
	if !ds.Missing(0, 2) {
		t.Fatalf("expected padded cell to be missing")
	}
}

func TestTSVDelimiterSniffed(t *testing.T) {
	path := writeCSV(t, "data.tsv", []string{"Region\tRevenue", "EMEA\t10", "APAC\t20"})
	ds, err := LoadCSV(path, DefaultOptions())
	if err != nil {
		t.Fatalf("LoadCSV error: %v", err)
	}
	if len(ds.Columns) != 2 || ds.Columns[1].Kind != KindNumeric {
		t.Fatalf("unexpected columns: %+v", ds.Columns)
	}
}

func TestFloatRejectsNonFinite(t *testing.T) {
	ds := New("amounts", []string{"Amount"}, [][]string{{"10"}, {"inf"}, {"-Infinity"}, {"1e400"}, {"5"}})
	for _, row := range []int{1, 2, 3} {
		if v, ok := ds.Float(row, 0); ok {
			t.Fatalf("row %d: expected no number, got %v", row, v)
		}
	}
	if v, ok := ds.Float(4, 0); !ok || v != 5 {
		t.Fatalf("row 4: got %v %v", v, ok)
	}
}
