package export

import (
	"archive/zip"
	"encoding/csv"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"insight-reports/report"
)

func TestRenderValue(t *testing.T) {
	oid := primitive.NewObjectID()
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{true, "true"},
		{false, "false"},
		{int32(7), "7"},
		{int64(9000000000), "9000000000"},
		{float64(12.5), "12.5"},
		{float64(3), "3"},
		{bson.M{"a": float64(1)}, `{"a":1}`},
		{[]any{"x", float64(2)}, `["x",2]`},
		{oid, oid.Hex()},
	}
	for _, tt := range tests {
		if got := renderValue(tt.in); got != tt.want {
			t.Errorf("renderValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderValue_DateTime(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	got := renderValue(primitive.NewDateTimeFromTime(ts))
	if got != "2025-03-14 09:26:53" {
		t.Errorf("renderValue(DateTime) = %q", got)
	}
}

func TestLookupPath(t *testing.T) {
	doc := bson.M{
		"region": "east",
		"totals": bson.M{"amount": float64(42), "tax": bson.M{"rate": float64(0.2)}},
	}
	if got := lookupPath(doc, "region"); got != "east" {
		t.Errorf("lookupPath(region) = %v", got)
	}
	if got := lookupPath(doc, "totals.amount"); got != float64(42) {
		t.Errorf("lookupPath(totals.amount) = %v", got)
	}
	if got := lookupPath(doc, "totals.tax.rate"); got != float64(0.2) {
		t.Errorf("lookupPath(totals.tax.rate) = %v", got)
	}
	if got := lookupPath(doc, "missing.path"); got != nil {
		t.Errorf("lookupPath(missing.path) = %v, want nil", got)
	}
	if got := lookupPath(doc, "region.sub"); got != nil {
		t.Errorf("lookupPath through scalar = %v, want nil", got)
	}
}

func TestBuildHeaderAndRow(t *testing.T) {
	fields := []report.Field{
		{Key: "region", Label: "Région", Type: "string"},
		{Key: "totals.amount", Label: "Montant", Type: "number"},
		{Key: "active", Type: "boolean"}, // sans label : la clé sert d'en-tête
	}
	if got := buildHeader(fields); !reflect.DeepEqual(got, []string{"Région", "Montant", "active"}) {
		t.Errorf("buildHeader = %v", got)
	}

	doc := bson.M{"region": "east", "totals": bson.M{"amount": float64(10.5)}, "active": true}
	if got := buildRow(doc, fields); !reflect.DeepEqual(got, []string{"east", "10.5", "true"}) {
		t.Errorf("buildRow = %v", got)
	}

	// champ absent => chaîne vide
	if got := buildRow(bson.M{}, fields); !reflect.DeepEqual(got, []string{"", "", ""}) {
		t.Errorf("buildRow(empty doc) = %v", got)
	}
}

func TestDeriveFileName(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if got := deriveFileName("Monthly Sales", FormatCSV, at); got != "Monthly_Sales_20250601_120000.zip" {
		t.Errorf("deriveFileName csv = %q", got)
	}
	if got := deriveFileName("Monthly Sales", FormatXLSX, at); got != "Monthly_Sales_20250601_120000.xlsx" {
		t.Errorf("deriveFileName xlsx = %q", got)
	}
	if got := deriveFileName("", FormatCSV, at); !strings.HasPrefix(got, "report_") {
		t.Errorf("deriveFileName empty name = %q", got)
	}
}

func TestCSVZipWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.zip")
	w, err := newCSVZipWriter(path, "data.csv")
	if err != nil {
		t.Fatalf("newCSVZipWriter: %v", err)
	}
	if err := w.WriteHeader([]string{"a", "b"}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := w.WriteRows([][]string{{"1", "x"}, {"2", "y"}}); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// l'archive doit contenir une seule entrée CSV relisible
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 1 || zr.File[0].Name != "data.csv" {
		t.Fatalf("archive entries = %v", zr.File)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("entry open: %v", err)
	}
	defer rc.Close()
	records, err := csv.NewReader(rc).ReadAll()
	if err != nil {
		t.Fatalf("csv read: %v", err)
	}
	want := [][]string{{"a", "b"}, {"1", "x"}, {"2", "y"}}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("csv content = %v, want %v", records, want)
	}
}

func TestXLSXWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	w, err := newXLSXWriter(path)
	if err != nil {
		t.Fatalf("newXLSXWriter: %v", err)
	}
	if err := w.WriteHeader([]string{"a"}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := w.WriteRows([][]string{{"1"}}); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewArtifactWriter_BadFormat(t *testing.T) {
	if _, err := newArtifactWriter("pdf", filepath.Join(t.TempDir(), "x"), "x.csv"); err == nil {
		t.Error("expected error for unknown format")
	}
}
