package export

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"insight-reports/report"
)

// buildHeader retourne la ligne d'en-tête : le libellé du champ, ou sa
// clé à défaut.
func buildHeader(fields []report.Field) []string {
	header := make([]string, len(fields))
	for i, f := range fields {
		if f.Label != "" {
			header[i] = f.Label
		} else {
			header[i] = f.Key
		}
	}
	return header
}

// buildRow projette un document sur les champs déclarés du rapport,
// navigation par chemin pointé dans les sous-documents.
func buildRow(doc bson.M, fields []report.Field) []string {
	row := make([]string, len(fields))
	for i, f := range fields {
		row[i] = renderValue(lookupPath(doc, f.Key))
	}
	return row
}

// lookupPath navigue "a.b.c" dans les sous-documents. Chemin absent ou
// segment non-document => nil.
func lookupPath(doc bson.M, path string) any {
	var current any = doc
	for _, seg := range strings.Split(path, ".") {
		switch m := current.(type) {
		case bson.M:
			current = m[seg]
		case map[string]any:
			current = m[seg]
		case primitive.D:
			current = m.Map()[seg]
		default:
			return nil
		}
	}
	return current
}

// renderValue rend la forme textuelle canonique d'une valeur de champ :
// null => chaîne vide, sous-document => JSON compact, numérique/booléen
// => forme canonique, le reste => conversion brute.
func renderValue(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case primitive.DateTime:
		return v.Time().UTC().Format("2006-01-02 15:04:05")
	case primitive.ObjectID:
		return v.Hex()
	case primitive.Decimal128:
		return v.String()
	case bson.M, map[string]any, bson.A, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// artifactWriter reçoit l'en-tête puis les lignes par lots, et scelle
// l'artefact à Close.
type artifactWriter interface {
	WriteHeader(header []string) error
	WriteRows(rows [][]string) error
	Close() error
}

// csvZipWriter écrit un CSV en flux dans l'unique entrée d'une archive
// zip sur disque.
type csvZipWriter struct {
	file *os.File
	zw   *zip.Writer
	cw   *csv.Writer
}

func newCSVZipWriter(path, entryName string) (*csvZipWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	zw := zip.NewWriter(f)
	entry, err := zw.Create(entryName)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &csvZipWriter{file: f, zw: zw, cw: csv.NewWriter(entry)}, nil
}

func (w *csvZipWriter) WriteHeader(header []string) error {
	return w.cw.Write(header)
}

func (w *csvZipWriter) WriteRows(rows [][]string) error {
	if err := w.cw.WriteAll(rows); err != nil {
		return err
	}
	w.cw.Flush()
	return w.cw.Error()
}

func (w *csvZipWriter) Close() error {
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.zw.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// xlsxWriter produit un classeur à une feuille via tealeg/xlsx.
type xlsxWriter struct {
	path  string
	file  *xlsx.File
	sheet *xlsx.Sheet
}

func newXLSXWriter(path string) (*xlsxWriter, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Export")
	if err != nil {
		return nil, err
	}
	return &xlsxWriter{path: path, file: f, sheet: sheet}, nil
}

func (w *xlsxWriter) WriteHeader(header []string) error {
	row := w.sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}
	return nil
}

func (w *xlsxWriter) WriteRows(rows [][]string) error {
	for _, r := range rows {
		row := w.sheet.AddRow()
		for _, val := range r {
			row.AddCell().SetString(val)
		}
	}
	return nil
}

func (w *xlsxWriter) Close() error {
	return w.file.Save(w.path)
}

func newArtifactWriter(format, path, entryName string) (artifactWriter, error) {
	switch format {
	case FormatXLSX:
		return newXLSXWriter(path)
	case FormatCSV:
		return newCSVZipWriter(path, entryName)
	default:
		return nil, fmt.Errorf("%w: %s", ErrBadFormat, format)
	}
}
