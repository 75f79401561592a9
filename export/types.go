package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"insight-reports/report"
)

// Statuts du cycle de vie d'un job. Les transitions sont monotones et
// pilotées par le moteur seul : Pending -> Processing -> Completed|Failed.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

// Formats d'artefact produits.
const (
	FormatCSV  = "csv" // CSV empaqueté en zip mono-entrée
	FormatXLSX = "xlsx"
)

var (
	ErrNotFound  = errors.New("export not found")
	ErrNotReady  = errors.New("export is not completed")
	ErrBadFormat = errors.New("invalid export format")
)

// Metadata est le bloc de suivi du document job.
type Metadata struct {
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	LastUpdated time.Time  `bson:"lastUpdated" json:"lastUpdated"`
	Deleted     bool       `bson:"deleted" json:"deleted"`
	Viewed      bool       `bson:"viewed" json:"viewed"`
	ViewedAt    *time.Time `bson:"viewedAt" json:"viewedAt,omitempty"`
	ExpiresAt   *time.Time `bson:"expiresAt" json:"expiresAt,omitempty"`
	Version     struct {
		Document int `bson:"document" json:"document"`
	} `bson:"version" json:"version"`
}

// Job est l'enregistrement durable d'une demande d'export. Les
// descripteurs de colonnes sont figés à l'initiation : une définition
// modifiée ensuite ne change pas les colonnes d'un export en cours.
type Job struct {
	ID          string         `bson:"_id" json:"exportId"`
	User        string         `bson:"user" json:"user"`
	ReportID    string         `bson:"reportId" json:"reportId"`
	Metadata    Metadata       `bson:"_metadata" json:"_metadata"`
	Status      Status         `bson:"status" json:"status"`
	FileName    string         `bson:"fileName" json:"fileName"`
	Format      string         `bson:"format" json:"format"`
	RecordCount int64          `bson:"recordCount" json:"recordCount"`
	Filter      map[string]any `bson:"filter" json:"filter"`
	Fields      []report.Field `bson:"fields" json:"-"`
	FilePath    string         `bson:"filePath,omitempty" json:"-"`
	Error       string         `bson:"error,omitempty" json:"error,omitempty"`
}

// deriveFileName construit le nom de fichier lisible remis au client
// lors du téléchargement.
func deriveFileName(reportName, format string, at time.Time) string {
	base := sanitizeFileName(reportName)
	if base == "" {
		base = "report"
	}
	stamp := at.Format("20060102_150405")
	if format == FormatXLSX {
		return fmt.Sprintf("%s_%s.xlsx", base, stamp)
	}
	return fmt.Sprintf("%s_%s.zip", base, stamp)
}

func sanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
