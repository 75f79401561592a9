package export

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"insight-reports/report"
)

// memJobs : store de jobs en mémoire, assez de sémantique de requête
// pour les prédicats que le moteur emploie.
type memJobs struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	lastMark bson.M
}

func newMemJobs(jobs ...*Job) *memJobs {
	m := &memJobs{jobs: map[string]*Job{}}
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return m
}

func (m *memJobs) Create(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *memJobs) FindByID(_ context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobs) UpdateByID(_ context.Context, id string, patch bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	applyPatch(j, patch)
	return nil
}

func (m *memJobs) FindAndUpdateByID(ctx context.Context, id string, patch bson.M) (*Job, error) {
	if err := m.UpdateByID(ctx, id, patch); err != nil {
		return nil, err
	}
	return m.FindByID(ctx, id)
}

func (m *memJobs) Find(_ context.Context, query bson.M, _ bson.D, _, _ int64, _ bson.M) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Job
	for _, j := range m.jobs {
		if matchQuery(j, query) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *memJobs) UpdateMany(_ context.Context, query, patch bson.M) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMark = query
	var n int64
	for _, j := range m.jobs {
		if matchQuery(j, query) {
			applyPatch(j, patch)
			n++
		}
	}
	return n, nil
}

func applyPatch(j *Job, patch bson.M) {
	for key, v := range patch {
		switch key {
		case "status":
			j.Status = v.(Status)
		case "recordCount":
			j.RecordCount = v.(int64)
		case "filePath":
			j.FilePath = v.(string)
		case "error":
			j.Error = v.(string)
		case "_metadata.deleted":
			j.Metadata.Deleted = v.(bool)
		case "_metadata.viewed":
			j.Metadata.Viewed = v.(bool)
		case "_metadata.viewedAt":
			t := v.(time.Time)
			j.Metadata.ViewedAt = &t
		case "_metadata.expiresAt":
			t := v.(time.Time)
			j.Metadata.ExpiresAt = &t
		}
	}
	j.Metadata.LastUpdated = time.Now().UTC()
	j.Metadata.Version.Document++
}

func matchQuery(j *Job, query bson.M) bool {
	for key, want := range query {
		switch key {
		case "status":
			if j.Status != want.(Status) {
				return false
			}
		case "_metadata.deleted":
			if j.Metadata.Deleted != want.(bool) {
				return false
			}
		case "_metadata.expiresAt":
			cutoff := want.(bson.M)["$lte"].(time.Time)
			if j.Metadata.ExpiresAt == nil || j.Metadata.ExpiresAt.After(cutoff) {
				return false
			}
		case "_id":
			ids := want.(bson.M)["$in"].([]string)
			found := false
			for _, id := range ids {
				if id == j.ID {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

type memDefs map[string]*report.Definition

func (m memDefs) Find(_ context.Context, id string) (*report.Definition, error) {
	if def, ok := m[id]; ok {
		return def, nil
	}
	return nil, report.ErrNotFound
}

type memViews struct {
	docs     []bson.M
	countErr error
	eachErr  error
}

func (v *memViews) Count(_ context.Context, _, _ string, _ bson.M) (int64, error) {
	if v.countErr != nil {
		return 0, v.countErr
	}
	return int64(len(v.docs)), nil
}

func (v *memViews) Each(_ context.Context, _, _ string, _ bson.M, fn func(bson.M) error) error {
	if v.eachErr != nil {
		return v.eachErr
	}
	for _, d := range v.docs {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func newTestEngine(t *testing.T, jobs jobStore, defs definitionFinder, views viewReader) *Engine {
	t.Helper()
	return &Engine{
		jobs:          jobs,
		reports:       defs,
		views:         views,
		exportDir:     t.TempDir(),
		batchSize:     2,
		retentionDays: 7,
	}
}

func pendingJob(id string) *Job {
	job := &Job{
		ID:       id,
		User:     "alice",
		ReportID: "r1",
		Status:   StatusPending,
		FileName: "orders_20250601_120000.zip",
		Format:   FormatCSV,
		Filter:   map[string]any{},
		Fields: []report.Field{
			{Key: "region", Label: "Région", Type: "string"},
			{Key: "amount", Label: "Montant", Type: "number"},
		},
	}
	now := time.Now().UTC()
	job.Metadata.CreatedAt = now
	job.Metadata.LastUpdated = now
	job.Metadata.Version.Document = 1
	return job
}

func ordersDefs() memDefs {
	return memDefs{"r1": {ID: "r1", View: report.View{Database: "db", Name: "orders_view"}}}
}

func TestProcessZeroMatches(t *testing.T) {
	jobs := newMemJobs(pendingJob("j1"))
	e := newTestEngine(t, jobs, ordersDefs(), &memViews{})

	e.process(context.Background(), "j1")

	got, err := jobs.FindByID(context.Background(), "j1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %s, want %s", got.Status, StatusCompleted)
	}
	if got.RecordCount != 0 {
		t.Errorf("recordCount = %d, want 0", got.RecordCount)
	}
	if got.FilePath != "" {
		t.Errorf("filePath = %q, want empty", got.FilePath)
	}
	entries, err := os.ReadDir(e.exportDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("export dir has %d entries, want none", len(entries))
	}
}

func TestProcessWritesArtifact(t *testing.T) {
	jobs := newMemJobs(pendingJob("j1"))
	views := &memViews{docs: []bson.M{
		{"region": "east", "amount": float64(10)},
		{"region": "west", "amount": float64(20)},
		{"region": "north", "amount": float64(30)},
	}}
	// batchSize 2 : le flux traverse un flush intermédiaire + un reste
	e := newTestEngine(t, jobs, ordersDefs(), views)

	e.process(context.Background(), "j1")

	got, err := jobs.FindByID(context.Background(), "j1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s (error %q), want %s", got.Status, got.Error, StatusCompleted)
	}
	if got.RecordCount != 3 {
		t.Errorf("recordCount = %d, want 3", got.RecordCount)
	}
	wantPath := filepath.Join(e.exportDir, "j1.zip")
	if got.FilePath != wantPath {
		t.Errorf("filePath = %q, want %q", got.FilePath, wantPath)
	}

	zr, err := zip.OpenReader(wantPath)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 1 || zr.File[0].Name != "orders_20250601_120000.csv" {
		t.Fatalf("archive entries = %v", zr.File)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	records, err := csv.NewReader(rc).ReadAll()
	if err != nil {
		t.Fatalf("csv read: %v", err)
	}
	want := [][]string{
		{"Région", "Montant"},
		{"east", "10"},
		{"west", "20"},
		{"north", "30"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("csv content = %v, want %v", records, want)
	}
}

func TestProcessUnknownReportMarksFailed(t *testing.T) {
	jobs := newMemJobs(pendingJob("j1"))
	e := newTestEngine(t, jobs, memDefs{}, &memViews{})

	e.process(context.Background(), "j1")

	got, _ := jobs.FindByID(context.Background(), "j1")
	if got.Status != StatusFailed {
		t.Errorf("status = %s, want %s", got.Status, StatusFailed)
	}
	if got.Error == "" {
		t.Error("error message should be captured on the record")
	}
}

func TestProcessBackendErrorMarksFailed(t *testing.T) {
	jobs := newMemJobs(pendingJob("j1"))
	views := &memViews{countErr: errors.New("server selection timeout")}
	e := newTestEngine(t, jobs, ordersDefs(), views)

	// l'erreur reste capturée dans l'état terminal, rien ne remonte
	e.process(context.Background(), "j1")

	got, _ := jobs.FindByID(context.Background(), "j1")
	if got.Status != StatusFailed {
		t.Errorf("status = %s, want %s", got.Status, StatusFailed)
	}
	if got.Error == "" {
		t.Error("error message should be captured on the record")
	}
}

func TestProcessSkipsNonPending(t *testing.T) {
	done := pendingJob("j1")
	done.Status = StatusCompleted
	done.RecordCount = 5
	jobs := newMemJobs(done)
	e := newTestEngine(t, jobs, ordersDefs(), &memViews{docs: []bson.M{{"region": "east"}}})

	e.process(context.Background(), "j1")

	got, _ := jobs.FindByID(context.Background(), "j1")
	if got.Status != StatusCompleted || got.RecordCount != 5 {
		t.Errorf("terminal job was touched: status=%s recordCount=%d", got.Status, got.RecordCount)
	}
}

func TestRunRetentionSweep(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "j1.zip")
	if err := os.WriteFile(artifact, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour).UTC()
	future := time.Now().Add(time.Hour).UTC()

	expired := pendingJob("j1")
	expired.Status = StatusCompleted
	expired.FilePath = artifact
	expired.Metadata.ExpiresAt = &past

	alive := pendingJob("j2")
	alive.Status = StatusCompleted
	alive.Metadata.ExpiresAt = &future

	jobs := newMemJobs(expired, alive)
	e := newTestEngine(t, jobs, ordersDefs(), &memViews{})

	marked, err := e.RunRetentionSweep(context.Background())
	if err != nil {
		t.Fatalf("RunRetentionSweep: %v", err)
	}
	if marked != 1 {
		t.Errorf("marked = %d, want 1", marked)
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Error("expired artifact should have been removed")
	}
	got1, _ := jobs.FindByID(context.Background(), "j1")
	if !got1.Metadata.Deleted {
		t.Error("expired job should be soft-deleted")
	}
	got2, _ := jobs.FindByID(context.Background(), "j2")
	if got2.Metadata.Deleted {
		t.Error("job expiring in the future must be untouched")
	}

	// le marquage vise les identifiants collectés, pas une réévaluation
	// du prédicat temporel
	in, ok := jobs.lastMark["_id"]
	if !ok {
		t.Fatalf("mark query = %v, want id-bound", jobs.lastMark)
	}
	if ids := in.(bson.M)["$in"].([]string); len(ids) != 1 || ids[0] != "j1" {
		t.Errorf("mark ids = %v, want [j1]", ids)
	}
}

func TestRunRetentionSweep_NothingExpired(t *testing.T) {
	future := time.Now().Add(time.Hour).UTC()
	alive := pendingJob("j1")
	alive.Metadata.ExpiresAt = &future
	jobs := newMemJobs(alive)
	e := newTestEngine(t, jobs, ordersDefs(), &memViews{})

	marked, err := e.RunRetentionSweep(context.Background())
	if err != nil {
		t.Fatalf("RunRetentionSweep: %v", err)
	}
	if marked != 0 {
		t.Errorf("marked = %d, want 0", marked)
	}
	if jobs.lastMark != nil {
		t.Errorf("no mark query expected, got %v", jobs.lastMark)
	}
}

func TestReconcile(t *testing.T) {
	interrupted := pendingJob("j1")
	interrupted.Status = StatusProcessing
	waiting := pendingJob("j2")

	jobs := newMemJobs(interrupted, waiting)
	e := newTestEngine(t, jobs, ordersDefs(), &memViews{})

	failed, requeued, err := e.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if requeued != 1 {
		t.Errorf("requeued = %d, want 1", requeued)
	}

	got1, _ := jobs.FindByID(context.Background(), "j1")
	if got1.Status != StatusFailed || got1.Error != "interrupted by restart" {
		t.Errorf("interrupted job = %s %q, want Failed / interrupted by restart", got1.Status, got1.Error)
	}
	if id := e.q.pop(); id != "j2" {
		t.Errorf("requeued id = %q, want j2", id)
	}
}
