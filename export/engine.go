package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/bson"

	"insight-reports/logging"
	"insight-reports/mongodb"
	"insight-reports/report"
	"insight-reports/utils"
)

var exportJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "insight_export_jobs_total",
	Help: "Jobs d'export arrivés en état terminal, par statut.",
}, []string{"status"})

// jobStore est la surface du store de jobs que le moteur consomme.
type jobStore interface {
	Create(ctx context.Context, job *Job) error
	FindByID(ctx context.Context, id string) (*Job, error)
	UpdateByID(ctx context.Context, id string, patch bson.M) error
	FindAndUpdateByID(ctx context.Context, id string, patch bson.M) (*Job, error)
	Find(ctx context.Context, query bson.M, sort bson.D, skip, limit int64, projection bson.M) ([]Job, error)
	UpdateMany(ctx context.Context, query, patch bson.M) (int64, error)
}

// definitionFinder résout une définition de rapport par identifiant.
type definitionFinder interface {
	Find(ctx context.Context, id string) (*report.Definition, error)
}

// viewReader lit la vue de support d'un rapport : comptage et parcours
// document par document.
type viewReader interface {
	Count(ctx context.Context, database, view string, filter bson.M) (int64, error)
	Each(ctx context.Context, database, view string, filter bson.M, fn func(bson.M) error) error
}

// poolViewReader est l'implémentation sur le pool de connexions.
type poolViewReader struct {
	pool *mongodb.Pool
}

func (r poolViewReader) Count(ctx context.Context, database, view string, filter bson.M) (int64, error) {
	conn, err := r.pool.Get(ctx, database)
	if err != nil {
		return 0, err
	}
	return conn.DB.Collection(view).CountDocuments(ctx, filter)
}

func (r poolViewReader) Each(ctx context.Context, database, view string, filter bson.M, fn func(bson.M) error) error {
	conn, err := r.pool.Get(ctx, database)
	if err != nil {
		return err
	}
	cur, err := conn.DB.Collection(view).Find(ctx, filter)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return cur.Err()
}

// Options du moteur ; les zéros prennent les défauts ci-dessous.
type Options struct {
	ExportDir     string
	BatchSize     int
	RetentionDays int
	Workers       int
}

// Engine orchestre les exports : création du job, traitement hors du
// chemin de requête par un pool borné de travailleurs, balayages de
// rétention. Seul le moteur fait avancer le statut d'un job.
type Engine struct {
	jobs          jobStore
	reports       definitionFinder
	views         viewReader
	q             queue
	exportDir     string
	batchSize     int
	retentionDays int
	workers       int
	logger        *logging.Logger
}

func NewEngine(pool *mongodb.Pool, jobs *Store, reports *report.Store, opts Options, logger *logging.Logger) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 7
	}
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "./exports"
	}
	utils.EnsureDirExists(opts.ExportDir)
	return &Engine{
		jobs:          jobs,
		reports:       reports,
		views:         poolViewReader{pool: pool},
		exportDir:     opts.ExportDir,
		batchSize:     opts.BatchSize,
		retentionDays: opts.RetentionDays,
		workers:       opts.Workers,
		logger:        logger,
	}
}

// Initiate valide la demande, enregistre le job en Pending et l'enfile.
// Retourne immédiatement : le traitement n'est jamais attendu ici.
func (e *Engine) Initiate(ctx context.Context, reportID string, filter map[string]any, format, caller string) (*Job, error) {
	if reportID == "" {
		return nil, fmt.Errorf("%w: report id is required", report.ErrValidation)
	}
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		return nil, fmt.Errorf("%w: %s", ErrBadFormat, format)
	}

	def, err := e.reports.Find(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if filter == nil {
		filter = map[string]any{}
	}
	translated, err := report.TranslateFilter(filter)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expires := now.Add(time.Duration(e.retentionDays) * 24 * time.Hour)
	job := &Job{
		ID:       uuid.NewString(),
		User:     caller,
		ReportID: def.ID,
		Status:   StatusPending,
		FileName: deriveFileName(def.Report.Name, format, now),
		Format:   format,
		Filter:   translated.(map[string]any),
		Fields:   def.Report.Fields,
	}
	job.Metadata.CreatedAt = now
	job.Metadata.LastUpdated = now
	job.Metadata.ExpiresAt = &expires
	job.Metadata.Version.Document = 1

	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	e.q.push(job.ID)
	e.logger.Writef("[INITIATE] id=%s report=%s user=%s format=%s", job.ID, reportID, caller, format)
	return job, nil
}

// StartWorkers lance les travailleurs qui vident la file FIFO. Le
// nombre est fixe : c'est la borne de concurrence des exports.
func (e *Engine) StartWorkers() {
	for i := 0; i < e.workers; i++ {
		go e.worker()
	}
}

func (e *Engine) worker() {
	for {
		id := e.q.pop()
		if id == "" {
			time.Sleep(300 * time.Millisecond)
			continue
		}
		e.process(context.Background(), id)
	}
}

// process conduit un job de Pending à son état terminal. Toute erreur
// après création est capturée dans le statut Failed et journalisée ;
// rien ne remonte au-delà de la tâche de fond.
func (e *Engine) process(ctx context.Context, id string) {
	defer func() {
		if r := recover(); r != nil {
			e.markFailed(ctx, id, fmt.Errorf("panic: %v", r))
		}
	}()

	job, err := e.jobs.FindByID(ctx, id)
	if err != nil {
		e.logger.Writef("[FAIL] id=%s load: %v", id, err)
		return
	}
	if job.Status != StatusPending {
		e.logger.Writef("[SKIP] id=%s status=%s", id, job.Status)
		return
	}

	if err := e.jobs.UpdateByID(ctx, id, bson.M{"status": StatusProcessing}); err != nil {
		e.logger.Writef("[FAIL] id=%s set processing: %v", id, err)
		return
	}
	e.logger.Writef("[START] id=%s report=%s user=%s", id, job.ReportID, job.User)

	def, err := e.reports.Find(ctx, job.ReportID)
	if err != nil {
		e.markFailed(ctx, id, fmt.Errorf("resolve report %s: %w", job.ReportID, err))
		return
	}

	filter := bson.M(job.Filter)
	total, err := e.views.Count(ctx, def.View.Database, def.View.Name, filter)
	if err != nil {
		e.markFailed(ctx, id, fmt.Errorf("count: %w", err))
		return
	}
	if total == 0 {
		// rien à empaqueter : terminé sans artefact
		if err := e.jobs.UpdateByID(ctx, id, bson.M{"status": StatusCompleted, "recordCount": int64(0)}); err != nil {
			e.logger.Writef("[FAIL] id=%s set completed: %v", id, err)
			return
		}
		exportJobsTotal.WithLabelValues(string(StatusCompleted)).Inc()
		e.logger.Writef("[COMPLETE] id=%s records=0 (no artifact)", id)
		return
	}

	path := e.artifactPath(job)
	written, err := e.writeArtifact(ctx, def, filter, job, path)
	if err != nil {
		os.Remove(path)
		e.markFailed(ctx, id, err)
		return
	}

	if err := e.jobs.UpdateByID(ctx, id, bson.M{
		"status":      StatusCompleted,
		"recordCount": written,
		"filePath":    path,
	}); err != nil {
		e.logger.Writef("[FAIL] id=%s set completed: %v", id, err)
		return
	}
	exportJobsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	e.logger.Writef("[COMPLETE] id=%s records=%d file=%s", id, written, path)
}

// writeArtifact déroule le curseur et pousse les lignes par lots de
// batchSize vers l'artefact, pour borner la mémoire quelle que soit la
// taille du résultat.
func (e *Engine) writeArtifact(ctx context.Context, def *report.Definition, filter bson.M, job *Job, path string) (int64, error) {
	w, err := newArtifactWriter(job.Format, path, entryName(job))
	if err != nil {
		return 0, err
	}
	if err := w.WriteHeader(buildHeader(job.Fields)); err != nil {
		w.Close()
		return 0, err
	}

	var written int64
	batch := make([][]string, 0, e.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.WriteRows(batch); err != nil {
			return err
		}
		written += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	err = e.views.Each(ctx, def.View.Database, def.View.Name, filter, func(doc bson.M) error {
		batch = append(batch, buildRow(doc, job.Fields))
		if len(batch) == e.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		w.Close()
		return written, err
	}
	if err := flush(); err != nil {
		w.Close()
		return written, err
	}
	if err := w.Close(); err != nil {
		return written, err
	}
	return written, nil
}

func (e *Engine) markFailed(ctx context.Context, id string, cause error) {
	e.logger.Writef("[FAIL] id=%s %v", id, cause)
	if err := e.jobs.UpdateByID(ctx, id, bson.M{"status": StatusFailed, "error": cause.Error()}); err != nil {
		e.logger.Writef("[FAIL] id=%s mark failed: %v", id, err)
		return
	}
	exportJobsTotal.WithLabelValues(string(StatusFailed)).Inc()
}

func (e *Engine) artifactPath(job *Job) string {
	ext := ".zip"
	if job.Format == FormatXLSX {
		ext = ".xlsx"
	}
	return filepath.Join(e.exportDir, job.ID+ext)
}

// ArtifactPath expose le chemin d'artefact attendu pour un job (le
// handler de téléchargement s'appuie sur filePath du record en premier).
func (e *Engine) ArtifactPath(job *Job) string {
	if job.FilePath != "" {
		return job.FilePath
	}
	return e.artifactPath(job)
}

// entryName est le nom du CSV dans l'archive : le nom de fichier remis
// au client, avec l'extension du contenu.
func entryName(job *Job) string {
	return strings.TrimSuffix(job.FileName, ".zip") + ".csv"
}

// Reconcile rattrape l'état au démarrage : les jobs restés Processing
// (interrompus par un arrêt) sont marqués Failed, les Pending sont
// ré-enfilés. Appelé avant StartWorkers.
func (e *Engine) Reconcile(ctx context.Context) (failed, requeued int64, err error) {
	failed, err = e.jobs.UpdateMany(ctx,
		bson.M{"status": StatusProcessing},
		bson.M{"status": StatusFailed, "error": "interrupted by restart"},
	)
	if err != nil {
		return 0, 0, err
	}
	if failed > 0 {
		e.logger.Writef("[RECONCILE] failed %d interrupted job(s)", failed)
	}

	pending, err := e.jobs.Find(ctx,
		bson.M{"status": StatusPending, "_metadata.deleted": false},
		bson.D{{Key: "_metadata.createdAt", Value: 1}},
		0, 0,
		bson.M{"_id": 1},
	)
	if err != nil {
		return failed, 0, err
	}
	for _, job := range pending {
		e.q.push(job.ID)
	}
	if len(pending) > 0 {
		e.logger.Writef("[RECONCILE] requeued %d pending job(s)", len(pending))
	}
	return failed, int64(len(pending)), nil
}

// MarkViewed pose le drapeau viewed et repousse l'expiration de
// retentionDays (défaut du moteur si <= 0). C'est la seule voie par
// laquelle expiresAt avance après création.
func (e *Engine) MarkViewed(ctx context.Context, id string, retentionDays int) (*Job, error) {
	if retentionDays <= 0 {
		retentionDays = e.retentionDays
	}
	now := time.Now().UTC()
	expires := now.Add(time.Duration(retentionDays) * 24 * time.Hour)
	return e.jobs.FindAndUpdateByID(ctx, id, bson.M{
		"_metadata.viewed":    true,
		"_metadata.viewedAt":  now,
		"_metadata.expiresAt": expires,
	})
}

// Delete supprime logiquement le job et retire son artefact disque.
func (e *Engine) Delete(ctx context.Context, id string) error {
	job, err := e.jobs.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if job.FilePath != "" {
		os.Remove(job.FilePath)
	}
	return e.jobs.UpdateByID(ctx, id, bson.M{"_metadata.deleted": true})
}
