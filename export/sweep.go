package export

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	retentionSweepInterval = time.Hour
	fileSweepInterval      = 24 * time.Hour
)

// StartSweeps lance les deux balayages périodiques : rétention des
// jobs (horaire) et âge des fichiers sur disque (quotidien, filet
// contre les artefacts orphelins).
func (e *Engine) StartSweeps(maxFileAge time.Duration) {
	go func() {
		for {
			time.Sleep(retentionSweepInterval)
			if _, err := e.RunRetentionSweep(context.Background()); err != nil {
				e.logger.Writef("[SWEEP] retention: %v", err)
			}
		}
	}()
	go func() {
		for {
			time.Sleep(fileSweepInterval)
			if _, err := e.RunFileSweep(maxFileAge); err != nil {
				e.logger.Writef("[SWEEP] files: %v", err)
			}
		}
	}()
}

// RunRetentionSweep marque supprimés les jobs dont expiresAt est passé,
// après avoir retiré leur artefact disque s'il existe encore.
func (e *Engine) RunRetentionSweep(ctx context.Context) (int64, error) {
	query := bson.M{
		"_metadata.expiresAt": bson.M{"$lte": time.Now().UTC()},
		"_metadata.deleted":   false,
	}

	expired, err := e.jobs.Find(ctx, query, nil, 0, 0, bson.M{"_id": 1, "filePath": 1})
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(expired))
	for _, job := range expired {
		if job.FilePath != "" {
			if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
				e.logger.Writef("[SWEEP] remove %s: %v", job.FilePath, err)
			}
		}
		ids = append(ids, job.ID)
	}

	// marque exactement les enregistrements dont l'artefact vient d'être
	// retiré ; un job expirant entre les deux requêtes attend le passage
	// suivant
	marked, err := e.jobs.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"_metadata.deleted": true},
	)
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		e.logger.Writef("[SWEEP] retention: %d job(s) expired", marked)
	}
	return marked, nil
}

// RunFileSweep supprime les artefacts disque plus vieux que maxAge,
// indépendamment de l'état des enregistrements.
func (e *Engine) RunFileSweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(e.exportDir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(e.exportDir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		e.logger.Writef("[SWEEP] files: removed %d old artifact(s)", removed)
	}
	return removed, nil
}
