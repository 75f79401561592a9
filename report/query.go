package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"insight-reports/cache"
	"insight-reports/logging"
	"insight-reports/mongodb"
)

// Page est une page de résultats avec son total pré-pagination.
type Page struct {
	Rows  []bson.M
	Total int64
}

// Executor exécute des lectures bornées sur la vue de support d'un
// rapport. Le cache résultats (TTL court) absorbe les relectures d'une
// même page ; il peut être nil.
type Executor struct {
	pool    *mongodb.Pool
	results *cache.Cache[*Page]
	logger  *logging.Logger
}

func NewExecutor(pool *mongodb.Pool, results *cache.Cache[*Page], logger *logging.Logger) *Executor {
	return &Executor{pool: pool, results: results, logger: logger}
}

// NormalizePage ramène page et count dans leurs bornes : pages
// 1-indexées, taille par défaut 10. Les handlers l'appliquent avant de
// construire l'enveloppe, pour que lignes et pagination restent d'accord.
func NormalizePage(page, count int) (int, int) {
	if page < 1 {
		page = 1
	}
	if count < 1 {
		count = 10
	}
	return page, count
}

// ParseProjection construit une projection en inclusion depuis la liste
// de champs séparés par des virgules. Vide => pas de restriction.
func ParseProjection(selectParam string) bson.M {
	if selectParam == "" {
		return nil
	}
	projection := bson.M{}
	for _, f := range strings.Split(selectParam, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			projection[f] = 1
		}
	}
	if len(projection) == 0 {
		return nil
	}
	return projection
}

// ParseSort interprète le paramètre de tri : "champ" ascendant,
// "-champ" descendant, vide => ordre par défaut de la base.
func ParseSort(sortParam string) bson.D {
	if sortParam == "" {
		return nil
	}
	if strings.HasPrefix(sortParam, "-") {
		return bson.D{{Key: sortParam[1:], Value: -1}}
	}
	return bson.D{{Key: sortParam, Value: 1}}
}

// Execute retourne la page demandée (1-indexée) et le total des
// documents satisfaisant le filtre. Le total vient d'une seconde
// requête indépendante, pour l'enveloppe de pagination.
func (e *Executor) Execute(ctx context.Context, def *Definition, filter bson.M, selectParam, sortParam string, page, count int) ([]bson.M, int64, error) {
	page, count = NormalizePage(page, count)

	cacheKey := e.cacheKey(def.ID, filter, selectParam, sortParam, page, count)
	if e.results != nil {
		if cached, ok := e.results.Get(cacheKey); ok {
			return cached.Rows, cached.Total, nil
		}
	}

	conn, err := e.pool.Get(ctx, def.View.Database)
	if err != nil {
		return nil, 0, err
	}
	coll := conn.DB.Collection(def.View.Name)

	opts := options.Find().
		SetSkip(int64((page - 1) * count)).
		SetLimit(int64(count))
	if projection := ParseProjection(selectParam); projection != nil {
		opts.SetProjection(projection)
	}
	if sort := ParseSort(sortParam); sort != nil {
		opts.SetSort(sort)
	}

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	rows := []bson.M{}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, 0, err
	}

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	if e.results != nil {
		e.results.Set(cacheKey, &Page{Rows: rows, Total: total})
	}
	return rows, total, nil
}

// Count expose le total seul, mêmes sémantiques de filtre.
func (e *Executor) Count(ctx context.Context, def *Definition, filter bson.M) (int64, error) {
	conn, err := e.pool.Get(ctx, def.View.Database)
	if err != nil {
		return 0, err
	}
	return conn.DB.Collection(def.View.Name).CountDocuments(ctx, filter)
}

func (e *Executor) cacheKey(reportID string, filter bson.M, selectParam, sortParam string, page, count int) string {
	f, _ := json.Marshal(filter)
	return fmt.Sprintf("query_%s_%s_%s_%s_%d_%d", reportID, f, selectParam, sortParam, page, count)
}
