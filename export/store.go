package export

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"insight-reports/mongodb"
)

const exportCollection = "report_exports"

// Store encapsule le CRUD des enregistrements de jobs (collection
// report_exports de la base primaire).
type Store struct {
	pool      *mongodb.Pool
	primaryDB string
}

func NewStore(pool *mongodb.Pool, primaryDB string) *Store {
	return &Store{pool: pool, primaryDB: primaryDB}
}

func (s *Store) coll(ctx context.Context) (*mongo.Collection, error) {
	conn, err := s.pool.Get(ctx, s.primaryDB)
	if err != nil {
		return nil, err
	}
	return conn.DB.Collection(exportCollection), nil
}

func (s *Store) Create(ctx context.Context, job *Job) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	_, err = coll.InsertOne(ctx, job)
	return err
}

func (s *Store) FindByID(ctx context.Context, id string) (*Job, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	var job Job
	err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateByID applique un patch $set et avance lastUpdated + le compteur
// de version.
func (s *Store) UpdateByID(ctx context.Context, id string, patch bson.M) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	patch["_metadata.lastUpdated"] = time.Now().UTC()
	res, err := coll.UpdateByID(ctx, id, bson.M{
		"$set": patch,
		"$inc": bson.M{"_metadata.version.document": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindAndUpdateByID est la variante qui retourne le document après patch.
func (s *Store) FindAndUpdateByID(ctx context.Context, id string, patch bson.M) (*Job, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	patch["_metadata.lastUpdated"] = time.Now().UTC()
	var job Job
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": patch, "$inc": bson.M{"_metadata.version.document": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Find retourne les jobs satisfaisant query, triés et paginés.
func (s *Store) Find(ctx context.Context, query bson.M, sort bson.D, skip, limit int64, projection bson.M) ([]Job, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSkip(skip)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if sort != nil {
		opts.SetSort(sort)
	}
	if projection != nil {
		opts.SetProjection(projection)
	}
	cur, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var jobs []Job
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) CountDocuments(ctx context.Context, query bson.M) (int64, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, query)
}

func (s *Store) UpdateMany(ctx context.Context, query, patch bson.M) (int64, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return 0, err
	}
	patch["_metadata.lastUpdated"] = time.Now().UTC()
	res, err := coll.UpdateMany(ctx, query, bson.M{"$set": patch})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// EnsureIndexes pose l'index TTL de stockage sur _metadata.expiresAt.
// Le sweep périodique reste la voie principale d'expiration ; l'index
// est le filet de la couche stockage.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "_metadata.expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}
