package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"insight-reports/cache"
	"insight-reports/logging"
	"insight-reports/mongodb"
)

const masterCollection = "report_masters"

// Store lit et écrit les définitions de rapports (collection
// report_masters de la base primaire), avec un cache métadonnées en
// façade pour absorber les lectures répétées.
type Store struct {
	pool      *mongodb.Pool
	primaryDB string
	cache     *cache.Cache[*Definition]
	logger    *logging.Logger
}

func NewStore(pool *mongodb.Pool, primaryDB string, c *cache.Cache[*Definition], logger *logging.Logger) *Store {
	return &Store{pool: pool, primaryDB: primaryDB, cache: c, logger: logger}
}

func (s *Store) masters(ctx context.Context) (*mongo.Collection, error) {
	conn, err := s.pool.Get(ctx, s.primaryDB)
	if err != nil {
		return nil, err
	}
	return conn.DB.Collection(masterCollection), nil
}

// Find résout une définition par identifiant : cache d'abord, repli sur
// la base (et insertion implicite dans le cache).
func (s *Store) Find(ctx context.Context, id string) (*Definition, error) {
	if def, ok := s.cache.Get(id); ok {
		return def, nil
	}

	coll, err := s.masters(ctx)
	if err != nil {
		return nil, err
	}
	var def Definition
	err = coll.FindOne(ctx, bson.M{"id": id}).Decode(&def)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.cache.Set(id, &def)
	return &def, nil
}

// List retourne toutes les définitions.
func (s *Store) List(ctx context.Context) ([]Definition, error) {
	coll, err := s.masters(ctx)
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var defs []Definition
	if err := cur.All(ctx, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// CreateInput est le corps de la requête de création.
type CreateInput struct {
	View struct {
		ViewName         string           `json:"viewName"`
		ViewDBName       string           `json:"viewDBName"`
		SourceCollection string           `json:"sourceCollection"`
		Pipeline         []map[string]any `json:"pipeline"`
	} `json:"view"`
	Report struct {
		Name        string           `json:"name"`
		Description string           `json:"description"`
		Fields      []Field          `json:"fields"`
		Filters     []map[string]any `json:"filters"`
		Searchable  []string         `json:"searchable"`
		IsCrossDB   bool             `json:"isCrossDB"`
	} `json:"report"`
}

func (in *CreateInput) validate() error {
	switch {
	case in.View.ViewName == "":
		return fmt.Errorf("%w: view.viewName is required", ErrValidation)
	case in.View.ViewDBName == "":
		return fmt.Errorf("%w: view.viewDBName is required", ErrValidation)
	case in.View.SourceCollection == "":
		return fmt.Errorf("%w: view.sourceCollection is required", ErrValidation)
	case len(in.View.Pipeline) == 0:
		return fmt.Errorf("%w: view.pipeline is required", ErrValidation)
	case in.Report.Name == "":
		return fmt.Errorf("%w: report.name is required", ErrValidation)
	case len(in.Report.Fields) == 0:
		return fmt.Errorf("%w: report.fields is required", ErrValidation)
	}
	return nil
}

// Create (re)crée la vue de support dans sa base cible — une vue
// existante du même nom est supprimée d'abord — puis enregistre la
// définition avec un identifiant généré.
func (s *Store) Create(ctx context.Context, in *CreateInput) (*Definition, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	viewConn, err := s.pool.Get(ctx, in.View.ViewDBName)
	if err != nil {
		return nil, err
	}

	names, err := viewConn.DB.ListCollectionNames(ctx, bson.M{"name": in.View.ViewName})
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		s.logger.Writef("[CREATE] dropping existing view %s", in.View.ViewName)
		if err := viewConn.DB.Collection(in.View.ViewName).Drop(ctx); err != nil {
			return nil, err
		}
	}

	pipeline := make(bson.A, 0, len(in.View.Pipeline))
	for _, stage := range in.View.Pipeline {
		pipeline = append(pipeline, stage)
	}
	if err := viewConn.DB.CreateView(ctx, in.View.ViewName, in.View.SourceCollection, pipeline); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	def := &Definition{
		ID: uuid.NewString(),
		View: View{
			Name:             in.View.ViewName,
			Pipeline:         in.View.Pipeline,
			SourceCollection: in.View.SourceCollection,
			Database:         in.View.ViewDBName,
		},
		Report: Schema{
			Name:        in.Report.Name,
			Description: in.Report.Description,
			Fields:      in.Report.Fields,
			Filters:     in.Report.Filters,
			Searchable:  in.Report.Searchable,
		},
		IsCrossDB: in.Report.IsCrossDB,
		CreatedAt: now,
		UpdatedAt: now,
	}

	coll, err := s.masters(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := coll.InsertOne(ctx, def); err != nil {
		return nil, err
	}

	s.cache.Set(def.ID, def)
	s.logger.Writef("[CREATE] id=%s name=%s view=%s.%s", def.ID, def.Report.Name, def.View.Database, def.View.Name)
	return def, nil
}

// EnsureIndexes pose les index de report_masters (lookup par id, nom
// unique de rapport).
func (s *Store) EnsureIndexes(ctx context.Context) error {
	coll, err := s.masters(ctx)
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "report.name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	return err
}
