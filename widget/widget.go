// Package widget porte le sous-domaine widgets : même schéma
// d'exécution d'agrégation que les rapports, sans export.
package widget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"insight-reports/mongodb"
)

const widgetCollection = "widgets"

var (
	ErrNotFound   = errors.New("widget not found")
	ErrValidation = errors.New("invalid widget definition")
)

// ValidTypes sont les rendus acceptés.
var ValidTypes = []string{"LINECHART", "BARCHART", "PIECHART"}

type Query struct {
	Database         string           `bson:"database" json:"database"`
	SourceCollection string           `bson:"sourceCollection" json:"sourceCollection"`
	Pipeline         []map[string]any `bson:"pipeline" json:"pipeline"`
}

type Display struct {
	Name        string         `bson:"name" json:"name"`
	Description string         `bson:"description" json:"description"`
	Type        string         `bson:"type" json:"type"`
	XAxisLabel  string         `bson:"xAxisLabel" json:"xAxisLabel"`
	YAxisLabel  string         `bson:"yAxisLabel" json:"yAxisLabel"`
	Options     map[string]any `bson:"options" json:"options"`
}

type Widget struct {
	ID        string    `bson:"id" json:"id"`
	Query     Query     `bson:"query" json:"query"`
	Widget    Display   `bson:"widget" json:"widget"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

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
	return conn.DB.Collection(widgetCollection), nil
}

// CreateInput est le corps de création : la requête et l'affichage.
type CreateInput struct {
	Query  Query   `json:"query"`
	Widget Display `json:"widget"`
}

func (in *CreateInput) validate() error {
	if in.Query.Database == "" || in.Query.SourceCollection == "" || len(in.Query.Pipeline) == 0 {
		return fmt.Errorf("%w: query needs database, sourceCollection and pipeline", ErrValidation)
	}
	if in.Widget.Name == "" || in.Widget.Type == "" {
		return fmt.Errorf("%w: widget needs name and type", ErrValidation)
	}
	for _, t := range ValidTypes {
		if in.Widget.Type == t {
			return nil
		}
	}
	return fmt.Errorf("%w: type must be one of %v", ErrValidation, ValidTypes)
}

func (s *Store) Create(ctx context.Context, in *CreateInput) (*Widget, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	w := &Widget{
		ID:        uuid.NewString(),
		Query:     in.Query,
		Widget:    in.Widget,
		CreatedAt: now,
		UpdatedAt: now,
	}
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := coll.InsertOne(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Store) List(ctx context.Context) ([]Widget, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var widgets []Widget
	if err := cur.All(ctx, &widgets); err != nil {
		return nil, err
	}
	return widgets, nil
}

func (s *Store) Find(ctx context.Context, id string) (*Widget, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	var w Widget
	err = coll.FindOne(ctx, bson.M{"id": id}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ExecuteData exécute le pipeline du widget sur sa collection source.
func (s *Store) ExecuteData(ctx context.Context, w *Widget) ([]bson.M, error) {
	conn, err := s.pool.Get(ctx, w.Query.Database)
	if err != nil {
		return nil, err
	}
	pipeline := make(bson.A, 0, len(w.Query.Pipeline))
	for _, stage := range w.Query.Pipeline {
		pipeline = append(pipeline, stage)
	}
	cur, err := conn.DB.Collection(w.Query.SourceCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	data := []bson.M{}
	if err := cur.All(ctx, &data); err != nil {
		return nil, err
	}
	return data, nil
}
