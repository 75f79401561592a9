// Package notification : enregistrements datés simples avec expiration
// TTL côté stockage.
package notification

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"insight-reports/mongodb"
)

const (
	notificationCollection = "notifications"
	defaultExpiry          = 15 * 24 * time.Hour
)

var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User      string             `bson:"user" json:"user"`
	Title     string             `bson:"title" json:"title"`
	Message   string             `bson:"message" json:"message"`
	Type      string             `bson:"type" json:"type"`
	IsRead    bool               `bson:"isRead" json:"isRead"`
	IsClicked bool               `bson:"isClicked" json:"isClicked"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
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
	return conn.DB.Collection(notificationCollection), nil
}

// Create insère une notification par destinataire.
func (s *Store) Create(ctx context.Context, users []string, title, message, ntype string) ([]Notification, error) {
	if ntype == "" {
		ntype = "info"
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(users))
	out := make([]Notification, 0, len(users))
	for _, u := range users {
		n := Notification{
			User:      u,
			Title:     title,
			Message:   message,
			Type:      ntype,
			CreatedAt: now,
			UpdatedAt: now,
			ExpiresAt: now.Add(defaultExpiry),
		}
		docs = append(docs, n)
		out = append(out, n)
	}
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return nil, err
	}
	return out, nil
}

// List retourne une page de notifications, les plus récentes d'abord.
func (s *Store) List(ctx context.Context, page, count int) ([]Notification, error) {
	if page < 1 {
		page = 1
	}
	if count < 1 {
		count = 10
	}
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * count)).
		SetLimit(int64(count)).
		SetProjection(bson.M{"_id": 1, "title": 1, "message": 1, "isRead": 1, "isClicked": 1})
	cur, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	notifications := []Notification{}
	if err := cur.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *Store) markFlag(ctx context.Context, id, flag string) (*Notification, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	var n Notification
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{flag: true, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) MarkRead(ctx context.Context, id string) (*Notification, error) {
	return s.markFlag(ctx, id, "isRead")
}

func (s *Store) MarkClicked(ctx context.Context, id string) (*Notification, error) {
	return s.markFlag(ctx, id, "isClicked")
}

// MarkAllRead marque lues toutes les notifications non lues.
func (s *Store) MarkAllRead(ctx context.Context) (int64, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return 0, err
	}
	res, err := coll.UpdateMany(ctx,
		bson.M{"isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	res, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureIndexes pose l'index TTL d'expiration automatique.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}
