// Package mongodb gère les connexions à la base documentaire.
// Une entrée de pool par nom logique de base : créée au premier accès,
// réutilisée tant que le client répond au ping.
package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const pingTimeout = 2 * time.Second

// Conn est une entrée de pool : client + base ouverte dessus.
// Empruntée par les appelants, jamais mutée par eux.
type Conn struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Pool détient au plus une entrée vivante par nom de base. Le couple
// check-then-create n'est pas atomique pour un même nom : deux premiers
// accès concurrents peuvent se connecter chacun, le dernier écrit gagne
// (fuite bénigne, l'entrée courante est relue avant usage).
type Pool struct {
	uri     string
	mu      sync.Mutex
	entries map[string]*Conn
}

func NewPool(uri string) *Pool {
	return &Pool{uri: uri, entries: make(map[string]*Conn)}
}

// Get retourne l'entrée du pool pour dbName, en la (re)créant si elle
// est absente ou si son client ne répond plus. Pas de retry : l'erreur
// de connexion remonte telle quelle à l'appelant.
func (p *Pool) Get(ctx context.Context, dbName string) (*Conn, error) {
	if dbName == "" {
		return nil, fmt.Errorf("empty database name")
	}

	p.mu.Lock()
	conn, ok := p.entries[dbName]
	p.mu.Unlock()
	if ok && p.alive(ctx, conn) {
		return conn, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(p.uri))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dbName, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping %s: %w", dbName, err)
	}
	conn = &Conn{Client: client, DB: client.Database(dbName)}

	p.mu.Lock()
	p.entries[dbName] = conn
	p.mu.Unlock()

	return conn, nil
}

func (p *Pool) alive(ctx context.Context, conn *Conn) bool {
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return conn.Client.Ping(pctx, readpref.Primary()) == nil
}

// CloseAll ferme toutes les entrées et vide le pool. Arrêt du process
// uniquement.
func (p *Pool) CloseAll(ctx context.Context) {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*Conn)
	p.mu.Unlock()

	for _, conn := range entries {
		conn.Client.Disconnect(ctx)
	}
}
