// Package cache fournit un cache LRU borné avec TTL par entrée.
// La structure de récence vient de hashicorp/golang-lru (simplelru) ;
// l'expiration absolue est vérifiée à la lecture : une entrée périmée
// est traitée comme un miss et évincée.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_cache_hits_total",
		Help: "Nombre de hits par cache.",
	}, []string{"cache"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_cache_misses_total",
		Help: "Nombre de miss par cache.",
	}, []string{"cache"})
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache est borné en taille (éviction LRU) et chaque entrée porte sa
// propre échéance. Section critique par cache : simplelru n'est pas
// thread-safe, dernier écrivain gagnant pour une même clé.
type Cache[V any] struct {
	mu         sync.Mutex
	lru        *simplelru.LRU[string, entry[V]]
	defaultTTL time.Duration
	name       string
}

// New crée un cache nommé (le nom étiquette les métriques hit/miss).
// ttl <= 0 signifie pas d'expiration par défaut, seulement la pression LRU.
func New[V any](name string, maxSize int, defaultTTL time.Duration) *Cache[V] {
	l, err := simplelru.NewLRU[string, entry[V]](maxSize, nil)
	if err != nil {
		panic(err)
	}
	return &Cache[V]{lru: l, defaultTTL: defaultTTL, name: name}
}

// Get retourne la valeur et true en cas de hit. Une entrée expirée est
// évincée et comptée comme un miss. L'accès rafraîchit la récence.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(key)
	if !ok {
		cacheMissesTotal.WithLabelValues(c.name).Inc()
		return zero, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.lru.Remove(key)
		cacheMissesTotal.WithLabelValues(c.name).Inc()
		return zero, false
	}
	cacheHitsTotal.WithLabelValues(c.name).Inc()
	return e.value, true
}

// Set insère avec le TTL par défaut du cache.
func (c *Cache[V]) Set(key string, value V) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL insère avec un TTL propre à l'entrée.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.lru.Add(key, e)
	c.mu.Unlock()
}

// Invalidate retire une clé.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	c.lru.Remove(key)
	c.mu.Unlock()
}

// Clear vide le cache (appelé à l'arrêt du process).
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
}

// Len retourne le nombre d'entrées (expirées comprises).
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
