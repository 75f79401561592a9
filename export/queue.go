package export

import "sync"

// File d'attente FIFO des jobs à traiter. Les travailleurs la vident ;
// elle est en mémoire seulement, l'état durable vit dans report_exports
// (au redémarrage, Reconcile ré-enfile les Pending).
type queue struct {
	mu  sync.Mutex
	ids []string
}

func (q *queue) push(id string) {
	q.mu.Lock()
	q.ids = append(q.ids, id)
	q.mu.Unlock()
}

// pop retire le plus ancien identifiant, ou "" si la file est vide.
func (q *queue) pop() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return ""
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}
