package report

import (
	"errors"
	"time"
)

// Erreurs exposées aux handlers : 404 pour ErrNotFound, 400 pour
// ErrBadFilter et ErrValidation, le reste est une faute serveur.
var (
	ErrNotFound   = errors.New("report not found")
	ErrBadFilter  = errors.New("invalid filter")
	ErrValidation = errors.New("invalid report definition")
)

// Definition lie un identifiant de rapport à sa vue de support et à son
// schéma d'affichage. Une fois créée, la vue et la liste de champs sont
// considérées immuables pour les exports qui la référencent.
type Definition struct {
	ID        string    `bson:"id" json:"id"`
	View      View      `bson:"view" json:"view"`
	Report    Schema    `bson:"report" json:"report"`
	IsCrossDB bool      `bson:"isCrossDB" json:"isCrossDB"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// View décrit la collection virtuelle : collection source + pipeline
// d'agrégation, dans la base cible.
type View struct {
	Name             string           `bson:"name" json:"name"`
	Pipeline         []map[string]any `bson:"pipeline" json:"pipeline"`
	SourceCollection string           `bson:"sourceCollection" json:"sourceCollection"`
	Database         string           `bson:"database" json:"database"`
}

// Schema est la partie affichage/interrogation du rapport.
type Schema struct {
	Name        string           `bson:"name" json:"name"`
	Description string           `bson:"description" json:"description"`
	Fields      []Field          `bson:"fields" json:"fields"`
	Filters     []map[string]any `bson:"filters" json:"filters"`
	Searchable  []string         `bson:"searchable" json:"searchable"`
}

// Field décrit une colonne : clé (chemin pointé dans le document),
// libellé affiché, type déclaré.
type Field struct {
	Key   string `bson:"key" json:"key"`
	Label string `bson:"label" json:"label"`
	Type  string `bson:"type" json:"type"`
}

// Pagination est l'enveloppe renvoyée avec chaque page de données.
type Pagination struct {
	Page        int   `json:"page"`
	Count       int   `json:"count"`
	TotalCount  int64 `json:"totalCount"`
	TotalPages  int64 `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPagination calcule l'enveloppe pour une page 1-indexée.
func NewPagination(page, count int, total int64) Pagination {
	totalPages := int64(0)
	if count > 0 {
		totalPages = (total + int64(count) - 1) / int64(count)
	}
	return Pagination{
		Page:        page,
		Count:       count,
		TotalCount:  total,
		TotalPages:  totalPages,
		HasNextPage: int64(page) < totalPages,
		HasPrevPage: page > 1 && total > 0,
	}
}
