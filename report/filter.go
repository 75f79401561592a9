package report

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TranslateFilter convertit un arbre de filtre (forme JSON : maps,
// listes, scalaires) en prédicat de requête. Convention de fil : toute
// feuille chaîne de la forme "/motif/" devient une expression régulière
// insensible à la casse ; toute autre feuille passe inchangée. Les
// noeuds composites sont parcourus en profondeur et reconstruits.
func TranslateFilter(node any) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			tc, err := TranslateFilter(child)
			if err != nil {
				return nil, err
			}
			out[key] = tc
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			tc, err := TranslateFilter(child)
			if err != nil {
				return nil, err
			}
			out[i] = tc
		}
		return out, nil
	case string:
		if len(v) >= 2 && strings.HasPrefix(v, "/") && strings.HasSuffix(v, "/") {
			pattern := v[1 : len(v)-1]
			// compile-check seulement : le motif est évalué côté base,
			// mais un motif invalide doit être une erreur client
			if _, err := regexp.Compile("(?i)" + pattern); err != nil {
				return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrBadFilter, pattern, err)
			}
			return primitive.Regex{Pattern: pattern, Options: "i"}, nil
		}
		return v, nil
	default:
		return v, nil
	}
}

// ParseFilter décode le texte JSON du paramètre `filter` puis le
// traduit. Chaîne vide => prédicat vide (tout passe).
func ParseFilter(raw string) (bson.M, error) {
	if raw == "" {
		return bson.M{}, nil
	}
	var tree map[string]any
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFilter, err)
	}
	translated, err := TranslateFilter(tree)
	if err != nil {
		return nil, err
	}
	return bson.M(translated.(map[string]any)), nil
}
