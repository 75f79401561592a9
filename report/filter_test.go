package report

import (
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTranslateFilter_PassThrough(t *testing.T) {
	// sans feuille /.../ l'arbre ressort identique
	trees := []any{
		map[string]any{"region": "east", "amount": float64(10)},
		map[string]any{"a": map[string]any{"b": []any{"x", true, nil, float64(1.5)}}},
		map[string]any{},
		map[string]any{"note": "half/open", "other": "/notclosed"},
	}
	for _, tree := range trees {
		got, err := TranslateFilter(tree)
		if err != nil {
			t.Fatalf("TranslateFilter(%v) error: %v", tree, err)
		}
		if !reflect.DeepEqual(got, tree) {
			t.Errorf("TranslateFilter(%v) = %v, want unchanged", tree, got)
		}
	}
}

func TestTranslateFilter_RegexLeaves(t *testing.T) {
	tree := map[string]any{
		"region": "/^east/",
		"nested": map[string]any{"name": "/smith/"},
		"list":   []any{"/a|b/", "plain"},
		"exact":  "east",
	}
	got, err := TranslateFilter(tree)
	if err != nil {
		t.Fatalf("TranslateFilter error: %v", err)
	}
	m := got.(map[string]any)
	if r, ok := m["region"].(primitive.Regex); !ok || r.Pattern != "^east" || r.Options != "i" {
		t.Errorf("region = %#v, want case-insensitive regex ^east", m["region"])
	}
	nested := m["nested"].(map[string]any)
	if r, ok := nested["name"].(primitive.Regex); !ok || r.Pattern != "smith" {
		t.Errorf("nested.name = %#v", nested["name"])
	}
	list := m["list"].([]any)
	if r, ok := list[0].(primitive.Regex); !ok || r.Pattern != "a|b" {
		t.Errorf("list[0] = %#v", list[0])
	}
	if list[1] != "plain" {
		t.Errorf("list[1] = %#v, want plain", list[1])
	}
	if m["exact"] != "east" {
		t.Errorf("exact = %#v, want east", m["exact"])
	}
}

func TestTranslateFilter_Idempotent(t *testing.T) {
	// un arbre déjà traduit ressort inchangé : une primitive.Regex n'est
	// pas une feuille chaîne
	once, err := TranslateFilter(map[string]any{"region": "/^east/"})
	if err != nil {
		t.Fatalf("first translate: %v", err)
	}
	twice, err := TranslateFilter(once)
	if err != nil {
		t.Fatalf("second translate: %v", err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second translate changed the tree: %v != %v", twice, once)
	}
}

func TestTranslateFilter_BadPattern(t *testing.T) {
	_, err := TranslateFilter(map[string]any{"x": "/(/"})
	if err == nil {
		t.Fatal("expected error for malformed pattern")
	}
	if !errors.Is(err, ErrBadFilter) {
		t.Errorf("error should wrap ErrBadFilter, got %v", err)
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(`{"region":"/^east/","active":true}`)
	if err != nil {
		t.Fatalf("ParseFilter error: %v", err)
	}
	if _, ok := f["region"].(primitive.Regex); !ok {
		t.Errorf("region = %#v, want regex", f["region"])
	}
	if f["active"] != true {
		t.Errorf("active = %#v, want true", f["active"])
	}

	if f, err := ParseFilter(""); err != nil || len(f) != 0 {
		t.Errorf("empty filter: %v, %v; want empty predicate", f, err)
	}

	if _, err := ParseFilter("{not json"); !errors.Is(err, ErrBadFilter) {
		t.Errorf("malformed json should be ErrBadFilter, got %v", err)
	}
}
