package report

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name        string
		page, count int
		total       int64
		totalPages  int64
		hasNext     bool
		hasPrev     bool
	}{
		{"middle page", 2, 10, 25, 3, true, true},
		{"first page", 1, 10, 25, 3, true, false},
		{"last page", 3, 10, 25, 3, false, true},
		{"empty result", 1, 10, 0, 0, false, false},
		{"exact fit", 2, 5, 10, 2, false, true},
		{"single page", 1, 50, 7, 1, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.count, tt.total)
			if p.TotalPages != tt.totalPages {
				t.Errorf("TotalPages = %d, want %d", p.TotalPages, tt.totalPages)
			}
			if p.HasNextPage != tt.hasNext {
				t.Errorf("HasNextPage = %v, want %v", p.HasNextPage, tt.hasNext)
			}
			if p.HasPrevPage != tt.hasPrev {
				t.Errorf("HasPrevPage = %v, want %v", p.HasPrevPage, tt.hasPrev)
			}
			if p.TotalCount != tt.total {
				t.Errorf("TotalCount = %d, want %d", p.TotalCount, tt.total)
			}
		})
	}
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, count         int
		wantPage, wantCount int
	}{
		{1, 10, 1, 10},
		{0, 10, 1, 10},
		{-3, 10, 1, 10},
		{2, 0, 2, 10},
		{2, -5, 2, 10},
		{3, 25, 3, 25},
	}
	for _, tt := range tests {
		gotPage, gotCount := NormalizePage(tt.page, tt.count)
		if gotPage != tt.wantPage || gotCount != tt.wantCount {
			t.Errorf("NormalizePage(%d, %d) = (%d, %d), want (%d, %d)",
				tt.page, tt.count, gotPage, gotCount, tt.wantPage, tt.wantCount)
		}
	}

	// count=0 explicite : l'enveloppe doit décrire la taille réellement
	// servie, pas la valeur brute
	page, count := NormalizePage(1, 0)
	p := NewPagination(page, count, 25)
	if p.Count != 10 || p.TotalPages != 3 || !p.HasNextPage {
		t.Errorf("envelope after normalization = %+v, want count=10 totalPages=3 hasNext", p)
	}
}

func TestParseProjection(t *testing.T) {
	if got := ParseProjection(""); got != nil {
		t.Errorf("empty select should give nil projection, got %v", got)
	}
	got := ParseProjection("name, amount ,region,")
	want := bson.M{"name": 1, "amount": 1, "region": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseProjection = %v, want %v", got, want)
	}
	if got := ParseProjection(" , "); got != nil {
		t.Errorf("blank fields should give nil projection, got %v", got)
	}
}

func TestParseSort(t *testing.T) {
	if got := ParseSort(""); got != nil {
		t.Errorf("empty sort should be nil, got %v", got)
	}
	asc := ParseSort("amount")
	if asc[0].Key != "amount" || asc[0].Value != 1 {
		t.Errorf("ParseSort(amount) = %v", asc)
	}
	desc := ParseSort("-amount")
	if desc[0].Key != "amount" || desc[0].Value != -1 {
		t.Errorf("ParseSort(-amount) = %v", desc)
	}
}
