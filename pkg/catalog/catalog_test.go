package catalog

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseSortBy(t *testing.T) {
	tests := []struct {
		raw     string
		want    SortBy
		wantErr bool
	}{
		{raw: "", want: SortDefault},
		{raw: "price_asc", want: SortPriceAsc},
		{raw: " NEWEST ", want: SortNewest},
		{raw: "cheapest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSortBy(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSortBy(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("error %v does not wrap ErrInvalidQuery", err)
			}
			if got != tt.want {
				t.Errorf("ParseSortBy(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{name: "first page", query: Query{ScopeID: "C1", Page: 1}},
		{name: "zero page", query: Query{ScopeID: "C1"}, wantErr: true},
		{name: "negative page", query: Query{Page: -2}, wantErr: true},
		{name: "unknown sort", query: Query{Page: 1, SortBy: "random"}, wantErr: true},
		{name: "search only", query: Query{Search: "vitamin", SortBy: SortRelevance, Page: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQuery_SameSession(t *testing.T) {
	base := Query{ScopeID: "C1", Search: "tea", SortBy: SortNewest, Page: 1}

	if !base.SameSession(base.WithPage(4)) {
		t.Error("queries differing only in page should share a session")
	}
	if base.SameSession(Query{ScopeID: "C2", Search: "tea", SortBy: SortNewest, Page: 1}) {
		t.Error("different scope should not share a session")
	}
	if base.SameSession(Query{ScopeID: "C1", Search: "te", SortBy: SortNewest, Page: 1}) {
		t.Error("different search should not share a session")
	}
	if base.SameSession(Query{ScopeID: "C1", Search: "tea", SortBy: SortPriceAsc, Page: 1}) {
		t.Error("different sort should not share a session")
	}
}

func TestItem_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID string
	}{
		{name: "string id", input: `{"id":"sku-1","name":"Aspirin"}`, wantID: "sku-1"},
		{name: "numeric id", input: `{"id":42,"name":"Vitamin C"}`, wantID: "42"},
		{name: "no id", input: `{"name":"Gift card"}`, wantID: ""},
		{name: "null id", input: `{"id":null}`, wantID: ""},
		{name: "scalar item", input: `"plain"`, wantID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var item Item
			if err := json.Unmarshal([]byte(tt.input), &item); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if item.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", item.ID, tt.wantID)
			}

			out, err := json.Marshal(item)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(out) != tt.input {
				t.Errorf("Marshal() = %s, want raw payload %s", out, tt.input)
			}
		})
	}
}

func TestItem_Key(t *testing.T) {
	withID := Item{ID: "7", Raw: json.RawMessage(`{"id":7}`)}
	sameRawNoID := Item{Raw: json.RawMessage(`{"name":"x"}`)}

	if withID.Key() != "id:7" {
		t.Errorf("Key() = %q, want id:7", withID.Key())
	}
	if sameRawNoID.Key() != `raw:{"name":"x"}` {
		t.Errorf("Key() = %q, want raw payload key", sameRawNoID.Key())
	}
	// A string id "7" and a raw payload "7" must not collide.
	if withID.Key() == (Item{Raw: json.RawMessage(`7`)}).Key() {
		t.Error("id key collided with raw key")
	}
}

func TestPageResult_Normalize(t *testing.T) {
	tests := []struct {
		name       string
		in         PageResult
		itemsSoFar int
		want       PageResult
	}{
		{
			name:       "total pages drives has next",
			in:         PageResult{Page: 2, TotalPages: 3, Total: 45, HasNext: false},
			itemsSoFar: 40,
			want:       PageResult{Page: 2, TotalPages: 3, Total: 45, HasNext: true},
		},
		{
			name:       "last page",
			in:         PageResult{Page: 3, TotalPages: 3, Total: 45, HasNext: true},
			itemsSoFar: 45,
			want:       PageResult{Page: 3, TotalPages: 3, Total: 45, HasNext: false},
		},
		{
			name:       "total pages derived from has next",
			in:         PageResult{Page: 1, Total: 45, HasNext: true},
			itemsSoFar: 20,
			want:       PageResult{Page: 1, TotalPages: 2, Total: 45, HasNext: true},
		},
		{
			name:       "total raised to item count",
			in:         PageResult{Page: 1, TotalPages: 1, Total: 3},
			itemsSoFar: 5,
			want:       PageResult{Page: 1, TotalPages: 1, Total: 5},
		},
		{
			name:       "missing page defaults to first",
			in:         PageResult{},
			itemsSoFar: 0,
			want:       PageResult{Page: 1, TotalPages: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			got.Normalize(tt.itemsSoFar)
			if got.Page != tt.want.Page || got.TotalPages != tt.want.TotalPages ||
				got.Total != tt.want.Total || got.HasNext != tt.want.HasNext {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
