package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type page struct {
	Items []row
	Total int
}

type wrapper struct {
	hidden row
}

type node struct {
	Row  row
	Next *node
}

func TestForeignOwner(t *testing.T) {
	ptr := &row{ID: 1, TenantID: "acme"}
	var nilPtr *row

	tests := []struct {
		name      string
		value     any
		wantOwner string
		wantBad   bool
	}{
		{"nil", nil, "", false},
		{"scalar", 42, "", false},
		{"string", "acme", "", false},
		{"own record", row{TenantID: "acme"}, "", false},
		{"foreign record", row{TenantID: "globex"}, "globex", true},
		{"pointer", ptr, "", false},
		{"nil pointer", nilPtr, "", false},
		{"foreign pointer", &row{TenantID: "globex"}, "globex", true},
		{"slice", []row{{TenantID: "acme"}, {TenantID: "acme"}}, "", false},
		{"slice with foreign", []row{{TenantID: "acme"}, {TenantID: "globex"}}, "globex", true},
		{"slice of pointers", []*row{ptr, nil, {TenantID: "globex"}}, "globex", true},
		{"empty slice", []row{}, "", false},
		{"array", [2]row{{TenantID: "acme"}, {TenantID: "acme"}}, "", false},
		{"empty owner", row{}, "", true},
		{"interface slice", []any{row{TenantID: "acme"}, 3, row{TenantID: "globex"}}, "globex", true},
		{"byte slice", []byte("acme"), "", false},
		{"page", page{Items: []row{{TenantID: "acme"}}, Total: 1}, "", false},
		{"page with foreign", page{Items: []row{{TenantID: "acme"}, {TenantID: "globex"}}, Total: 2}, "globex", true},
		{"page pointer with foreign", &page{Items: []row{{TenantID: "globex"}}}, "globex", true},
		{"unexported field ignored", wrapper{hidden: row{TenantID: "globex"}}, "", false},
		{"map values", map[string]row{"a": {TenantID: "acme"}}, "", false},
		{"map with foreign", map[string]row{"a": {TenantID: "acme"}, "b": {TenantID: "globex"}}, "globex", true},
		{"map of pages", map[int]*page{1: {Items: []row{{TenantID: "globex"}}}}, "globex", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, bad := foreignOwner(tt.value, "acme")
			assert.Equal(t, tt.wantBad, bad)
			assert.Equal(t, tt.wantOwner, owner)
		})
	}
}

func TestForeignOwner_Cycle(t *testing.T) {
	a := &node{Row: row{TenantID: "acme"}}
	b := &node{Row: row{TenantID: "acme"}, Next: a}
	a.Next = b

	owner, bad := foreignOwner(a, "acme")
	assert.False(t, bad)
	assert.Empty(t, owner)

	b.Row.TenantID = "globex"
	owner, bad = foreignOwner(a, "acme")
	assert.True(t, bad)
	assert.Equal(t, "globex", owner)
}
