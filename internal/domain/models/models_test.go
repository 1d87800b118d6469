package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	r, err = ParseRole("USER")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, r)

	_, err = ParseRole("admin")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestRoleSatisfies(t *testing.T) {
	tests := []struct {
		role     Role
		required Role
		want     bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleUser, true},
		{RoleUser, RoleUser, true},
		{RoleUser, RoleAdmin, false},
		{Role("ROOT"), RoleAdmin, false},
		{Role(""), RoleUser, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"->"+string(tt.required), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Satisfies(tt.required))
		})
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name                     string
		page, limit, total, want int
	}{
		{"empty", 1, 20, 0, 0},
		{"exact", 1, 10, 30, 3},
		{"remainder", 2, 10, 31, 4},
		{"single", 1, 100, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.limit, tt.total)
			assert.Equal(t, tt.want, p.TotalPages)
			assert.Equal(t, tt.total, p.Total)
		})
	}
	assert.Equal(t, 0, Offset(1, 20))
	assert.Equal(t, 40, Offset(3, 20))
	assert.Equal(t, 0, Offset(0, 20))
}

func TestSweetPriceMarshalsAsNumber(t *testing.T) {
	s := Sweet{ID: "s1", Name: "Lemon Drop", Price: decimal.RequireFromString("0.99")}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"price":0.99`)
	assert.NotContains(t, string(b), "description")
}

func TestSweetPatchApply(t *testing.T) {
	name := "Dark Truffle"
	qty := 5
	s := Sweet{Name: "Truffle", Category: "Chocolate", Quantity: 1}

	assert.True(t, SweetPatch{}.Empty())
	p := SweetPatch{Name: &name, Quantity: &qty}
	assert.False(t, p.Empty())

	p.Apply(&s)
	assert.Equal(t, "Dark Truffle", s.Name)
	assert.Equal(t, "Chocolate", s.Category)
	assert.Equal(t, 5, s.Quantity)
}

func TestPriceBounds(t *testing.T) {
	tests := []struct {
		in      string
		inRange bool
		valid   bool
	}{
		{"0.01", true, true},
		{"2.99", true, true},
		{"1.500", true, true},
		{"99999999.99", true, true},
		{"99999999.999", false, false},
		{"100000000", false, false},
		{"0", false, false},
		{"-1", false, false},
		{"1.999", true, false},
		{"1e400000000", false, false},
		{"1e-400000000", false, false},
		{"1e8", false, false},
		{"1e7", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := decimal.RequireFromString(tt.in)
			assert.Equal(t, tt.inRange, PriceInRange(d))
			assert.Equal(t, tt.valid, ValidPrice(d))
		})
	}
}
