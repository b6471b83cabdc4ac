package shopsync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"market/internal/models"
)

func TestValueSetEqual(t *testing.T) {
	base := models.Shop{ID: 1, Name: "a", Slug: "b", IsActive: true}

	testCases := []struct {
		name     string
		other    models.Shop
		expected bool
	}{
		{name: "same shop", other: base, expected: true},
		{name: "swapped strings", other: models.Shop{ID: 1, Name: "b", Slug: "a", IsActive: true}, expected: true},
		{name: "changed name", other: models.Shop{ID: 1, Name: "c", Slug: "b", IsActive: true}, expected: false},
		// {1, "a", "b", "", 0} on both sides once true and 1 collapse
		{name: "flag equal to id", other: models.Shop{ID: 1, Name: "a", Slug: "b", PriceUpdating: true}, expected: true},
		{name: "id zero matches cleared flag", other: models.Shop{ID: 0, Name: "a", Slug: "b", IsActive: true}, expected: true},
		{name: "extra distinct value", other: models.Shop{ID: 2, Name: "a", Slug: "b", IsActive: true}, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ValueSetEqual(base, tc.other))
			assert.Equal(t, tc.expected, ValueSetEqual(tc.other, base))
		})
	}
}
