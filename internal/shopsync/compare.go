package shopsync

import "market/internal/models"

// Comparator reports whether two shops hold the same data
type Comparator func(a, b models.Shop) bool

// FieldsEqual compares shops field by field
func FieldsEqual(a, b models.Shop) bool {
	return a == b
}

// ValueSetEqual compares the unordered sets of field values, ignoring which
// field holds which value. Kept for peers relying on the legacy behaviour:
// swapping two equal-typed values between fields is not seen as a change.
// Flags count as 0 and 1, so a flag and an id of the same value collapse
// into one element as they do in the peer's sets.
func ValueSetEqual(a, b models.Shop) bool {
	left, right := valueSet(a), valueSet(b)
	if len(left) != len(right) {
		return false
	}
	for v := range left {
		if _, ok := right[v]; !ok {
			return false
		}
	}
	return true
}

func valueSet(s models.Shop) map[any]struct{} {
	set := make(map[any]struct{})
	for _, v := range []any{
		s.ID,
		s.Name,
		s.Slug,
		s.ClientID,
		s.APIKey,
		s.ShipperAPIKey,
		s.VendorName,
		flagValue(s.IsActive),
		flagValue(s.PriceUpdating),
		flagValue(s.IndividualUpdatingTime),
	} {
		set[v] = struct{}{}
	}
	return set
}

func flagValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
