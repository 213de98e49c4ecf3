package services

import "skill_persistence/pkg"

// SlotValue is a slot's spoken and resolved value
type SlotValue struct {
	Synonym   string `json:"synonym"`
	Resolved  string `json:"resolved"`
	Validated bool   `json:"is_validated"`
}

// SlotValues resolves every slot of an intent.
// A successful entity-resolution match yields the canonical name; a no-match or
// a slot without resolutions yields the spoken value.
func SlotValues(intent *pkg.Intent) map[string]SlotValue {
	values := make(map[string]SlotValue)
	if intent == nil {
		return values
	}

	for key, slot := range intent.Slots {
		name := slot.Name
		if name == "" {
			name = key
		}
		values[name] = resolve(slot)
	}
	return values
}

// Value returns the resolved value for a slot name, empty when unfilled
func Value(values map[string]SlotValue, name string) string {
	return values[name].Resolved
}

func resolve(slot pkg.Slot) SlotValue {
	raw := SlotValue{Synonym: slot.Value, Resolved: slot.Value}
	if slot.Resolutions == nil || len(slot.Resolutions.ResolutionsPerAuthority) == 0 {
		return raw
	}

	authority := slot.Resolutions.ResolutionsPerAuthority[0]
	switch authority.Status.Code {
	case pkg.StatusSuccessMatch:
		if len(authority.Values) == 0 {
			return raw
		}
		return SlotValue{
			Synonym:   slot.Value,
			Resolved:  authority.Values[0].Value.Name,
			Validated: true,
		}
	default:
		return raw
	}
}
