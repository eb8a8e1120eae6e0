package extractor

import "barberline/pkg/model"

// Merge applies res to fields and returns the keys that changed. A known
// field is only replaced by a valid value from an explicit correction, and an
// invalid value never replaces a known one. A new time window always replaces
// the old preference.
func Merge(fields *model.SlotFields, res Result) []FieldKey {
	var changed []FieldKey

	for _, key := range []FieldKey{FieldService, FieldName, FieldPhone} {
		next, ok := res.Fields[key]
		if !ok || next == nil {
			continue
		}
		cur := slot(fields, key)
		if cur.Known() {
			if !res.Correction || !next.Valid || next.Value == cur.Value {
				continue
			}
		}
		v := *next
		setSlot(fields, key, &v)
		changed = append(changed, key)
	}

	if res.Window != nil {
		w := *res.Window
		fields.Window = &w
		changed = append(changed, FieldWindow)
	}
	return changed
}

func slot(fields *model.SlotFields, key FieldKey) *model.Field {
	switch key {
	case FieldService:
		return fields.Service
	case FieldName:
		return fields.Name
	case FieldPhone:
		return fields.Phone
	}
	return nil
}

func setSlot(fields *model.SlotFields, key FieldKey, f *model.Field) {
	switch key {
	case FieldService:
		fields.Service = f
	case FieldName:
		fields.Name = f
	case FieldPhone:
		fields.Phone = f
	}
}

// Missing returns the highest-priority field that is not yet known, or "".
// The window counts as known once any preference, open or not, is set.
func Missing(fields model.SlotFields) FieldKey {
	for _, key := range Priority {
		if key == FieldWindow {
			if fields.Window == nil {
				return key
			}
			continue
		}
		if !slot(&fields, key).Known() {
			return key
		}
	}
	return ""
}
