package record

// Key/value records are arity-2 records whose first field is the key and
// whose second field is the value.

const (
	// KeyIndex is the field index of the key in a key/value record
	KeyIndex = 0
	// ValueIndex is the field index of the value in a key/value record
	ValueIndex = 1
)

// NewKeyValue creates a key/value record
func NewKeyValue(key, value string) Record {
	return Record{fields: []string{key, value}}
}

// IsKeyValue reports whether the record has exactly two fields
func (r Record) IsKeyValue() bool {
	return len(r.fields) == 2
}

// Key returns the first field, or "" for an empty record
func (r Record) Key() string {
	return r.FieldOr(KeyIndex, "")
}

// Value returns the second field, or "" if the record has fewer than two fields
func (r Record) Value() string {
	return r.FieldOr(ValueIndex, "")
}
