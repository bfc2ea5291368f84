package codec

import (
	"bytes"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

// JSONLines reads one JSON value per line. With field names each line is an
// object whose named string members become the fields in name order; without
// names each line is an array of strings.
type JSONLines struct {
	names []string
}

// NewJSONLines creates the codec. Names must be unique.
func NewJSONLines(names ...string) (*JSONLines, error) {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return nil, errors.Newf(errors.ErrorTypeConfig, "duplicate JSON field name %q", n)
		}
		seen[n] = struct{}{}
	}
	return &JSONLines{names: append([]string(nil), names...)}, nil
}

// Name implements Codec
func (j *JSONLines) Name() string { return "json-lines" }

// Framing implements Codec
func (j *JSONLines) Framing() Framing { return Lines }

// Arity implements Arity
func (j *JSONLines) Arity() int {
	if len(j.names) == 0 {
		return AnyArity
	}
	return len(j.names)
}

// Ignore implements Ignorer: blank lines carry no value.
func (j *JSONLines) Ignore(raw string) bool {
	return len(bytes.TrimSpace([]byte(raw))) == 0
}

// Parse implements Codec. Missing members and null values read as "".
func (j *JSONLines) Parse(raw string) (record.Record, error) {
	if len(j.names) == 0 {
		var fields []string
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return record.Record{}, errors.Wrap(err, errors.ErrorTypeParse, "expected a JSON array of strings")
		}
		return record.New(fields...), nil
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &members); err != nil {
		return record.Record{}, errors.Wrap(err, errors.ErrorTypeParse, "expected a JSON object")
	}
	fields := make([]string, len(j.names))
	for i, n := range j.names {
		member, ok := members[n]
		if !ok {
			continue
		}
		var v *string
		if err := json.Unmarshal(member, &v); err != nil {
			return record.Record{}, errors.Wrap(err, errors.ErrorTypeParse, "member "+n+" is not a string")
		}
		if v != nil {
			fields[i] = *v
		}
	}
	return record.New(fields...), nil
}

// Serialize implements Codec
func (j *JSONLines) Serialize(r record.Record) (string, error) {
	if len(j.names) == 0 {
		fields := r.Fields()
		if fields == nil {
			fields = []string{}
		}
		out, err := json.Marshal(fields)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeSerialize, "cannot encode record")
		}
		return string(out), nil
	}

	if r.Arity() != len(j.names) {
		return "", errors.Newf(errors.ErrorTypeArityMismatch, "expected %d fields, record has %d", len(j.names), r.Arity())
	}
	// Members are written in name order, which a map would not keep.
	var b bytes.Buffer
	b.WriteByte('{')
	for i, n := range j.names {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(n)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeSerialize, "cannot encode field name")
		}
		value, err := json.Marshal(r.FieldOr(i, ""))
		if err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeSerialize, "cannot encode field")
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.String(), nil
}
