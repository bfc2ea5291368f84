package transform

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

func apply(t *testing.T, m Mapper, r record.Record) record.Record {
	t.Helper()
	out, err := m.Map(context.Background(), r)
	require.NoError(t, err)
	return out
}

func keep(t *testing.T, f Filter, r record.Record) bool {
	t.Helper()
	ok, err := f.Keep(context.Background(), r)
	require.NoError(t, err)
	return ok
}

func TestMappers(t *testing.T) {
	r := record.NewWith("", 7, []string{"a", "b", "c"})

	tests := []struct {
		name     string
		mapper   Mapper
		expected []string
	}{
		{"identity", Identity(), []string{"a", "b", "c"}},
		{"add", AddField("d"), []string{"a", "b", "c", "d"}},
		{"insert", InsertField(1, "x"), []string{"a", "x", "b", "c"}},
		{"remove", RemoveField(0), []string{"b", "c"}},
		{"replace", ReplaceField(2, "z"), []string{"a", "b", "z"}},
		{"map field", MapField(1, func(s string) string { return s + s }), []string{"a", "bb", "c"}},
		{"map fields", MapFields(func(s string) string { return "<" + s + ">" }), []string{"<a>", "<b>", "<c>"}},
		{"lookup", Lookup(0, map[string]string{"a": "alpha"}, false), []string{"alpha", "b", "c"}},
		{"lookup miss", Lookup(1, map[string]string{"a": "alpha"}, false), []string{"a", "b", "c"}},
		{"reorder", Reorder(2, 0, 0), []string{"c", "a", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := apply(t, tt.mapper, r)
			assert.Equal(t, tt.expected, out.Fields())
			assert.Equal(t, uint64(7), out.Number())
		})
	}
}

func TestMapperFailures(t *testing.T) {
	r := record.NewWith("", 3, []string{"a"})

	for _, m := range []Mapper{
		RemoveField(4),
		ReplaceField(-1, "x"),
		MapField(2, fmt.Sprint),
		CategoryFromField(1),
		Reorder(0, 1),
		Lookup(0, map[string]string{}, true),
	} {
		_, err := m.Map(context.Background(), r)
		require.Error(t, err)
		assert.Equal(t, uint64(3), errors.RecordNumberOf(err))
	}
}

func TestCategoryMappers(t *testing.T) {
	r := record.New("db", "host")

	cat, ok := apply(t, SetCategory("x"), r).Category()
	assert.True(t, ok)
	assert.Equal(t, "x", cat)

	cat, _ = apply(t, CategoryFromField(0), r).Category()
	assert.Equal(t, "db", cat)

	assert.False(t, apply(t, SetCategory(""), r.WithCategory("x")).HasCategory())
}

func TestRenumber(t *testing.T) {
	m := NewRenumber(0)
	assert.Equal(t, uint64(1), apply(t, m, record.NewWith("", 10, nil)).Number())
	assert.Equal(t, uint64(2), apply(t, m, record.NewWith("", 20, nil)).Number())

	assert.Equal(t, uint64(100), apply(t, NewRenumber(100), record.New()).Number())
}

func TestStringFunc(t *testing.T) {
	tests := map[string]string{
		"upper":      "HELLO WORLD ",
		"lower":      "hello world ",
		"trim":       "Hello World",
		"trim-left":  "Hello World ",
		"trim-right": "  Hello World",
		"title":      "Hello World ",
		"reverse":    " dlroW olleH  ",
	}
	for name, expected := range tests {
		fn, ok := StringFunc(name)
		require.True(t, ok, name)
		if name == "upper" || name == "lower" || name == "title" {
			assert.Equal(t, expected, fn("Hello World "), name)
			continue
		}
		assert.Equal(t, expected, fn("  Hello World "), name)
	}

	_, ok := StringFunc("shout")
	assert.False(t, ok)
}

func TestFilters(t *testing.T) {
	db := record.NewWith("db", 5, []string{"host", "x1"})
	plain := record.NewWith("", 12, []string{"port"})

	assert.True(t, keep(t, CategoryIs("db", "cache"), db))
	assert.False(t, keep(t, CategoryIs("db"), plain))
	assert.True(t, keep(t, HasCategory(), db))
	assert.False(t, keep(t, HasCategory(), plain))

	assert.True(t, keep(t, NumberBetween(1, 5), db))
	assert.False(t, keep(t, NumberBetween(1, 5), plain))
	assert.True(t, keep(t, NumberBetween(10, 0), plain))

	assert.True(t, keep(t, ArityIs(2), db))
	assert.False(t, keep(t, ArityIs(2), plain))

	re := regexp.MustCompile(`^x\d$`)
	assert.True(t, keep(t, FieldMatches(1, re), db))
	assert.False(t, keep(t, FieldMatches(1, re), plain))
	assert.True(t, keep(t, FieldEquals(0, "port"), plain))

	assert.False(t, keep(t, Not(HasCategory()), db))
	assert.True(t, keep(t, And(HasCategory(), ArityIs(2)), db))
	assert.False(t, keep(t, And(HasCategory(), ArityIs(1)), db))
	assert.True(t, keep(t, Or(ArityIs(1), HasCategory()), db))
	assert.False(t, keep(t, Or(ArityIs(3), ArityIs(4)), db))
}

func TestFilterErrors(t *testing.T) {
	boom := FilterFunc(func(context.Context, record.Record) (bool, error) {
		return true, fmt.Errorf("boom")
	})
	r := record.New("a")

	for _, f := range []Filter{Not(boom), And(boom), Or(boom)} {
		ok, err := f.Keep(context.Background(), r)
		assert.Error(t, err)
		assert.False(t, ok)
	}
}

func TestDistinct(t *testing.T) {
	d := NewDistinct()

	assert.True(t, keep(t, d, record.NewWith("", 1, []string{"a", "b"})))
	assert.False(t, keep(t, d, record.NewWith("", 2, []string{"a", "b"})))
	assert.True(t, keep(t, d, record.NewWith("x", 3, []string{"a", "b"})))
	assert.True(t, keep(t, d, record.NewWith("", 4, []string{"ab"})))
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	chain := NewChain(
		Map("upper", MapField(0, func(s string) string { return s + "!" })),
		Where("arity", ArityIs(2)),
		Map("category", CategoryFromField(1)),
	)
	assert.Equal(t, 3, chain.Len())

	out, kept, err := chain.Apply(ctx, record.NewWith("", 9, []string{"a", "db"}))
	require.NoError(t, err)
	assert.True(t, kept)
	assert.Equal(t, []string{"a!", "db"}, out.Fields())
	cat, _ := out.Category()
	assert.Equal(t, "db", cat)
	assert.Equal(t, uint64(9), out.Number())

	_, kept, err = chain.Apply(ctx, record.New("only"))
	require.NoError(t, err)
	assert.False(t, kept)

	var empty *Chain
	out, kept, err = empty.Apply(ctx, record.New("x"))
	require.NoError(t, err)
	assert.True(t, kept)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, []string{"x"}, out.Fields())
}

func TestChainErrorIsTransformation(t *testing.T) {
	chain := NewChain(Map("drop", RemoveField(5)))

	_, kept, err := chain.Apply(context.Background(), record.NewWith("", 42, []string{"a"}))
	require.Error(t, err)
	assert.False(t, kept)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransformation))
	assert.True(t, errors.IsRecordLevel(err))
	assert.Equal(t, uint64(42), errors.RecordNumberOf(err))

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "drop", e.Details["stage"])
}

func TestCompose(t *testing.T) {
	m := Compose(AddField("x"), ReplaceField(0, "first"))
	out := apply(t, m, record.New("a"))
	assert.Equal(t, []string{"first", "x"}, out.Fields())

	_, err := Compose(RemoveField(3), AddField("y")).Map(context.Background(), record.New())
	assert.Error(t, err)
}
