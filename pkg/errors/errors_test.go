package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := New(ErrorTypeParse, "bare quote")
	assert.Equal(t, "parse: bare quote", err.Error())

	err.AtRecord(7)
	assert.Equal(t, "parse at record 7: bare quote", err.Error())

	wrapped := Wrap(io.EOF, ErrorTypeIO, "read failed")
	assert.Equal(t, "io: read failed: EOF", wrapped.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "nothing"))
}

func TestWrapPreservesChain(t *testing.T) {
	cause := New(ErrorTypeDecoding, "invalid utf-8").AtRecord(9)
	err := Wrap(cause, ErrorTypeTransformation, "outer")

	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, uint64(9), err.RecordNumber)
	assert.Equal(t, cause.Stack, err.Stack)
	assert.Equal(t, ErrorTypeTransformation, TypeOf(err))
}

func TestTypeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("plain")))
	assert.Equal(t, uint64(0), RecordNumberOf(fmt.Errorf("plain")))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeParse))
}

func TestIsRecordLevel(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    bool
	}{
		{ErrorTypeParse, true},
		{ErrorTypeDecoding, true},
		{ErrorTypeTruncatedLine, true},
		{ErrorTypeMalformedEntry, true},
		{ErrorTypeArityMismatch, true},
		{ErrorTypeSerialize, true},
		{ErrorTypeTransformation, true},
		{ErrorTypeSourceUnavailable, false},
		{ErrorTypeIO, false},
		{ErrorTypeResourceRelease, false},
		{ErrorTypeCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRecordLevel(New(tt.errType, "x")))
		})
	}
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeConfig, "bad separator").WithDetail("separator", "").WithDetail("codec", "delimited")
	require.Len(t, err.Details, 2)
	assert.Equal(t, "delimited", err.Details["codec"])
	assert.NotEmpty(t, err.Stack)
}

func TestAttributeTo(t *testing.T) {
	structured := New(ErrorTypeParse, "bad quote")
	err := AttributeTo(structured, ErrorTypeTransformation, 7)
	assert.Equal(t, uint64(7), RecordNumberOf(err))
	assert.True(t, IsType(err, ErrorTypeParse))

	already := New(ErrorTypeParse, "bad quote").AtRecord(3)
	assert.Equal(t, uint64(3), RecordNumberOf(AttributeTo(already, ErrorTypeParse, 9)))

	plain := AttributeTo(fmt.Errorf("boom"), ErrorTypeTransformation, 5)
	assert.True(t, IsType(plain, ErrorTypeTransformation))
	assert.Equal(t, uint64(5), RecordNumberOf(plain))

	assert.NoError(t, AttributeTo(nil, ErrorTypeParse, 1))
}

func TestReattribute(t *testing.T) {
	err := Reattribute(New(ErrorTypeTransformation, "no entry").AtRecord(2), 5)
	assert.Equal(t, uint64(5), RecordNumberOf(err))
	assert.Equal(t, "transformation at record 5: no entry", err.Error())

	kept := Reattribute(New(ErrorTypeParse, "bad").AtRecord(3), 0)
	assert.Equal(t, uint64(3), RecordNumberOf(kept))

	plain := fmt.Errorf("boom")
	assert.Equal(t, plain, Reattribute(plain, 4))
	assert.Nil(t, Reattribute(nil, 4))
}
