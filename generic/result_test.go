package generic

import (
	"errors"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert := assert_.New(t)

	ok := NewResult(12, nil)
	assert.True(ok.IsOk())
	assert.Equal(12, ok.Unwrap())
	v, err := ok.Parts()
	assert.Equal(12, v)
	assert.Nil(err)

	boom := errors.New("boom")
	bad := Err[int](boom)
	assert.True(bad.IsErr())
	_, err = bad.Parts()
	assert.ErrorIs(err, boom)
	assert.PanicsWithError("tried to Unwrap() an Err: boom", func() { bad.Unwrap() })
	assert.Panics(func() { Unwrap_(boom) })
	assert.NotPanics(func() { Unwrap_(nil) })
}
