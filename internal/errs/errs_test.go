package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidation_CodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("buy: %w", Validation(CodeInsufficientFunds, "need 50", "cost", "50"))

	assert.True(t, IsValidation(err))
	assert.Equal(t, CodeInsufficientFunds, CodeOf(err))
	assert.Equal(t, "insufficient_funds: need 50", errors.Unwrap(err).Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, map[string]string{"cost": "50"}, ve.Details)
}

func TestCodeOf_NonValidation(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
	assert.False(t, IsValidation(nil))
}

func TestIntegrity(t *testing.T) {
	err := fmt.Errorf("load: %w", &IntegrityError{RecordID: "s1"})
	assert.True(t, IsIntegrity(err))
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "s1")
}

func TestTransient(t *testing.T) {
	base := errors.New("disk full")
	err := Transient("save", base)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, base)
	assert.Nil(t, Transient("save", nil))
}
