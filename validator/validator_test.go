package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumafin/go-dbgateway/validator"
)

type poolSettings struct {
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns int    `validate:"gte=1"`
}

func TestValidate_Valid(t *testing.T) {
	s := poolSettings{SSLMode: "require", MaxConns: 10}
	res := validator.Validate(s)
	assert.Nil(t, res)
}

func TestValidate_Invalid(t *testing.T) {
	s := poolSettings{SSLMode: "yes-please", MaxConns: 0}
	res := validator.Validate(s)
	assert.NotNil(t, res)
	assert.Equal(t, "invalid_choice", res["SSLMode"])
	assert.Equal(t, "too_small_or_equal", res["MaxConns"])
}

func TestValidate_NonStruct(t *testing.T) {
	res := validator.Validate(123)
	assert.Equal(t, map[string]string{"_error": "validation_failed"}, res)
}

func TestInstance(t *testing.T) {
	assert.NotNil(t, validator.Instance())
}
