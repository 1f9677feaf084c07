package api_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/kode4food/flowrelay/pkg/api"
)

func TestNewSessionID(t *testing.T) {
	a := api.NewSessionID()
	b := api.NewSessionID()

	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(string(a))
	assert.NoError(t, err)
}
