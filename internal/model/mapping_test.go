package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapping_IsVariantLevel(t *testing.T) {
	assert.False(t, (&Mapping{ProductRef: 3}).IsVariantLevel())
	assert.True(t, (&Mapping{ProductRef: 3, VariantRef: 30}).IsVariantLevel())
}
