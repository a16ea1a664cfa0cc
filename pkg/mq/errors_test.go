package mq

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermanent(t *testing.T) {
	base := errors.New("bad payload")

	assert.Nil(t, Permanent(nil))
	assert.False(t, IsPermanent(base))

	p := Permanent(base)
	assert.True(t, IsPermanent(p))
	assert.ErrorIs(t, p, base)
	assert.True(t, IsPermanent(fmt.Errorf("handler: %w", p)))
	assert.Equal(t, "bad payload", p.Error())
}
