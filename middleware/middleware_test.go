package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coredomain/authnsd/config"
)

type dummy struct{}

func (d *dummy) ServeDNS(ctx context.Context, ch *Chain) { ch.Next(ctx) }

func Test_Middleware(t *testing.T) {
	Register("dummy", func(*config.Config) Handler {
		return &dummy{}
	})

	SetConfig(&config.Config{})

	d := Get("dummy")
	assert.Nil(t, d)

	err := Setup()
	assert.NoError(t, err)

	err = Setup()
	assert.Error(t, err)

	assert.True(t, len(List()) == 1)
	assert.True(t, len(Handlers()) == 1)

	d = Get("dummy")
	assert.NotNil(t, d)

	d = Get("none")
	assert.Nil(t, d)

	chainHandlers = []Handler{}
	d = Get("dummy")
	assert.Nil(t, d)
}
