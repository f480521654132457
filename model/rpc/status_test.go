package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusCreated:     {StatusSubmitted},
		StatusSubmitted:   {StatusProvisional, StatusResolved, StatusRejected},
		StatusProvisional: {StatusSubmitted, StatusResolved, StatusRejected},
		StatusResolved:    {},
		StatusRejected:    {},
	}

	all := []Status{StatusCreated, StatusSubmitted, StatusProvisional, StatusResolved, StatusRejected}
	for from, targets := range allowed {
		permitted := make(map[Status]bool)
		for _, to := range targets {
			permitted[to] = true
		}
		for _, to := range all {
			assert.Equalf(t, permitted[to], from.CanTransitionTo(to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusCreated.Terminal())
	assert.False(t, StatusSubmitted.Terminal())
	assert.False(t, StatusProvisional.Terminal())
	assert.True(t, StatusResolved.Terminal())
	assert.True(t, StatusRejected.Terminal())
}

func TestStatusString(t *testing.T) {
	for _, status := range []Status{StatusCreated, StatusSubmitted, StatusProvisional, StatusResolved, StatusRejected} {
		require.NotEqual(t, "unknown", status.String())
	}
}
