// Package demo is a fake push backend for load testing: it sleeps a
// random 10-500ms and mostly accepts, with small probabilities for an
// endpoint-persistent, a token-blocked and a token-rate-limited fault.
package demo

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/ocx/pushgate/internal/push"
)

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Send(ctx context.Context, token string) error {
	wait := time.Duration(10+rand.IntN(490)) * time.Millisecond
	outcome := rand.IntN(300)

	timer := time.NewTimer(wait)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		return push.NewError(push.KindEndpointTransient)
	}

	switch outcome {
	case 0:
		return push.NewError(push.KindEndpointPersistent)
	case 1:
		return push.NewError(push.KindTokenBlocked)
	case 2:
		return push.NewError(push.KindTokenRateLimited)
	default:
		return nil
	}
}
