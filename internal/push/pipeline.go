package push

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Dispatch runs the request pipeline for (moduleID, token):
// resolve the module, consult its blocklist, pace through its rate
// limiter, send through its adapter, and fold the adapter outcome back
// into blocklist/limiter state before returning the verdict. Blocked
// tokens never reach the vendor, and the pacing sleep happens after the
// block check so blocked callers fail fast.
func (r *Registry) Dispatch(ctx context.Context, moduleID, token string) Verdict {
	verdict := r.dispatch(ctx, moduleID, token)
	if r.metrics != nil {
		r.metrics.PushRequests.WithLabelValues(moduleID, verdict.String()).Inc()
	}
	return verdict
}

func (r *Registry) dispatch(ctx context.Context, moduleID, token string) Verdict {
	mod, ok := r.modules[moduleID]
	if !ok {
		slog.Debug("unknown push module requested", "module", moduleID)
		return UnknownModule
	}

	if mod.blocklist.IsBlocked(token) {
		slog.Debug("ignoring push request for blocked token", "module", mod.id, "token", token)
		return Blocked
	}

	admit, wait := mod.limiter.Check(token)
	if !admit {
		slog.Debug("ignoring push request due to ratelimit", "module", mod.id, "token", token)
		return RateLimited
	}
	if wait > 0 {
		slog.Debug("ratelimit queued push", "module", mod.id, "token", token, "wait", wait)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			// The caller is gone; the taken reservation is abandoned
			// and will expire and be swept.
			timer.Stop()
			return Internal
		}
	}

	start := time.Now()
	err := mod.adapter.Send(ctx, token)
	if r.metrics != nil {
		r.metrics.SendLatency.WithLabelValues(mod.id).Observe(time.Since(start).Seconds())
	}
	if err == nil {
		slog.Debug("sent push message", "module", mod.id, "token", token)
		return Accepted
	}

	var pushErr *Error
	if !errors.As(err, &pushErr) {
		// Adapters only return *push.Error; treat anything else as an
		// unclassified push failure.
		pushErr = UnknownError(0)
	}

	switch pushErr.Kind {
	case KindTokenBlocked:
		slog.Debug("vendor reports blocked token", "module", mod.id, "token", token)
		mod.blocklist.BlockInvalid(token)
		return Blocked
	case KindTokenRateLimited:
		mod.limiter.Penalize(token)
		return RateLimited
	case KindEndpointTransient, KindEndpointPersistent:
		// Endpoint faults are about the endpoint, not the device; the
		// token is not blocked on these.
		slog.Warn("push endpoint error", "module", mod.id, "error", err)
		return Internal
	default:
		slog.Debug("blocking token after unhandled push error", "module", mod.id, "token", token, "error", err)
		mod.blocklist.BlockOnPushError(token)
		return Internal
	}
}
