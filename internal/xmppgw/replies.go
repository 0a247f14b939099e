package xmppgw

import (
	"log/slog"

	"gosrc.io/xmpp/stanza"

	"github.com/ocx/pushgate/internal/push"
)

const (
	conditionPolicyViolation = "policy-violation"
	conditionBadRequest      = "bad-request"
)

// replyFor maps a dispatch verdict onto the IQ reply the requester
// gets. Rate-limited pushes are acked like accepted ones: answering
// them with a wait error confused deployments in the past.
func replyFor(iq *stanza.IQ, verdict push.Verdict) *stanza.IQ {
	switch verdict {
	case push.Accepted, push.RateLimited:
		return resultIQ(iq)
	case push.Blocked:
		return errorIQ(iq, conditionPolicyViolation)
	default:
		return errorIQ(iq, conditionBadRequest)
	}
}

// resultIQ builds the empty result acknowledging iq.
func resultIQ(iq *stanza.IQ) *stanza.IQ {
	reply, err := stanza.NewIQ(stanza.Attrs{
		Type: stanza.IQTypeResult,
		From: iq.To,
		To:   iq.From,
		Id:   iq.Id,
	})
	if err != nil {
		// Attrs are copied from a stanza that already parsed; this
		// cannot fail with valid input.
		slog.Error("could not build result iq", "error", err)
		return iq.MakeError(stanza.Err{Type: "cancel", Reason: conditionBadRequest, Text: "An error occurred"})
	}
	return reply
}

// errorIQ turns iq into a cancel error reply with the given defined
// condition.
func errorIQ(iq *stanza.IQ, condition string) *stanza.IQ {
	return iq.MakeError(stanza.Err{
		Type:   "cancel",
		Reason: condition,
		Text:   "An error occurred",
	})
}
