package xmppgw

import (
	"errors"

	"gosrc.io/xmpp/stanza"
)

// Push requests arrive as pubsub publishes: the node name is the device
// token, and an optional publish-options form field "pushModule" selects
// the module.
const (
	pushModuleField  = "pushModule"
	maxPublishFields = 5
)

var (
	errNonPublish      = errors.New("pubsub payload is not a publish")
	errNoPubSubPayload = errors.New("iq payload is not a pubsub element")
	errTooManyFields   = errors.New("publish-options form carries too many fields")
	errBadModuleField  = errors.New("pushModule field must carry exactly one value")
)

// extractTarget pulls (moduleID, token) out of a pubsub-publish IQ.
func extractTarget(iq *stanza.IQ) (string, string, error) {
	pubsub, ok := iq.Payload.(*stanza.PubSubGeneric)
	if !ok {
		return "", "", errNoPubSubPayload
	}
	return extractFromPubSub(pubsub)
}

func extractFromPubSub(pubsub *stanza.PubSubGeneric) (string, string, error) {
	if pubsub.Publish == nil {
		return "", "", errNonPublish
	}
	token := pubsub.Publish.Node

	if pubsub.PublishOptions == nil || pubsub.PublishOptions.Form == nil {
		return "default", token, nil
	}
	fields := pubsub.PublishOptions.Form.Fields
	if len(fields) > maxPublishFields {
		return "", "", errTooManyFields
	}
	for _, field := range fields {
		if field.Var != pushModuleField {
			continue
		}
		if len(field.ValuesList) != 1 {
			return "", "", errBadModuleField
		}
		return field.ValuesList[0], token, nil
	}
	return "default", token, nil
}
