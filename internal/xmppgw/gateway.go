// Package xmppgw is the XMPP front-end: it speaks the component
// protocol to the XMPP server, extracts (module, token) pairs from
// inbound pubsub-publish IQs, hands them to the dispatch core, and
// translates verdicts back into IQ replies.
package xmppgw

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"

	"github.com/ocx/pushgate/internal/config"
	"github.com/ocx/pushgate/internal/push"
)

const pingNamespace = "urn:ietf:params:xml:ns:xmpp-ping"

// Dispatcher is the capability the gateway consumes from the push core.
type Dispatcher interface {
	Dispatch(ctx context.Context, moduleID, token string) push.Verdict
}

// Gateway owns the component connection and its reconnect loop.
type Gateway struct {
	component     config.ComponentConfig
	reconnectWait time.Duration
	dispatcher    Dispatcher

	mu sync.Mutex
	sm *xmpp.StreamManager
}

func New(component config.ComponentConfig, reconnectWait time.Duration, dispatcher Dispatcher) *Gateway {
	return &Gateway{
		component:     component,
		reconnectWait: reconnectWait,
		dispatcher:    dispatcher,
	}
}

// Run connects to the XMPP server and serves stanzas until ctx is
// cancelled, reopening the connection after the configured wait
// whenever it drops.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		slog.Info("opening component connection",
			"server", g.component.ServerHostname,
			"component", g.component.ComponentHostname)

		sm, err := g.newStreamManager()
		if err != nil {
			return fmt.Errorf("build component: %w", err)
		}
		g.setStreamManager(sm)

		err = sm.Run()
		if ctx.Err() != nil {
			return nil
		}
		slog.Error("component connection lost", "error", err)

		slog.Info("waiting before reconnecting", "wait", g.reconnectWait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(g.reconnectWait):
		}
	}
}

// Stop closes the active connection; Run returns once its context is
// cancelled.
func (g *Gateway) Stop() {
	g.mu.Lock()
	sm := g.sm
	g.mu.Unlock()
	if sm != nil {
		sm.Stop()
	}
}

func (g *Gateway) setStreamManager(sm *xmpp.StreamManager) {
	g.mu.Lock()
	g.sm = sm
	g.mu.Unlock()
}

func (g *Gateway) newStreamManager() (*xmpp.StreamManager, error) {
	router := xmpp.NewRouter()
	router.HandleFunc("iq", g.handleIQ)

	opts := xmpp.ComponentOptions{
		TransportConfiguration: xmpp.TransportConfiguration{
			Address: fmt.Sprintf("%s:%d", g.component.ServerHostname, g.component.ServerPort),
			Domain:  g.component.ComponentHostname,
		},
		Domain:   g.component.ComponentHostname,
		Secret:   g.component.ComponentKey,
		Name:     "pushgate",
		Category: "pubsub",
		Type:     "service",
	}

	component, err := xmpp.NewComponent(opts, router, func(err error) {
		slog.Error("component stream error", "error", err)
	})
	if err != nil {
		return nil, err
	}
	return xmpp.NewStreamManager(component, nil), nil
}

func (g *Gateway) handleIQ(s xmpp.Sender, p stanza.Packet) {
	iq, ok := p.(*stanza.IQ)
	if !ok {
		return
	}
	if iq.From == "" {
		slog.Warn("received iq without from")
		return
	}

	switch iq.Type {
	case stanza.IQTypeSet:
		// Push requests run on their own goroutine so a paced token
		// never stalls the stanza loop.
		go g.handlePushIQ(s, iq)
	case stanza.IQTypeGet:
		if isPing(iq) {
			slog.Info("received ping", "from", iq.From)
			sendReply(s, resultIQ(iq))
			return
		}
		sendReply(s, errorIQ(iq, conditionBadRequest))
	case stanza.IQTypeResult, stanza.IQTypeError:
		// Replies to stanzas we never sent; drop.
	default:
		slog.Info("received unhandled iq", "from", iq.From, "type", iq.Type)
		sendReply(s, errorIQ(iq, conditionBadRequest))
	}
}

func (g *Gateway) handlePushIQ(s xmpp.Sender, iq *stanza.IQ) {
	moduleID, token, err := extractTarget(iq)
	if err != nil {
		slog.Warn("could not retrieve token or module id", "error", err, "from", iq.From)
		return
	}
	slog.Debug("selected push module", "module", moduleID, "from", iq.From, "token", token)

	verdict := g.dispatcher.Dispatch(context.Background(), moduleID, token)
	switch verdict {
	case push.Blocked:
		slog.Warn("received push request for blocked token", "module", moduleID, "token", token, "from", iq.From)
	case push.UnknownModule, push.Internal:
		slog.Warn("push request failed", "module", moduleID, "verdict", verdict.String(), "token", token, "from", iq.From)
	}
	sendReply(s, replyFor(iq, verdict))
}

func isPing(iq *stanza.IQ) bool {
	if iq.Payload != nil && iq.Payload.Namespace() == pingNamespace {
		return true
	}
	return iq.Any != nil && iq.Any.XMLName.Local == "ping"
}

func sendReply(s xmpp.Sender, reply *stanza.IQ) {
	if err := s.Send(reply); err != nil {
		slog.Error("could not send iq reply", "error", err)
	}
}
