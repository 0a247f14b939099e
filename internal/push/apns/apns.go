// Package apns sends wakeup pushes through the Apple Push Notification
// service over its HTTP/2 API.
package apns

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
	"golang.org/x/net/http2"

	"github.com/ocx/pushgate/internal/config"
	"github.com/ocx/pushgate/internal/push"
)

// Pushes are long-expiry alert notifications; the receiving app only
// needs the wakeup, not the content.
const notificationExpiry = 4 * 7 * 24 * time.Hour

// Adapter is an APNs-backed push adapter holding one authenticated
// HTTP/2 client. Safe for concurrent use.
type Adapter struct {
	client *apns2.Client
	topic  string
	extra  map[string]interface{}
}

// New loads the PKCS#12 client certificate and builds the APNs client.
// A missing or unreadable certificate file fails with a cert-loading
// error, an unparseable one with an endpoint-persistent error.
func New(cfg *config.APNSConfig) (*Adapter, error) {
	data, err := os.ReadFile(cfg.CertFilePath)
	if err != nil {
		slog.Error("could not read apns certificate", "path", cfg.CertFilePath, "error", err)
		return nil, push.NewError(push.KindCertLoading)
	}
	cert, err := certificate.FromP12Bytes(data, cfg.CertPassword)
	if err != nil {
		slog.Error("could not parse apns certificate", "path", cfg.CertFilePath, "error", err)
		return nil, push.NewError(push.KindEndpointPersistent)
	}

	client := apns2.NewClient(cert)
	if cfg.Environment == config.APNSEnvironmentSandbox {
		client.Development()
	} else {
		client.Production()
	}
	client.HTTPClient.Timeout = cfg.RequestTimeout.Std()
	if transport, ok := client.HTTPClient.Transport.(*http2.Transport); ok {
		transport.IdleConnTimeout = cfg.PoolIdleTimeout.Std()
	}

	return &Adapter{
		client: client,
		topic:  cfg.Topic,
		extra:  cfg.AdditionalData,
	}, nil
}

func (a *Adapter) Send(ctx context.Context, token string) error {
	p := payload.NewPayload().
		AlertTitle("New Message").
		AlertBody("New Message?").
		MutableContent().
		Sound("default")
	for key, value := range a.extra {
		p.Custom(key, value)
	}

	notification := &apns2.Notification{
		DeviceToken: token,
		Topic:       a.topic,
		Priority:    apns2.PriorityHigh,
		PushType:    apns2.PushTypeAlert,
		Expiration:  time.Now().Add(notificationExpiry),
		Payload:     p,
	}

	res, err := a.client.PushWithContext(ctx, notification)
	if err != nil {
		slog.Error("could not send apns message", "error", err)
		return push.NewError(push.KindEndpointTransient)
	}

	slog.Debug("apns response", "status", res.StatusCode, "reason", res.Reason, "token", token)
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest, http.StatusForbidden, http.StatusMethodNotAllowed:
		return push.NewError(push.KindEndpointPersistent)
	case http.StatusGone:
		return push.NewError(push.KindTokenBlocked)
	case http.StatusTooManyRequests:
		return push.NewError(push.KindTokenRateLimited)
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return push.NewError(push.KindEndpointTransient)
	default:
		slog.Error("unhandled apns status code", "status", res.StatusCode, "reason", res.Reason)
		return push.UnknownError(res.StatusCode)
	}
}
