// Package fcm sends wakeup pushes through Firebase Cloud Messaging,
// authenticated with a Google service-account key.
package fcm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/ocx/pushgate/internal/config"
	"github.com/ocx/pushgate/internal/push"
)

// Adapter is an FCM-backed push adapter. Safe for concurrent use.
type Adapter struct {
	client *messaging.Client
	parent string
}

// New reads the service-account key (the project id comes from the key
// file) and builds the messaging client.
func New(ctx context.Context, cfg *config.FCMConfig) (*Adapter, error) {
	projectID, err := projectIDFromSecret(cfg.FCMSecretPath)
	if err != nil {
		slog.Error("could not read fcm service account key", "path", cfg.FCMSecretPath, "error", err)
		return nil, push.NewError(push.KindCertLoading)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID},
		option.WithCredentialsFile(cfg.FCMSecretPath))
	if err != nil {
		slog.Error("could not initialize firebase app", "error", err)
		return nil, push.NewError(push.KindEndpointPersistent)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		slog.Error("could not initialize fcm messaging client", "error", err)
		return nil, push.NewError(push.KindEndpointPersistent)
	}

	return &Adapter{
		client: client,
		parent: "projects/" + projectID,
	}, nil
}

func projectIDFromSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var key struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return "", err
	}
	if key.ProjectID == "" {
		return "", fmt.Errorf("service account key %s carries no project_id", path)
	}
	return key.ProjectID, nil
}

// Send delivers an empty data message to the token; the message itself
// only serves as the wakeup signal.
func (a *Adapter) Send(ctx context.Context, token string) error {
	_, err := a.client.Send(ctx, &messaging.Message{
		Token: token,
		Data:  map[string]string{},
	})
	if err == nil {
		return nil
	}

	slog.Warn("fcm send failed", "parent", a.parent, "error", err)
	switch {
	case messaging.IsUnregistered(err), messaging.IsSenderIDMismatch(err):
		return push.NewError(push.KindTokenBlocked)
	case messaging.IsQuotaExceeded(err):
		return push.NewError(push.KindTokenRateLimited)
	case messaging.IsUnavailable(err), messaging.IsInternal(err):
		return push.NewError(push.KindEndpointTransient)
	case errorutils.HTTPResponse(err) != nil:
		// A structured FCM error outside the handled codes.
		return push.UnknownError(math.MaxUint16)
	default:
		// Transport failure without a structured response.
		return push.NewError(push.KindEndpointTransient)
	}
}
