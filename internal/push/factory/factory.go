// Package factory wires the concrete vendor adapters into the push
// registry, keeping the core free of vendor SDK imports.
package factory

import (
	"context"
	"fmt"

	"github.com/ocx/pushgate/internal/config"
	"github.com/ocx/pushgate/internal/push"
	"github.com/ocx/pushgate/internal/push/apns"
	"github.com/ocx/pushgate/internal/push/demo"
	"github.com/ocx/pushgate/internal/push/fcm"
)

// Adapter returns an AdapterFactory building the vendor adapter named
// by each module configuration's type tag.
func Adapter(ctx context.Context) push.AdapterFactory {
	return func(id string, cfg config.PushModuleConfig) (push.Adapter, error) {
		switch cfg.Type {
		case config.ModuleTypeApple:
			return apns.New(cfg.APNS)
		case config.ModuleTypeGoogle:
			return fcm.New(ctx, cfg.FCM)
		case config.ModuleTypeDemo:
			return demo.New(), nil
		default:
			return nil, fmt.Errorf("unknown push module type %q", cfg.Type)
		}
	}
}
