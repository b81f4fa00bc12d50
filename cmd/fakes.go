package cmd

import (
	"github.com/rs/zerolog"

	"github.com/biohack5079/cnc/internal/api"
	"github.com/biohack5079/cnc/internal/fabric"
	"github.com/biohack5079/cnc/internal/platform/persistence"
	"github.com/biohack5079/cnc/internal/platform/push"
	"github.com/biohack5079/cnc/internal/presence"
	"github.com/biohack5079/cnc/pkg/signal"
)

// NewLocalDependencies creates in-memory backends for local development. The
// relay works on a single instance without NATS, Redis, or Firestore.
func NewLocalDependencies(logger zerolog.Logger) (*signal.Dependencies, api.SubscriptionStore) {
	deps := &signal.Dependencies{
		Fabric:   fabric.NewMemoryFabric(logger),
		Presence: presence.NewLocalDirectory(),
		Store:    persistence.NewMemoryStore(),
		Wakeup:   push.NopNotifier{},
	}
	return deps, api.NewMemorySubscriptionStore()
}
