package gocommand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// ErrRegistryNotConfigured is returned by every RegistryAdapter method that
// needs a registry when none is set.
var ErrRegistryNotConfigured = errors.New("gocommand: registry is not configured")

// ValidateMessageContract checks that msg carries a non-empty Type() and, when
// it implements Validate(), that validation passes.
func ValidateMessageContract(msg any) error {
	if err := gocmd.ValidateMessage(msg); err != nil {
		return err
	}
	typed, ok := msg.(gocmd.Message)
	if !ok {
		return fmt.Errorf("gocommand: %T does not implement Type() string", msg)
	}
	if strings.TrimSpace(typed.Type()) == "" {
		return fmt.Errorf("gocommand: %T returned an empty message type", msg)
	}
	return nil
}

// RegistryAdapter owns the go-command registry that twilio commands and
// queries are registered into. Resolvers (such as the go-job queue mirror)
// run when Initialize is called.
type RegistryAdapter struct {
	registry *gocmd.Registry
}

func NewRegistryAdapter(registry *gocmd.Registry) *RegistryAdapter {
	if registry == nil {
		registry = gocmd.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) ready() (*gocmd.Registry, error) {
	if a == nil || a.registry == nil {
		return nil, ErrRegistryNotConfigured
	}
	return a.registry, nil
}

// RegisterCommand records handler in the registry. Queries go through the
// same path since the registry keys both by message type.
func (a *RegistryAdapter) RegisterCommand(handler any) error {
	registry, err := a.ready()
	if err != nil {
		return err
	}
	return registry.RegisterCommand(handler)
}

func (a *RegistryAdapter) AddResolver(key string, resolver gocmd.Resolver) error {
	registry, err := a.ready()
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("gocommand: resolver key is required")
	}
	return registry.AddResolver(key, resolver)
}

// AddQueueResolver mirrors every registered command into queueRegistry so
// go-job workers can execute them.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required for resolver %q", key)
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	registry, err := a.ready()
	if err != nil {
		return false
	}
	return registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	registry, err := a.ready()
	if err != nil {
		return err
	}
	return registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe subscribes cmd on the global dispatcher and registers
// it. The subscription is dropped when registration fails.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd gocmd.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command handler is required")
	}
	if _, err := adapter.ready(); err != nil {
		return nil, err
	}
	return subscribeThenRegister(adapter, cmd, commanddispatcher.SubscribeCommand(cmd, runnerOpts...))
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry gocmd.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query handler is required")
	}
	if _, err := adapter.ready(); err != nil {
		return nil, err
	}
	return subscribeThenRegister(adapter, qry, commanddispatcher.SubscribeQuery(qry, runnerOpts...))
}

func subscribeThenRegister(
	adapter *RegistryAdapter,
	handler any,
	subscription commanddispatcher.Subscription,
) (commanddispatcher.Subscription, error) {
	if err := adapter.RegisterCommand(handler); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}
