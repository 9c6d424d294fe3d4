package gateway

import (
	"sort"
	"sync"

	"main/pkg/exception"
)

// Factory builds a gateway for one account from opaque adapter
// parameters. Adapters register themselves under a symbolic key; the
// config names the key, so the engine never depends on concrete types.
type Factory func(account string, params map[string]string) (Gateway, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// Register binds a factory to a symbolic key. Duplicate keys are
// rejected.
func Register(key string, f Factory) error {
	if key == "" || f == nil {
		return exception.ErrGatewayUnknownFactory
	}

	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, ok := factories[key]; ok {
		return exception.ErrGatewayDuplicateName
	}
	factories[key] = f
	return nil
}

// New resolves a factory key and builds the gateway.
func New(key, account string, params map[string]string) (Gateway, error) {
	factoryMu.RLock()
	f, ok := factories[key]
	factoryMu.RUnlock()
	if !ok {
		return nil, exception.ErrGatewayUnknownFactory
	}
	return f(account, params)
}

// Keys lists the registered factory keys, sorted.
func Keys() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	keys := make([]string, 0, len(factories))
	for key := range factories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
