package middleware

import (
	"errors"
	"sync"

	"github.com/semihalev/zlog/v2"

	"github.com/coredomain/authnsd/config"
)

type middleware struct {
	mu sync.RWMutex

	cfg      *config.Config
	handlers []handler
}

type handler struct {
	name string
	new  func(*config.Config) Handler
}

var m middleware
var chainHandlers []Handler
var alreadySetup bool

// Register a middleware stage by name. new is called once during
// Setup to build the stage from the loaded config.
func Register(name string, new func(*config.Config) Handler) {
	zlog.Debug("Register middleware", "name", name)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler{name: name, new: new})
}

// SetConfig sets the config handed to every registered stage at Setup.
func SetConfig(cfg *config.Config) {
	m.cfg = cfg
}

// Setup builds every registered stage, in registration order. It may
// be called once.
func Setup() error {
	if m.cfg == nil {
		return errors.New("set config first")
	}

	if alreadySetup {
		return errors.New("setup already done")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, handler := range m.handlers {
		chainHandlers = append(chainHandlers, handler.new(m.cfg))
	}

	alreadySetup = true

	return nil
}

// Handlers returns the built stages in chain order.
func Handlers() []Handler {
	return chainHandlers
}

// List returns the registered stage names.
func List() (list []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, handler := range m.handlers {
		list = append(list, handler.name)
	}

	return list
}

// Get returns a built stage by name, or nil before Setup or if unknown.
func Get(name string) Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, handler := range m.handlers {
		if handler.name == name {
			if len(chainHandlers) <= i {
				return nil
			}
			return chainHandlers[i]
		}
	}

	return nil
}
