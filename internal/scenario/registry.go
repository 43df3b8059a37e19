package scenario

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = map[string]User{}
	registryMu sync.RWMutex
)

// Register makes a user available by name. It panics on an invalid or
// duplicate user, since registration happens at init time.
func Register(u User) {
	if err := u.Validate(); err != nil {
		panic(err)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[u.Name]; exists {
		panic(fmt.Sprintf("scenario: user %s registered twice", u.Name))
	}
	registry[u.Name] = u
}

// Lookup returns a copy of the registered user.
func Lookup(name string) (*User, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	u, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown user %q (available: %v)", name, namesLocked())
	}
	return &u, nil
}

// Names returns the registered user names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
