// Package middleware decorates a StateStore with cross-cutting persistence behavior.
package middleware

import "github.com/aretw0/statforge/pkg/ports"

// Middleware allows wrapping a StateStore to add behavior.
type Middleware func(ports.StateStore) ports.StateStore

// Wrap applies mws to store. The first middleware is the outermost.
func Wrap(store ports.StateStore, mws ...Middleware) ports.StateStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
