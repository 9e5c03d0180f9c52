// Package singleflight adapts [golang.org/x/sync/singleflight] to a
// generic, comparable-keyed Group so call sites like [cache.Live] don't
// need to stringify keys themselves.
package singleflight

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Result is what's sent on the channel returned by [Group.DoChan].
type Result[V any] struct {
	Val V
	Err error
}

// Group deduplicates concurrent calls sharing the same key, generic over
// the key and value types. The zero Group is ready for use.
type Group[K comparable, V any] struct {
	inner singleflight.Group

	mu   sync.Mutex
	keys map[K]string
}

// DoChan executes fn for key, sharing the call with any other in-flight
// DoChan for the same key, and delivers the result on the returned channel.
func (g *Group[K, V]) DoChan(key K, fn func() (V, error)) <-chan Result[V] {
	out := make(chan Result[V], 1)
	strKey := g.stringKey(key)
	ch := g.inner.DoChan(strKey, func() (any, error) {
		return fn()
	})
	go func() {
		res := <-ch
		var v V
		if res.Val != nil {
			v, _ = res.Val.(V)
		}
		out <- Result[V]{Val: v, Err: res.Err}
	}()
	return out
}

// Forget tells the Group to forget about key, so the next call for it will
// execute fn rather than waiting on (or sharing the result of) an
// in-flight call.
func (g *Group[K, V]) Forget(key K) {
	g.inner.Forget(g.stringKey(key))
}

// stringKey maps a comparable key to the string key the wrapped
// [singleflight.Group] requires, caching the mapping so the same K value
// always yields the same string.
func (g *Group[K, V]) stringKey(key K) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys == nil {
		g.keys = make(map[K]string)
	}
	if s, ok := g.keys[key]; ok {
		return s
	}
	s := fmt.Sprintf("%v", key)
	g.keys[key] = s
	return s
}
