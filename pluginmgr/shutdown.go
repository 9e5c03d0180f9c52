package pluginmgr

// Shutdown releases every currently loaded plugin instance by evicting it
// from the cache, running the same close hook Get's LRU eviction would
// (onEvict). It does not disable the plugins' descriptors: a Get call
// after Shutdown constructs fresh instances exactly as it would at
// process start.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.cache.Keys() {
		m.cache.Remove(name)
	}
}
