package syncstate

import "github.com/ordokr/LMS-sub004/internal/models"

// stateCache cache-aside копия сохраненных состояний.
// Не потокобезопасен: доступ только под Manager.mu.
type stateCache struct {
	entries map[string]*models.EntityVersionState
}

func newStateCache() *stateCache {
	return &stateCache{entries: make(map[string]*models.EntityVersionState)}
}

func (c *stateCache) get(key string) (*models.EntityVersionState, bool) {
	state, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return state.Clone(), true
}

func (c *stateCache) put(state *models.EntityVersionState) {
	c.entries[state.Key()] = state.Clone()
}

func (c *stateCache) len() int {
	return len(c.entries)
}
