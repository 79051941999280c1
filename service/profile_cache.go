package service

import (
	"time"

	"visamate-backend/models"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ProfileCache is a size and TTL bounded read-through cache of user profiles
type ProfileCache struct {
	lru *expirable.LRU[uuid.UUID, *models.User]
}

// NewProfileCache creates a cache holding at most size profiles for ttl
func NewProfileCache(size int, ttl time.Duration) *ProfileCache {
	return &ProfileCache{lru: expirable.NewLRU[uuid.UUID, *models.User](size, nil, ttl)}
}

// Get returns a copy of the cached profile
func (c *ProfileCache) Get(id uuid.UUID) (*models.User, bool) {
	if c == nil {
		return nil, false
	}
	u, ok := c.lru.Get(id)
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

// Add stores a copy of the profile
func (c *ProfileCache) Add(u *models.User) {
	if c == nil || u == nil {
		return
	}
	cp := *u
	c.lru.Add(u.ID, &cp)
}

// Remove drops a profile so the next read goes to the store
func (c *ProfileCache) Remove(id uuid.UUID) {
	if c == nil {
		return
	}
	c.lru.Remove(id)
}
