package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// LatestRunKey returns the Redis key holding the most recent harvest summary
func (r *CacheKeyStruct) LatestRunKey() string {
	return "harvest:run:latest"
}

// RunKey returns the Redis key holding the summary of a specific harvest run
func (r *CacheKeyStruct) RunKey(runID string) string {
	return fmt.Sprintf("harvest:run:%s", runID)
}

// ActivityListKey returns the in-process cache key for one page of stored identifiers
func (r *CacheKeyStruct) ActivityListKey(page, perPage int) string {
	return fmt.Sprintf("activities:identifiers:%d:%d", page, perPage)
}

var CacheKey = NewCacheKeyStruct()
