package jobs

import (
	"testing"
	"time"

	"github.com/parkwatch/parking-backend/models"
	"github.com/parkwatch/parking-backend/services"
	"github.com/stretchr/testify/assert"
)

func TestCacheCleanupJobPurgesExpiredEntries(t *testing.T) {
	cache := services.NewCacheServiceWithConfig(time.Minute, 16)
	cache.SetSearchResultWithTTL("OLD", models.NewEmptySearchResult("OLD", nil), -time.Second)
	cache.SetSearchResult("FRESH", models.NewEmptySearchResult("FRESH", nil))

	job := NewCacheCleanupJob(cache)
	job.Run()

	assert.Equal(t, 1, cache.Size())
	_, fresh := cache.GetSearchResult("FRESH")
	assert.True(t, fresh)
}
