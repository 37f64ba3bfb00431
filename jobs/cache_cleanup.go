package jobs

import (
	"github.com/parkwatch/parking-backend/services"
	"github.com/sirupsen/logrus"
)

type CacheCleanupJob struct {
	CacheService *services.CacheService
}

func NewCacheCleanupJob(cacheService *services.CacheService) *CacheCleanupJob {
	return &CacheCleanupJob{CacheService: cacheService}
}

func (j *CacheCleanupJob) Run() {
	logrus.Info("Starting Cache Cleanup Job")
	removed := j.CacheService.CleanupExpired()
	logrus.WithFields(logrus.Fields{
		"removed":   removed,
		"remaining": j.CacheService.Size(),
	}).Info("Cache Cleanup Job completed")
}
