package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptStartKey returns the cache key for an attempt's start timestamp.
func (r *CacheKeyStruct) AttemptStartKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:start", attemptID)
}

// AttemptAnswersKey returns the cache key for an attempt's autosaved answers.
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AssessmentPayloadKey returns the cache key for an assessment's student paper.
func (r *CacheKeyStruct) AssessmentPayloadKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:paper", assessmentID)
}

var CacheKey = NewCacheKeyStruct()
