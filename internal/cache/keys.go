package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(recordID uuid.UUID) string {
	return fmt.Sprintf("job:record:%s", recordID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
