package redis

import (
	"fmt"

	"github.com/mcoot/gamenight/internal/model"
)

// Key prefix for all bot data
const keyPrefix = "gamenight"

// conversationKey returns the Redis key for a person's conversation context
func conversationKey(id model.PersonID) string {
	return fmt.Sprintf("%s:conversation:%d", keyPrefix, id)
}
