package redis

import "fmt"

const keyPrefix = "dayflow:"

func tasksKey(ownerID string) string {
	return fmt.Sprintf("%stasks:%s", keyPrefix, ownerID)
}

func changesChannel(ownerID string) string {
	return fmt.Sprintf("%stasks:%s:changed", keyPrefix, ownerID)
}

func templateKey(ownerID string) string {
	return fmt.Sprintf("%stemplate:%s", keyPrefix, ownerID)
}

func sessionKey(id string) string {
	return fmt.Sprintf("%ssession:%s", keyPrefix, id)
}
