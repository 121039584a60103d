package repositories

import (
	"fmt"

	"chat-sync/domain"
)

// Key namespaces inside the shared Badger instance. Message keys embed the
// zero-padded server timestamp and sequence so that lexicographical order
// is exactly the conversation's total order.
func conversationKey(key domain.ConversationKey) []byte {
	return []byte("con:" + string(key))
}

func messagePrefix(key domain.ConversationKey) []byte {
	return []byte("msg:" + string(key) + ":")
}

func messageKey(key domain.ConversationKey, tsNanos int64, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%012d", key, tsNanos, seq))
}

func dedupKey(key domain.ConversationKey, clientMessageID string) []byte {
	return []byte(fmt.Sprintf("ded:%s:%s", key, clientMessageID))
}

func logMetaKey(key domain.ConversationKey) []byte {
	return []byte("met:" + string(key))
}

func mirrorPrefix(ownerID string) []byte {
	return []byte("mir:" + ownerID + ":")
}

func mirrorKey(ownerID string, key domain.ConversationKey) []byte {
	return []byte(fmt.Sprintf("mir:%s:%s", ownerID, key))
}

func profileKey(id string) []byte {
	return []byte("pro:" + id)
}

func emailKey(email string) []byte {
	return []byte("eml:" + email)
}
