package kvstore

import "fmt"

// ResourceKey addresses a resource's metadata document.
func ResourceKey(resourceID string) string {
	return fmt.Sprintf("resource:%s", resourceID)
}

// ContentKey addresses a language-scoped content document.
func ContentKey(resourceID, lang string) string {
	return fmt.Sprintf("resource:%s:content:%s", resourceID, lang)
}

// MailboxKey addresses a per-group mailbox simulation document.
func MailboxKey(resourceID, group, lang string) string {
	return fmt.Sprintf("resource:%s:mailbox:%s:%s", resourceID, group, lang)
}
