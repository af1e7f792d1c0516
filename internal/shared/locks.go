package shared

import "fmt"

// CartLockKey builds the redis key serialising one user's cart mutations.
func CartLockKey(userID int64) string {
	return fmt.Sprintf("wms:cart:%d:lock", userID)
}
