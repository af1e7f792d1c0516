package shared

import (
	"fmt"
	"time"
)

// DocumentNumber returns a human readable document number such as ORD-1729300000000000000.
func DocumentNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
