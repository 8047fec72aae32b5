//go:build integration

package integration

import (
	"fmt"
	"time"
)

// TestPassword satisfies the password policy
const TestPassword = "TestPassword123!"

// TestEmail generates a unique member email using a timestamp
func TestEmail(suffix string) string {
	return fmt.Sprintf("test-%d-%s@example.com", time.Now().UnixNano(), suffix)
}
