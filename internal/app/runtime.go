package app

import (
	"os"
	"sync"
)

// TestModeEnv short-circuits the binaries so package tests can import them.
const TestModeEnv = "ODYSSEY_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether the binaries should skip runtime side effects.
func InTestMode() bool {
	return testMode()
}
