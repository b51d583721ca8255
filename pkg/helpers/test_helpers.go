package helpers

import (
	"io"
	"log"
)

// This should be called from init() functions in test files
func SilenceLogOutput() {
	log.SetOutput(io.Discard)
}
