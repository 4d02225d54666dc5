package server

import (
	"os"
	"testing"

	"fitcoach/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init()

	code := m.Run()
	os.Exit(code)
}
