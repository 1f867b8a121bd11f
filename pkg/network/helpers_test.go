package network

import (
	"io"

	"github.com/junbin-yang/coapkit-go/pkg/utils/logger"
)

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.DebugLevel)
}
