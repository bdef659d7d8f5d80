package debate

import (
	"github.com/podiumlabs/podium/pkg/Logger"
)

func testLogger() *Logger.Logger {
	return Logger.New(true)
}
