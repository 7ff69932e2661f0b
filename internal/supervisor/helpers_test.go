package supervisor_test

import (
	"io"

	"github.com/sirupsen/logrus"
)

func noopLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
