package logging

import (
	"go.uber.org/zap"
)

var log *zap.SugaredLogger

// Init builds the process-wide logger. Debug mode switches to the
// human-readable development encoder.
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	log = l.Sugar()
	return nil
}

// L returns the process logger, initializing a production logger on first use
// if Init was never called.
func L() *zap.SugaredLogger {
	if log == nil {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		log = l.Sugar()
	}
	return log
}

// Sync flushes buffered log entries; call on shutdown.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
