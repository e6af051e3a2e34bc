package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

var (
	Info  = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	Error = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
)

// Init redirects both loggers to stdout/stderr plus a shared log file.
func Init(logDir string) error {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}

	logFile, err := os.OpenFile(filepath.Join(logDir, "querygate.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return err
	}

	Info.SetOutput(io.MultiWriter(os.Stdout, logFile))
	Error.SetOutput(io.MultiWriter(os.Stderr, logFile))

	return nil
}
