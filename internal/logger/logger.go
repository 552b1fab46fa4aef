package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/captain-yun7/facefalcon-sub000/config"

	log "github.com/sirupsen/logrus"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init konfiguriert den globalen Logger: Level, Format und optional eine Logdatei.
// Der zurückgegebene Closer schließt die Datei, falls eine geöffnet wurde.
func Init(cfg config.LogConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info': %v", cfg.Level, err)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(formatter(cfg.Format))

	// Container-Logs gehen immer nach stdout
	writers := []io.Writer{os.Stdout}
	file := openLogFile(cfg.File)
	if file != nil {
		writers = append(writers, file)
	}
	log.SetOutput(io.MultiWriter(writers...))

	log.WithField("level", level.String()).Info("Logger initialized")
	if file == nil {
		return nopCloser{}, nil
	}
	return file, nil
}

func formatter(format string) log.Formatter {
	if format == "json" {
		return &log.JSONFormatter{}
	}
	return &log.TextFormatter{FullTimestamp: true}
}

// openLogFile gibt nil zurück, wenn keine Datei konfiguriert ist oder sie nicht geöffnet werden kann
func openLogFile(path string) *os.File {
	if path == "" {
		return nil
	}
	logDir := filepath.Dir(path)
	if err := os.MkdirAll(logDir, 0750); err != nil {
		log.Errorf("Failed to create log directory '%s': %v", logDir, err)
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
	if err != nil {
		log.Errorf("Failed to open log file '%s': %v", path, err)
		return nil
	}
	log.Infof("Logging additionally to file: %s", path)
	return file
}
