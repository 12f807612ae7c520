// Package fslog is a thin wrapper over logrus that mirrors the call shape
// rclone's own fs.Debugf/fs.Infof/fs.Errorf family uses throughout
// backend/cache: a leading "tag" identifying the subsystem or object, a
// printf-style format, and args.
package fslog

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger is the package-level logger. Tests may swap its output or level.
var Logger = logrus.StandardLogger()

func tagString(tag interface{}) string {
	if tag == nil {
		return "castore"
	}
	if s, ok := tag.(string); ok {
		return s
	}
	if s, ok := tag.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", tag)
}

// Debugf logs at debug level, tagged by tag (a store name, path, or nil).
func Debugf(tag interface{}, format string, args ...interface{}) {
	Logger.WithField("tag", tagString(tag)).Debugf(format, args...)
}

// Infof logs at info level.
func Infof(tag interface{}, format string, args ...interface{}) {
	Logger.WithField("tag", tagString(tag)).Infof(format, args...)
}

// Errorf logs at error level. It does not itself construct an error value;
// callers still return one through internal/cerrors.
func Errorf(tag interface{}, format string, args ...interface{}) {
	Logger.WithField("tag", tagString(tag)).Errorf(format, args...)
}

// Warnf logs at warn level, used for swallowed best-effort failures
// such as a failed atime touch, eviction unlink, or lock-map GC pass.
func Warnf(tag interface{}, format string, args ...interface{}) {
	Logger.WithField("tag", tagString(tag)).Warnf(format, args...)
}
