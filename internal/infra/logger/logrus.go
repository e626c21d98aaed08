package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New はlogrusのLoggerを作る。formatが空ならprodはJSON、それ以外はtext。
func New(level string, format string, prod bool, out io.Writer) (*logrus.Logger, error) {
	if out == nil {
		out = os.Stdout
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logg := logrus.New()
	logg.SetOutput(out)
	logg.SetLevel(lvl)

	switch {
	case format == "json", format == "" && prod:
		logg.SetFormatter(&logrus.JSONFormatter{})
	default:
		logg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logg, nil
}

// モジュール名・関数名付きでエラーを出す
func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
