package logging

import "go.uber.org/zap"

// ZapLogger adapts a *zap.SugaredLogger to the Logger interface. It is
// an alternative a host can plug in instead of DefaultLogger when it
// wants structured output.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a production zap logger and wraps it.
func NewZapLogger() (*ZapLogger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{sugar: z.Sugar()}, nil
}

func (l *ZapLogger) Info(v ...interface{}) { l.sugar.Info(v...) }
func (l *ZapLogger) Infof(format string, v ...interface{}) { l.sugar.Infof(format, v...) }
func (l *ZapLogger) Warn(v ...interface{}) { l.sugar.Warn(v...) }
func (l *ZapLogger) Warnf(format string, v ...interface{}) { l.sugar.Warnf(format, v...) }
func (l *ZapLogger) Error(v ...interface{}) { l.sugar.Error(v...) }
func (l *ZapLogger) Errorf(format string, v ...interface{}) { l.sugar.Errorf(format, v...) }
func (l *ZapLogger) Debug(v ...interface{}) { l.sugar.Debug(v...) }
func (l *ZapLogger) Debugf(format string, v ...interface{}) { l.sugar.Debugf(format, v...) }
func (l *ZapLogger) Fatal(v ...interface{}) { l.sugar.Fatal(v...) }
func (l *ZapLogger) Fatalf(format string, v ...interface{}) { l.sugar.Fatalf(format, v...) }

// Sync flushes any buffered log entries, as zap recommends calling
// before process exit.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
