package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type entry struct {
	level  zapcore.Level
	msg    string
	fields []zap.Field
}

// LogBuffer collects messages produced before the logger is built.
type LogBuffer struct {
	entries []entry
}

func (b *LogBuffer) Debug(msg string, fields ...zap.Field) {
	b.entries = append(b.entries, entry{level: zapcore.DebugLevel, msg: msg, fields: fields})
}

func (b *LogBuffer) Info(msg string, fields ...zap.Field) {
	b.entries = append(b.entries, entry{level: zapcore.InfoLevel, msg: msg, fields: fields})
}

func (b *LogBuffer) Warn(msg string, fields ...zap.Field) {
	b.entries = append(b.entries, entry{level: zapcore.WarnLevel, msg: msg, fields: fields})
}

func (b *LogBuffer) FlushToZap(logger *zap.Logger) {
	for _, e := range b.entries {
		logger.Log(e.level, e.msg, e.fields...)
	}
	b.entries = nil
}
