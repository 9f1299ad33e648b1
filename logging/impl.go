package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type impl struct {
	*zap.SugaredLogger

	name  string
	level AtomicLevel
	core  zapcore.Core
}

func newImpl(name string, level Level, core zapcore.Core) *impl {
	lvl := NewAtomicLevelAt(level)
	zl := zap.New(&leveledCore{Core: core, level: lvl}, zap.AddCaller())
	if name != "" {
		zl = zl.Named(name)
	}
	return &impl{
		SugaredLogger: zl.Sugar(),
		name:          name,
		level:         lvl,
		core:          core,
	}
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return newImpl(newName, imp.level.Get(), imp.core)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

// leveledCore gates an underlying core with a per-logger level so that subloggers can be
// quieted independently while sharing the same outputs.
type leveledCore struct {
	zapcore.Core
	level AtomicLevel
}

func (c *leveledCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *leveledCore) With(fields []zapcore.Field) zapcore.Core {
	return &leveledCore{Core: c.Core.With(fields), level: c.level}
}

func (c *leveledCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.level.Enabled(entry.Level) {
		return checked
	}
	return c.Core.Check(entry, checked)
}
