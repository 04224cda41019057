package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"

	elog "github.com/ethereum/go-ethereum/log"
)

const timeFormatMs = "2006-01-02T15:04:05.000-0700"

// LvlSetter is implemented by handlers whose level can change at runtime.
type LvlSetter interface {
	SetLogLevel(lvl slog.Level)
}

// DynamicLogHandler filters records below a level that can be changed while running.
type DynamicLogHandler struct {
	slog.Handler
	minLvl *atomic.Int64
}

var (
	_ slog.Handler = (*DynamicLogHandler)(nil)
	_ LvlSetter    = (*DynamicLogHandler)(nil)
)

func NewDynamicLogHandler(lvl slog.Level, h slog.Handler) *DynamicLogHandler {
	minLvl := new(atomic.Int64)
	minLvl.Store(int64(lvl))
	return &DynamicLogHandler{Handler: h, minLvl: minLvl}
}

func (d *DynamicLogHandler) SetLogLevel(lvl slog.Level) {
	d.minLvl.Store(int64(lvl))
}

func (d *DynamicLogHandler) Level() slog.Level {
	return slog.Level(d.minLvl.Load())
}

// Unwrapper is implemented by handlers that decorate another handler.
type Unwrapper interface {
	Unwrap() slog.Handler
}

// FindHandler walks down the chain of wrapped handlers and returns the first one of type H.
func FindHandler[H any](h slog.Handler) (out H, ok bool) {
	for h != nil {
		if found, isH := h.(H); isH {
			return found, true
		}
		u, canUnwrap := h.(Unwrapper)
		if !canUnwrap {
			break
		}
		h = u.Unwrap()
	}
	return out, false
}

func (d *DynamicLogHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return lvl >= slog.Level(d.minLvl.Load()) && d.Handler.Enabled(ctx, lvl)
}

func (d *DynamicLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &DynamicLogHandler{Handler: d.Handler.WithAttrs(attrs), minLvl: d.minLvl}
}

func (d *DynamicLogHandler) WithGroup(name string) slog.Handler {
	return &DynamicLogHandler{Handler: d.Handler.WithGroup(name), minLvl: d.minLvl}
}

// JSONMsHandler writes one JSON object per record, with millisecond timestamps.
func JSONMsHandler(wr io.Writer) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr { return replaceAttr(attr, false) },
		Level:       elog.LevelTrace,
	})
}

// LogfmtMsHandler writes key=value records, with millisecond timestamps.
func LogfmtMsHandler(wr io.Writer) slog.Handler {
	return slog.NewTextHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr { return replaceAttr(attr, true) },
		Level:       elog.LevelTrace,
	})
}

// replaceAttr renders levels the geth way, and big numbers and stringers as plain strings.
func replaceAttr(attr slog.Attr, logfmt bool) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() == slog.KindTime {
			if logfmt {
				return slog.String("t", attr.Value.Time().Format(timeFormatMs))
			}
			return slog.Attr{Key: "t", Value: attr.Value}
		}
	case slog.LevelKey:
		if l, ok := attr.Value.Any().(slog.Level); ok {
			return slog.Any("lvl", elog.LevelString(l))
		}
	}

	switch v := attr.Value.Any().(type) {
	case time.Time:
		if logfmt {
			attr = slog.String(attr.Key, v.Format(timeFormatMs))
		}
	case *big.Int:
		attr.Value = nilOr(v == nil, v)
	case *uint256.Int:
		if v == nil {
			attr.Value = slog.StringValue("<nil>")
		} else {
			attr.Value = slog.StringValue(v.Dec())
		}
	case fmt.Stringer:
		attr.Value = nilOr(v == nil || (reflect.ValueOf(v).Kind() == reflect.Pointer && reflect.ValueOf(v).IsNil()), v)
	}
	return attr
}

func nilOr(isNil bool, v fmt.Stringer) slog.Value {
	if isNil {
		return slog.StringValue("<nil>")
	}
	return slog.StringValue(v.String())
}
