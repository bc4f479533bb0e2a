package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler writes one header line per record followed by indented fields:
//
//	2025-01-02 15:04:05 INFO [orchestrator] Video abc (main) @upload-b - video archived
//	    - remote_id: xyz
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// header holds the fields folded into the first line instead of the field list.
type header struct {
	component string
	videoID   string
	pass      string
	account   string
}

// absorb stores a header field and reports whether key was one. The first value wins
// so a component set at construction is not replaced by a nested logger.
func (hd *header) absorb(key string, value slog.Value) bool {
	var slot *string
	switch key {
	case FieldComponent:
		slot = &hd.component
	case FieldVideoID:
		slot = &hd.videoID
	case FieldPass:
		slot = &hd.pass
	case FieldAccount:
		slot = &hd.account
	default:
		return false
	}
	if *slot == "" {
		*slot = strings.TrimSpace(attrString(value))
	}
	return true
}

func (hd header) subject() string {
	var parts []string
	if hd.videoID != "" {
		parts = append(parts, "Video "+hd.videoID)
	}
	if hd.pass != "" {
		parts = append(parts, "("+hd.pass+")")
	}
	if hd.account != "" {
		parts = append(parts, "@"+hd.account)
	}
	return strings.Join(parts, " ")
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	fields := newFieldSet(record.NumAttrs() + len(h.attrs))
	for _, attr := range h.attrs {
		fields.add(h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields.add(h.groups, attr)
		return true
	})

	var hd header
	body := fields.list[:0:0]
	for _, f := range fields.list {
		if !hd.absorb(f.key, f.value) {
			body = append(body, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	buf.Grow(128 + len(body)*32)
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	if hd.component != "" {
		buf.WriteString(" [" + hd.component + "]")
	}
	if subject := hd.subject(); subject != "" {
		buf.WriteString(" " + subject)
	}
	buf.WriteString(" - " + message)
	if src := record.Source(); h.addSource && src != nil && src.File != "" {
		buf.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
	}
	buf.WriteByte('\n')
	for _, f := range body {
		buf.WriteString("    - " + f.key + ": " + formatValue(f.value) + "\n")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	return &prettyHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

type field struct {
	key   string
	value slog.Value
}

// fieldSet flattens groups into dotted keys. A repeated key keeps its first position
// and its last value.
type fieldSet struct {
	list []field
	pos  map[string]int
}

func newFieldSet(capacity int) *fieldSet {
	return &fieldSet{list: make([]field, 0, capacity), pos: make(map[string]int, capacity)}
}

func (s *fieldSet) add(prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, member := range attr.Value.Group() {
			s.add(prefix, member)
		}
		return
	}
	if attr.Key == "" {
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	if i, ok := s.pos[key]; ok {
		s.list[i].value = attr.Value
		return
	}
	s.pos[key] = len(s.list)
	s.list = append(s.list, field{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
