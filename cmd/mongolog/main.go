// Command mongolog ships newline-delimited log lines from stdin into a
// MongoDB collection.
//
// Lines holding a JSON object are stored field by field, with "msg" and
// "level" taken as the message and level; any other line is stored as the
// message of an INFO record.
//
//	tail -F app.log | mongolog --config mongolog.yaml --field service=api
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/bitdabbler/mongolog"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	configPath = kingpin.Flag("config", "Path to the YAML config file.").Short('c').String()
	fields     = kingpin.Flag("field", "Static field added to every document, as key=value.").Short('f').StringMap()
	maxLine    = kingpin.Flag("max-line", "Maximum line length in bytes.").Default("1048576").Int()
	timeout    = kingpin.Flag("shutdown-timeout", "Time allowed to write out pending documents.").Default("30s").Duration()
)

func main() {
	kingpin.Parse()

	cfg, err := mongolog.LoadConfig(*configPath)
	if err != nil {
		log.Fatalln(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, shutdown, err := mongolog.Open(ctx, cfg, staticFields(*fields)...)
	if err != nil {
		log.Fatalln(err)
	}

	n, err := ship(ctx, h, bufio.NewReader(os.Stdin), *maxLine)
	if err != nil {
		mongolog.InternalLogger().Printf("stopped reading stdin: %v", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := shutdown(sctx); err != nil {
		log.Fatalf("failed to shut down after %d lines: %v", n, err)
	}
}

func staticFields(m map[string]string) []mongolog.Field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fs := make([]mongolog.Field, len(keys))
	for i, k := range keys {
		fs[i] = mongolog.String(k, m[k])
	}
	return fs
}

// ship reads lines until EOF or ctx is done and returns how many were
// handled.
func ship(ctx context.Context, h slog.Handler, rd *bufio.Reader, maxLine int) (int, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, min(64*1024, maxLine)), maxLine)

	n := 0
	for sc.Scan() {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if len(line) == 0 {
			continue
		}
		r := lineRecord(line)
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r); err != nil {
			mongolog.InternalLogger().Printf("line %d: %v", n+1, err)
		}
		n++
	}
	return n, sc.Err()
}

func lineRecord(line string) slog.Record {
	var obj map[string]any
	if !strings.HasPrefix(line, "{") || json.Unmarshal([]byte(line), &obj) != nil {
		return slog.NewRecord(time.Now(), slog.LevelInfo, line, 0)
	}

	msg, _ := obj[mongolog.MessageKey].(string)
	delete(obj, mongolog.MessageKey)

	level := slog.LevelInfo
	if s, ok := obj[mongolog.LevelKey].(string); ok {
		if err := level.UnmarshalText([]byte(s)); err != nil {
			level = slog.LevelInfo
		}
		delete(obj, mongolog.LevelKey)
	}

	r := slog.NewRecord(time.Now(), level, msg, 0)

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.AddAttrs(slog.Any(k, obj[k]))
	}
	return r
}
