// 包 logx 是对标准库 slog 的薄封装：
// - 支持级别/格式/语言/颜色配置
// - pretty 输出带本地化等级标签（zh-CN / en / pt-BR）
// - 通过 Debugf/Infof/Warnf/Errorf 暴露，业务代码不直接依赖 slog
package logx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// levelSilent 高于任何实际等级，用于关闭输出。
const levelSilent slog.Level = 100

// Init 根据 level/format/locale/colorMode 初始化全局日志器，输出到 stdout。
func Init(level, format, locale, colorMode string) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, level, format, locale, colorMode)))
}

// NewHandler 按格式创建 Handler：json/text 使用 slog 自带实现，pretty 使用 PrettyHandler。
func NewHandler(w io.Writer, level, format, locale, colorMode string) slog.Handler {
	lv := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lv}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return slog.NewJSONHandler(w, opts)
	case "text":
		return slog.NewTextHandler(w, opts)
	default:
		return NewPrettyHandler(w, lv, locale, colorMode)
	}
}

// ParseLevel 将字符串级别解析为 slog.Level，未知值按 info 处理。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "silent", "off":
		return levelSilent
	default:
		return slog.LevelInfo
	}
}

func Debugf(format string, v ...any) { slog.Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { slog.Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { slog.Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { slog.Error(fmt.Sprintf(format, v...)) }

// labels 为各语言的等级标签，顺序：debug/info/warn/error。
var labels = map[string][4]string{
	"zh": {"[调试]", "[信息]", "[警告]", "[错误]"},
	"pt": {"[DEPURAR]", "[INFO]", "[AVISO]", "[ERRO]"},
	"en": {"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]"},
}

// PrettyHandler 为人读的单行输出：时间 等级 消息 k=v...
type PrettyHandler struct {
	w      io.Writer
	level  slog.Level
	labels [4]string
	color  bool
	mu     *sync.Mutex
	attrs  []slog.Attr
	group  string
}

// NewPrettyHandler 创建 PrettyHandler；locale 为空时使用 zh-CN 标签。
func NewPrettyHandler(w io.Writer, lv slog.Level, locale string, colorMode string) *PrettyHandler {
	if w == nil {
		w = os.Stdout
	}
	return &PrettyHandler{
		w:      w,
		level:  lv,
		labels: labelsFor(locale),
		color:  shouldColor(w, colorMode),
		mu:     &sync.Mutex{},
	}
}

func labelsFor(locale string) [4]string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if l == "" {
		return labels["zh"]
	}
	for k, v := range labels {
		if strings.HasPrefix(l, k) {
			return v
		}
	}
	return labels["en"]
}

func (h *PrettyHandler) Enabled(_ context.Context, l slog.Level) bool {
	return h.level < levelSilent && l >= h.level
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(ts.Format("2006-01-02 15:04:05"))
	buf.WriteByte(' ')
	lvl := h.label(r.Level)
	if h.color {
		lvl = colorize(lvl, r.Level)
	}
	buf.WriteString(lvl)
	buf.WriteByte(' ')
	buf.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		writeAttr(&buf, a)
		return true
	})
	buf.WriteByte('\n')
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func writeAttr(buf *bytes.Buffer, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	buf.WriteString(a.Value.String())
}

// WithAttrs 附加属性；已有分组时键带分组前缀。
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		cp.attrs = append(cp.attrs, a)
	}
	return &cp
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	if cp.group == "" {
		cp.group = name
	} else {
		cp.group += "." + name
	}
	return &cp
}

func (h *PrettyHandler) label(l slog.Level) string {
	switch {
	case l == slog.LevelDebug:
		return h.labels[0]
	case l == slog.LevelInfo:
		return h.labels[1]
	case l == slog.LevelWarn:
		return h.labels[2]
	case l == slog.LevelError:
		return h.labels[3]
	default:
		return fmt.Sprintf("[L%d]", l)
	}
}

// shouldColor 遵循 NO_COLOR 与 LOG_COLOR（auto 时仅对终端着色）。
func shouldColor(w io.Writer, mode string) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true
	case "auto", "":
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				return fi.Mode()&os.ModeCharDevice != 0
			}
		}
		return false
	default:
		return false
	}
}

func colorize(s string, l slog.Level) string {
	code := "0"
	switch l {
	case slog.LevelDebug:
		code = "90"
	case slog.LevelInfo:
		code = "36"
	case slog.LevelWarn:
		code = "33"
	case slog.LevelError:
		code = "31"
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}
