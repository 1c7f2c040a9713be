package inspect

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// InitLogger sets the default slog logger from config.
func InitLogger(config *Config) {
	_, filename, _, _ := runtime.Caller(0)
	handler := newHandler(os.Stdout, config, findModuleRoot(filepath.Dir(filename)))
	slog.SetDefault(slog.New(handler))
}

func newHandler(w io.Writer, config *Config, projectRoot string) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:       config.GetSlogLevel(),
		AddSource:   true,
		NoColor:     config.Logging.NoColor,
		TimeFormat:  time.RFC3339,
		ReplaceAttr: trimSource(projectRoot),
	})
}

// trimSource makes source file paths under projectRoot relative to it.
func trimSource(projectRoot string) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key != slog.SourceKey {
			return a
		}
		source, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		// 표준 라이브러리 등 프로젝트 밖의 파일은 전체 경로를 그대로 둔다
		if projectRoot != "" && strings.HasPrefix(source.File, projectRoot+"/") {
			source.File = source.File[len(projectRoot)+1:]
		}
		return slog.Any(a.Key, source)
	}
}

// findModuleRoot walks up from dir to the directory holding go.mod. It
// returns "" when the sources are not around, as for an installed binary.
func findModuleRoot(dir string) string {
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
