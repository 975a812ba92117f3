package direkte

import (
	"log/slog"
	"sync"

	"github.com/hupe1980/direkte/internal/filemanager"
	"github.com/hupe1980/direkte/internal/fs"
)

// FileManager shares the storages of index and column files between the
// indexes of a process. See NewFileManager.
type FileManager = filemanager.Manager

var defaultFileManager = sync.OnceValue(func() *FileManager {
	return filemanager.New()
})

type options struct {
	fm               *FileManager
	fs               fs.FileSystem
	fsync            bool
	preload          bool
	offsetWidth      uint8
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures how an index is built, opened and written.
type Option func(*options)

// WithFileManager reads index and column files through fm. Indexes on the
// same manager share storages. A nil fm selects the process default.
func WithFileManager(fm *FileManager) Option {
	return func(o *options) { o.fm = fm }
}

// WithFileSystem writes index files through fsys.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) { o.fs = fsys }
}

// WithFsync makes Write sync the new file and its directory.
func WithFsync(enabled bool) Option {
	return func(o *options) { o.fsync = enabled }
}

// WithPreload decodes all bitmaps when a file is opened rather than on
// first use.
func WithPreload(enabled bool) Option {
	return func(o *options) { o.preload = enabled }
}

// WithOffsetWidth fixes the offset width of written files to 4 or 8 bytes.
// Zero picks the narrowest width that fits.
func WithOffsetWidth(width uint8) Option {
	return func(o *options) { o.offsetWidth = width }
}

// WithMetricsCollector reports operations to mc; nil disables reporting.
//
//	metrics := &direkte.BasicMetricsCollector{}
//	idx, _ := direkte.Build(ctx, meta, src, direkte.WithMetricsCollector(metrics))
//	fmt.Println(metrics.GetStats().QueryCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) { o.metricsCollector = mc }
}

// WithLogger sends index events to logger; nil silences them.
func WithLogger(logger *Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLogLevel logs text lines at level and above to stderr.
func WithLogLevel(level slog.Level) Option {
	return WithLogger(NewTextLogger(level))
}

func applyOptions(fns []Option) options {
	var o options
	for _, fn := range fns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.fs == nil {
		o.fs = fs.Default
	}
	if o.fm == nil {
		o.fm = defaultFileManager()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
