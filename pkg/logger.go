package converter

type Logger interface {
	Info(message string, module string)
	Error(string)
}

type nopLogger struct{}

func (nopLogger) Info(string, string) {}
func (nopLogger) Error(string)        {}

var logger Logger = nopLogger{}

func SetLogger(l Logger) {
	if l == nil {
		l = nopLogger{}
	}
	logger = l
}

// verbosity gates progress messages: 0 quiet, 1 run, 2 files, 3 frames and SQL.
var verbosity int

func SetVerbosity(v int) {
	verbosity = v
}
