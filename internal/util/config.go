package util

// Configuration carries the resolved command-line settings through the
// process setup.
type Configuration struct {
	Version   string
	BuildDate string
	Commit    string

	PolicyFile string
	Admin      bool

	Concurrent  bool
	MaxParallel int

	TraceFile string

	DBDriver string
	DBDSN    string
}
