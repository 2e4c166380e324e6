package fileexchange

import (
	"time"

	"github.com/arloliu/go-thales/logger"
	"github.com/arloliu/go-thales/remote"
)

type config struct {
	connOpts    []remote.ConnOption
	logger      logger.Logger
	filesToSkip []string
	savePath    string
	pollTimeout time.Duration
	drainDelay  time.Duration
}

func newConfig() *config {
	return &config{
		logger:      logger.GetLogger(),
		filesToSkip: []string{"lastshot.ism"},
		pollTimeout: defaultPollTimeout,
		drainDelay:  defaultDrainDelay,
	}
}

// Option configures a FileInterface.
type Option func(*config)

// WithConnOptions passes options to the connection opened by Dial. A connection name given
// here replaces DefaultConnectionName.
func WithConnOptions(opts ...remote.ConnOption) Option {
	return func(c *config) { c.connOpts = append(c.connOpts, opts...) }
}

func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFilesToSkip replaces the default list of skipped file names.
func WithFilesToSkip(names ...string) Option {
	return func(c *config) { c.filesToSkip = names }
}

// WithSavePath sets the directory received files are saved to. It defaults to the working
// directory and is not created, use SetSavePath for that.
func WithSavePath(path string) Option {
	return func(c *config) { c.savePath = path }
}

// WithPollTimeout sets how long the worker waits for a new file before it checks whether it
// was stopped. The default is one second.
func WithPollTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollTimeout = d
		}
	}
}

// WithDrainDelay sets how long DisableAutomaticFileExchange keeps receiving after the Term
// was told to stop sending. The default is one second.
func WithDrainDelay(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.drainDelay = d
		}
	}
}
