package zerolog_config

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

var startupLoggerOnce = &sync.Once{}

// Options describes the logger of a process.
type Options struct {
	App   string
	Level zerolog.Level
	// ElasticsearchURL enables ECS output to Index when set.
	ElasticsearchURL string
	Index            string
	// Console defaults to os.Stderr.
	Console io.Writer
}

// ElasticsearchWriter posts every log line as a document to an index.
type ElasticsearchWriter struct {
	URL    string
	Client *http.Client
}

func (ew ElasticsearchWriter) Write(p []byte) (n int, err error) {
	client := ew.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	resp, err := client.Post(ew.URL+"/_doc", "application/json", bytes.NewReader(p))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("elasticsearch returned %d", resp.StatusCode)
	}

	return len(p), nil
}

// New builds a logger writing human readable lines to the console and, with
// an Elasticsearch URL, ECS JSON documents to the index.
func New(opts Options) zerolog.Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleWriter := zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}

	var logger zerolog.Logger
	if opts.ElasticsearchURL == "" {
		logger = zerolog.New(consoleWriter)
	} else {
		esWriter := &ElasticsearchWriter{
			URL: strings.TrimRight(opts.ElasticsearchURL, "/") + "/" + opts.Index,
		}
		logger = ecszerolog.New(zerolog.MultiLevelWriter(esWriter, consoleWriter))
	}

	return logger.Level(opts.Level).With().
		Str("app", opts.App).
		Timestamp().
		Logger()
}

// Startup installs New(opts) as the global logger. Only the first call has
// an effect.
func Startup(opts Options) zerolog.Logger {
	startupLoggerOnce.Do(func() {
		log.Logger = New(opts)
	})
	return log.Logger
}
