// Package useragent wraps the uap-go User-Agent parser. It is used to enrich
// redirect debug logs with full browser/OS/device family detail; the
// classification stored on click events comes from internal/fingerprint so
// that recorded rows are identical whether or not the regex database is
// available on disk.
package useragent

import (
	"fmt"
	"os"
	"sync"

	"github.com/ua-parser/uap-go/uaparser"
	"go.uber.org/zap"
)

// Parser wraps the uap-go parser.
type Parser struct {
	parser *uaparser.Parser
	log    *zap.Logger
}

// Info is the parsed detail for one User-Agent string.
type Info struct {
	Browser string // e.g. "Mobile Safari"
	OS      string // e.g. "iOS"
	Device  string // e.g. "iPhone"
	Raw     string
}

var (
	globalParser *Parser
	once         sync.Once
)

// NewParser creates a parser from a uap-core regexes.yaml file.
func NewParser(regexFilePath string, log *zap.Logger) (*Parser, error) {
	regexBytes, err := os.ReadFile(regexFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read regexes file %s: %w", regexFilePath, err)
	}

	parser, err := uaparser.NewFromBytes(regexBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create User-Agent parser: %w", err)
	}

	log.Info("User-Agent parser initialized", zap.String("regexes_file", regexFilePath))

	return &Parser{parser: parser, log: log}, nil
}

// InitGlobalParser initializes the process-wide parser instance.
func InitGlobalParser(regexFilePath string, log *zap.Logger) error {
	var err error
	once.Do(func() {
		globalParser, err = NewParser(regexFilePath, log)
	})
	return err
}

// GetGlobalParser returns the singleton parser, or nil when initialization
// failed or never ran. Callers must tolerate nil.
func GetGlobalParser() *Parser {
	return globalParser
}

// Parse returns the full family detail for a User-Agent string.
func (p *Parser) Parse(userAgent string) *Info {
	if userAgent == "" {
		return &Info{Browser: "unknown", OS: "unknown", Device: "unknown"}
	}

	client := p.parser.Parse(userAgent)

	return &Info{
		Browser: orUnknown(client.UserAgent.Family),
		OS:      orUnknown(client.Os.Family),
		Device:  orUnknown(client.Device.Family),
		Raw:     userAgent,
	}
}

func orUnknown(family string) string {
	if family == "" || family == "Other" {
		return "unknown"
	}
	return family
}
