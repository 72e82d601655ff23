package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProxySource = (*ProxyFile)(nil)

// ProxyFile reads one proxy per line from a text file. Blank lines and lines
// starting with '#' are ignored.
type ProxyFile struct {
	path string
}

// NewProxyFile creates a ProxyFile for path.
func NewProxyFile(path string) *ProxyFile {
	return &ProxyFile{path: path}
}

// LoadProxies parses every proxy in the file, in file order. A malformed line
// is a configuration error and fails the whole load.
func (f *ProxyFile) LoadProxies(_ context.Context) ([]model.Proxy, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open proxy file: %w", err)
	}
	defer file.Close()

	var proxies []model.Proxy
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p, err := model.ParseProxy(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", f.path, lineNo, err)
		}
		proxies = append(proxies, p)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy file: %w", err)
	}

	return proxies, nil
}
