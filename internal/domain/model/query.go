package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedWebAppURL is returned when a web view URL carries no launch data.
var ErrMalformedWebAppURL = errors.New("malformed web app url")

// webAppDataMarker precedes the launch token in a web view redirect URL.
const webAppDataMarker = "tgWebAppData="

// QueryRecord is one generated launch token for an (account, bot) pair.
type QueryRecord struct {
	UserID      int64
	BotUsername string
	Query       string
	Name        string
	Proxy       *Proxy
}

// QueryFilter scopes list and clear operations. The zero value matches everything.
type QueryFilter struct {
	UserID *int64
	Bot    string
}

// WebAppParams are the fixed arguments sent with every app web view request.
type WebAppParams struct {
	Platform   string
	StartParam string
	ShortName  string
}

// ExtractQuery pulls the launch token out of a web view URL: the text after
// "tgWebAppData=" up to the next '&', percent-decoded. '+' is kept literally and
// a '%' that does not start a valid escape is left as is.
func ExtractQuery(rawURL string) (string, error) {
	_, rest, found := strings.Cut(rawURL, webAppDataMarker)
	if !found {
		return "", fmt.Errorf("%w: no %s in %q", ErrMalformedWebAppURL, strings.TrimSuffix(webAppDataMarker, "="), rawURL)
	}

	encoded, _, _ := strings.Cut(rest, "&")

	query := unescapeLenient(encoded)
	if query == "" {
		return "", fmt.Errorf("%w: empty launch data", ErrMalformedWebAppURL)
	}

	return query, nil
}

// unescapeLenient decodes %XX sequences and copies malformed ones through.
func unescapeLenient(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
