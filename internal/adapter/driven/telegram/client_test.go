package telegram

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
)

// telethonSession builds a syntactically valid Telethon string session:
// version '1' followed by base64url(dc id, IPv4, port, 256-byte auth key).
func telethonSession(t *testing.T) string {
	t.Helper()

	var raw bytes.Buffer
	raw.WriteByte(2)
	raw.Write([]byte{149, 154, 167, 50})
	require.NoError(t, binary.Write(&raw, binary.BigEndian, uint16(443)))
	raw.Write(bytes.Repeat([]byte{0x5a}, 256))

	return "1" + base64.URLEncoding.EncodeToString(raw.Bytes())
}

func newTestPlatform() *Platform {
	return NewPlatform(12345, "hash", slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestWithSession_RejectsMalformedSession(t *testing.T) {
	called := false

	err := newTestPlatform().WithSession(context.Background(), "not-a-session", nil, func(context.Context, driven.Conn) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode session")
	assert.False(t, called)
}

func TestWithSession_RejectsUnsupportedProxyScheme(t *testing.T) {
	called := false
	proxy := &model.Proxy{Protocol: "ftp", Host: "10.0.0.1", Port: 21}

	err := newTestPlatform().WithSession(context.Background(), telethonSession(t), proxy, func(context.Context, driven.Conn) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "build dialer for 10.0.0.1:21")
	assert.False(t, called)
}

func TestDialerFor_UnsupportedScheme(t *testing.T) {
	_, err := dialerFor(&model.Proxy{Protocol: "ftp", Host: "10.0.0.1", Port: 21})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10.0.0.1:21")
}
