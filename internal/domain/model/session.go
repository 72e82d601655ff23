// Package model holds the domain types shared by the application and adapters.
package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// Session is one stored credential: the opaque Telethon string session read from
// a file in the sessions directory. Data doubles as the stable key for proxy
// assignment because the account id is only known after connecting.
type Session struct {
	Name string // file name, e.g. "alice.session"; empty for sessions loaded from the stores
	Data string
}

// Label identifies the session in logs without exposing the credential.
func (s Session) Label() string {
	if s.Name != "" {
		return s.Name
	}
	sum := sha256.Sum256([]byte(s.Data))
	return "session-" + hex.EncodeToString(sum[:4])
}

// ProxyAssignment binds a session to its outbound proxy. Proxy is nil when the
// session connects directly.
type ProxyAssignment struct {
	Session string
	Proxy   *Proxy
}
