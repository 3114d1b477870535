package message

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	ServerUser      = "s.whatsapp.net"
	ServerGroup     = "g.us"
	ServerBroadcast = "broadcast"
	ServerLID       = "lid"
)

// JID is a decoded transport address. Device is zero for the primary device.
type JID struct {
	User   string
	Agent  int
	Device int
	Server string
}

// String returns the canonical user@server form, without agent or device.
func (j JID) String() string {
	if j.User == "" {
		return j.Server
	}
	return j.User + "@" + j.Server
}

// ParseJID decodes addresses of the form user[_agent][:device]@server.
func ParseJID(raw string) (JID, error) {
	value := strings.TrimSpace(raw)
	at := strings.LastIndex(value, "@")
	if at < 0 {
		return JID{}, fmt.Errorf("jid %q has no server part", raw)
	}
	server := value[at+1:]
	if server == "" {
		return JID{}, fmt.Errorf("jid %q has an empty server part", raw)
	}
	combined := value[:at]
	jid := JID{Server: server}

	userAgent := combined
	if colon := strings.Index(combined, ":"); colon >= 0 {
		userAgent = combined[:colon]
		device, err := strconv.Atoi(combined[colon+1:])
		if err != nil {
			return JID{}, fmt.Errorf("jid %q has an invalid device: %w", raw, err)
		}
		jid.Device = device
	}
	jid.User = userAgent
	if underscore := strings.Index(userAgent, "_"); underscore >= 0 {
		jid.User = userAgent[:underscore]
		agent, err := strconv.Atoi(userAgent[underscore+1:])
		if err != nil {
			return JID{}, fmt.Errorf("jid %q has an invalid agent: %w", raw, err)
		}
		jid.Agent = agent
	}
	return jid, nil
}

// Canonical strips agent and device from an address, leaving it unchanged
// when it cannot be decoded.
func Canonical(jid string) string {
	decoded, err := ParseJID(jid)
	if err != nil || decoded.User == "" {
		return strings.TrimSpace(jid)
	}
	return decoded.String()
}

func IsGroupJID(jid string) bool {
	return strings.HasSuffix(strings.TrimSpace(jid), "@"+ServerGroup)
}

// UserPart returns the portion of an address before the server separator.
func UserPart(jid string) string {
	value := strings.TrimSpace(jid)
	if at := strings.Index(value, "@"); at >= 0 {
		return value[:at]
	}
	return value
}
