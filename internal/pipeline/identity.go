package pipeline

import (
	"regexp"

	"github.com/dwizi/chat-runtime/internal/message"
)

var deviceSuffixPattern = regexp.MustCompile(`:\d+@`)

// JIDDecoder is the transport's identity decoding capability.
type JIDDecoder interface {
	DecodeJID(jid string) (message.JID, error)
}

// IdentityResolver folds device-suffixed addresses into user@server.
type IdentityResolver struct {
	decoder JIDDecoder
}

func NewIdentityResolver(decoder JIDDecoder) IdentityResolver {
	return IdentityResolver{decoder: decoder}
}

// Resolve never fails: anything it cannot decode comes back unchanged.
func (r IdentityResolver) Resolve(raw string) (resolved string) {
	if raw == "" || r.decoder == nil {
		return raw
	}
	if !deviceSuffixPattern.MatchString(raw) {
		return raw
	}
	resolved = raw
	defer func() {
		if recover() != nil {
			resolved = raw
		}
	}()
	decoded, err := r.decoder.DecodeJID(raw)
	if err != nil || decoded.User == "" || decoded.Server == "" {
		return raw
	}
	return decoded.User + "@" + decoded.Server
}
