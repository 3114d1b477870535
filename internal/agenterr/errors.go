package agenterr

import "errors"

var (
	ErrAuthorBanned         = errors.New("author is banned")
	ErrChatBanned           = errors.New("chat is banned")
	ErrAdminOnly            = errors.New("chat restricts commands to admins")
	ErrAntiLink             = errors.New("anti-link is active for this chat")
	ErrAntiBot              = errors.New("anti-bot is active for this chat")
	ErrPredicateUnavailable = errors.New("predicate service unavailable")
)
