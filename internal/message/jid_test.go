package message

import "testing"

func TestParseJID(t *testing.T) {
	jid, err := ParseJID("5511999:12@s.whatsapp.net")
	if err != nil {
		t.Fatalf("parse jid: %v", err)
	}
	if jid.User != "5511999" || jid.Device != 12 || jid.Server != ServerUser {
		t.Fatalf("unexpected jid: %+v", jid)
	}
	if jid.String() != "5511999@s.whatsapp.net" {
		t.Fatalf("unexpected canonical form: %s", jid.String())
	}
}

func TestParseJIDWithAgent(t *testing.T) {
	jid, err := ParseJID("42_1:3@lid")
	if err != nil {
		t.Fatalf("parse jid: %v", err)
	}
	if jid.User != "42" || jid.Agent != 1 || jid.Device != 3 || jid.Server != ServerLID {
		t.Fatalf("unexpected jid: %+v", jid)
	}
}

func TestParseJIDErrors(t *testing.T) {
	for _, raw := range []string{"", "no-server", "user@", "user:x@s.whatsapp.net", "user_y@s.whatsapp.net"} {
		if _, err := ParseJID(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestCanonicalAndGroupHelpers(t *testing.T) {
	if Canonical("77:2@s.whatsapp.net") != "77@s.whatsapp.net" {
		t.Fatalf("unexpected canonical value")
	}
	if Canonical("garbage") != "garbage" {
		t.Fatalf("expected undecodable jid to pass through")
	}
	if !IsGroupJID("1203@g.us") || IsGroupJID("77@s.whatsapp.net") {
		t.Fatal("unexpected group detection")
	}
	if UserPart("77@s.whatsapp.net") != "77" || UserPart("plain") != "plain" {
		t.Fatal("unexpected user part")
	}
	group := GroupMetadata{Admins: []string{"77@s.whatsapp.net"}}
	if !group.IsAdmin("77:5@s.whatsapp.net") || group.IsAdmin("78@s.whatsapp.net") {
		t.Fatal("unexpected admin membership")
	}
}
