package protocol

// DefaultRelays is the clearnet relay set used when no relays are configured.
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://relay.primal.net",
	"wss://relay.nostr.band",
}

// DefaultTorRelays is the onion relay set selected by the tor-relays option.
var DefaultTorRelays = []string{
	"ws://oxtrdevav64z64yb7x6rjg4ntzqjhedm5b5zjqulugknhzr46ny2qbad.onion",
	"ws://2jsnlhfnelig5acq6iacydmzdbdmg7xwunm4xl6qwbvzacw4lwrjmlyd.onion",
	"ws://nostrnetl6yd5whkldj3vqsxyyaq3tkuspy23a3qgx7cdepb4564qgqd.onion",
}

// RelaySet holds the two relay pools a client can publish to. The system
// treats every relay as interchangeable, unreliable, and untrusted; the
// only guarantee sought is at-least-one-acceptance.
type RelaySet struct {
	// Relays is the clearnet relay pool.
	Relays []string `yaml:"relays" json:"relays"`

	// TorRelays is the onion-service relay pool, used when a submission
	// requests tor routing.
	TorRelays []string `yaml:"tor_relays" json:"tor_relays"`
}

// DefaultRelaySet returns a RelaySet populated with the built-in pools.
func DefaultRelaySet() RelaySet {
	return RelaySet{
		Relays:    append([]string(nil), DefaultRelays...),
		TorRelays: append([]string(nil), DefaultTorRelays...),
	}
}

// Select returns the pool chosen by the useTor flag. The returned slice is
// a copy; callers may shrink it freely (the hop strategy does).
func (s RelaySet) Select(useTor bool) []string {
	if useTor {
		return append([]string(nil), s.TorRelays...)
	}
	return append([]string(nil), s.Relays...)
}
