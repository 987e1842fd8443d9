package types

// ConnState tracks a connection through its lifecycle. Transitions are
// validated by ValidTransition; nothing skips a state.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateWaiting
	StatePaired
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateWaiting:
		return "waiting"
	case StatePaired:
		return "paired"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// validTransitions is the full lifecycle table. Connecting may jump
// straight to Closed on handshake failure, before any pool entry exists.
var validTransitions = map[ConnState][]ConnState{
	StateConnecting: {StateWaiting, StateClosed},
	StateWaiting:    {StatePaired, StateClosed},
	StatePaired:     {StateClosing},
	StateClosing:    {StateClosed},
	StateClosed:     {},
}

// ValidTransition reports whether from -> to is a legal state change.
func ValidTransition(from, to ConnState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Matchmaking policy modes.
const (
	PolicyArrival = "arrival" // pair the two longest-waiting clients
	PolicyNearby  = "nearby"  // prefer partners with close coarse locations
	PolicyDistant = "distant" // prefer partners with far coarse locations
)

func IsValidPolicy(policy string) bool {
	switch policy {
	case PolicyArrival, PolicyNearby, PolicyDistant:
		return true
	}
	return false
}

// Frame kinds, matching RFC 6455 data opcodes. The relay forwards frames
// verbatim and never inspects Data.
const (
	FrameText   = 1
	FrameBinary = 2
)

// Frame is one opaque message as received from a client.
type Frame struct {
	Kind int
	Data []byte
}

// LocationRecord is the coarse geographic attribution of a client address.
// The zero value is not meaningful; use UnknownLocation for the sentinel.
type LocationRecord struct {
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	Region      string  `json:"region,omitempty"`
	City        string  `json:"city,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	Unknown     bool    `json:"unknown,omitempty"`
}

// UnknownLocation is the sentinel returned when lookup fails or the
// address is non-geolocatable. Pairing proceeds regardless.
func UnknownLocation() LocationRecord {
	return LocationRecord{Unknown: true}
}

func (l LocationRecord) IsUnknown() bool {
	return l.Unknown
}

// HasCoordinates reports whether the record carries a usable lat/lon.
func (l LocationRecord) HasCoordinates() bool {
	return !l.Unknown && (l.Latitude != 0 || l.Longitude != 0)
}

// ClientMeta is the coarse sender metadata captured at handshake time.
// It is never persisted; its only consumer is the partner's paired notice.
type ClientMeta struct {
	Addr      string         `json:"addr,omitempty"`
	UserAgent string         `json:"ua,omitempty"`
	Location  LocationRecord `json:"location"`
}

// PartnerView is the slice of a peer's metadata shared with its partner.
type PartnerView struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
	Known   bool   `json:"known"`
}

// View reduces a location record to what a partner is allowed to see.
func (l LocationRecord) View() PartnerView {
	if l.IsUnknown() {
		return PartnerView{Known: false}
	}
	return PartnerView{Country: l.Country, Region: l.Region, City: l.City, Known: true}
}

// System notice types sent by the server itself. Relayed client frames
// are never wrapped in these.
const (
	NoticePaired      = "paired"
	NoticePartnerLeft = "partner_left"
	NoticeNoPartner   = "no_partner"
	NoticeShutdown    = "shutdown"
)

// PairedNotice tells a client it has been matched.
type PairedNotice struct {
	Type    string      `json:"type"`
	Partner PartnerView `json:"partner"`
}

// SystemNotice is a generic server-originated event.
type SystemNotice struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}
