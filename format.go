package bootimg

// FormatID is the closed set of container formats this library recognizes.
// Registration order (see the Reader's EnableFormat* methods) is what
// breaks bidding ties, not this numbering.
type FormatID int

const (
	FormatAndroid FormatID = iota
	FormatBump
	FormatLoki
	FormatSonyElf
	FormatMtk
)

func (id FormatID) String() string {
	switch id {
	case FormatAndroid:
		return "android"
	case FormatBump:
		return "bump"
	case FormatLoki:
		return "loki"
	case FormatSonyElf:
		return "sony_elf"
	case FormatMtk:
		return "mtk"
	default:
		return "unknown"
	}
}

// Bid sentinels.
const (
	BidNo         = 0
	BidError      = -1
	BidUnwinnable = -2
)

// FormatReader is the per-format capability the facade dispatches to after
// bidding selects a winner. ReadEntry, GoToEntry and ReadData simply
// delegate to a SegmentReader once ReadHeader has populated one — see
// android.go, loki.go, sonyelf.go, mtk.go.
type FormatReader interface {
	TypeID() FormatID
	Name() string

	// SetOption configures a format-specific key/value option. It
	// returns false, nil if key isn't recognized by this format (not an
	// error — the facade may try several formats' options before
	// opening).
	SetOption(key, value string) (bool, error)

	// Bid returns evidence (in bits) that file conforms to this format,
	// BidUnwinnable if bestBid already reaches or exceeds what this format
	// could ever score, or an error for a genuine I/O failure. A returned bid
	// of BidNo means "definitely not this format", which the facade
	// must not treat as an error.
	Bid(f File, bestBid int) (int, error)

	ReadHeader(f File, out *Header) error
	ReadEntry(f File, out *Entry) error
	GoToEntry(f File, out *Entry, t EntryType) error
	ReadData(f File, buf []byte) (int, error)
}

// FormatWriter is the per-format write-side capability.
type FormatWriter interface {
	TypeID() FormatID
	Name() string

	SetOption(key, value string) (bool, error)

	// GetHeader reports which fields this format supports, independent
	// of any header the caller eventually supplies.
	GetHeader(f File, out *Header) error
	WriteHeader(f File, h *Header) error
	GetEntry(f File, out *Entry) error
	WriteEntry(f File, e *Entry) error
	WriteData(f File, buf []byte) (int, error)
	FinishEntry(f File) error

	// Close finalizes the output: back-patches headers/trailers. It is
	// always called, even if an earlier step failed, so implementations
	// must tolerate being called on a partially written stream.
	Close(f File) error
}
