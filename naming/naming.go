package naming

import (
	"errors"
	"fmt"
)

// SetType identifies which kind of backup object a filename describes.
type SetType int

const (
	// Full is an archive volume or manifest belonging to a full backup set.
	Full SetType = iota + 1

	// Inc is an archive volume or manifest belonging to an incremental set.
	Inc

	// FullSig is the signature object written alongside a full set.
	FullSig

	// NewSig is the signature delta written alongside an incremental set.
	NewSig
)

// String returns the short human-readable name of the set type.
func (t SetType) String() string {
	switch t {
	case Full:
		return "full"
	case Inc:
		return "inc"
	case FullSig:
		return "full-sig"
	case NewSig:
		return "new-sig"
	default:
		return fmt.Sprintf("settype(%d)", int(t))
	}
}

// ranged reports whether the set type covers a (start, end) time range
// rather than a single timestamp.
func (t SetType) ranged() bool {
	return t == Inc || t == NewSig
}

// Entry is the decoded metadata of one remote object. The remote filename
// is its only serialized form; Entry values are built transiently around
// Encode and Parse calls and compared by value.
type Entry struct {
	Type SetType

	// Time is the backup time for Full and FullSig entries, in whole
	// seconds since the UNIX epoch.
	Time int64

	// Start and End bound the covered range for Inc and NewSig entries.
	Start int64
	End   int64

	// Volume is the 1-based volume number of an archive volume. Zero for
	// manifests and signatures.
	Volume int

	// Manifest marks the manifest object of a Full or Inc set.
	Manifest bool

	Compressed bool
	Encrypted  bool

	// Partial marks an upload that was interrupted before completion.
	// Partial objects are never treated as members of a chain.
	Partial bool
}

// maxTime is the largest encodable timestamp: 9999-12-31T23:59:59Z. The
// verbose filename form carries a four-digit year.
const maxTime = 253402300799

// ErrInvalidEntry is returned by Encode when an entry violates the
// structural rules below.
var ErrInvalidEntry = errors.New("naming: invalid entry")

// Validate checks the structural rules an entry must satisfy before it can
// be encoded:
//
//   - Full and Inc entries carry exactly one of a volume number or the
//     manifest flag.
//   - FullSig and NewSig entries carry neither.
//   - Single-timestamp types use Time; range types use Start and End.
//   - All timestamps are in [0, 9999-12-31T23:59:59Z].
func (e Entry) Validate() error {
	switch e.Type {
	case Full, Inc:
		if (e.Volume > 0) == e.Manifest {
			return fmt.Errorf("%w: %s entry needs exactly one of volume or manifest", ErrInvalidEntry, e.Type)
		}
	case FullSig, NewSig:
		if e.Volume != 0 || e.Manifest {
			return fmt.Errorf("%w: %s entry cannot carry a volume or manifest", ErrInvalidEntry, e.Type)
		}
	default:
		return fmt.Errorf("%w: unknown set type %d", ErrInvalidEntry, int(e.Type))
	}

	if e.Volume < 0 {
		return fmt.Errorf("%w: negative volume %d", ErrInvalidEntry, e.Volume)
	}

	if e.Type.ranged() {
		if e.Time != 0 {
			return fmt.Errorf("%w: %s entry must not set Time", ErrInvalidEntry, e.Type)
		}
		if !validTime(e.Start) || !validTime(e.End) {
			return fmt.Errorf("%w: time range [%d, %d] out of range", ErrInvalidEntry, e.Start, e.End)
		}
	} else {
		if e.Start != 0 || e.End != 0 {
			return fmt.Errorf("%w: %s entry must not set Start/End", ErrInvalidEntry, e.Type)
		}
		if !validTime(e.Time) {
			return fmt.Errorf("%w: time %d out of range", ErrInvalidEntry, e.Time)
		}
	}
	return nil
}

func validTime(sec int64) bool {
	return sec >= 0 && sec <= maxTime
}

// Scheme fixes the filename dialect: verbose or compact tokens, plus the
// configured prefixes. The zero value is the verbose dialect with no
// prefixes. A Scheme is immutable and safe to share.
//
// Parsing does not auto-detect the dialect; the caller that wrote the
// files fixes Short for reading them back.
type Scheme struct {
	// Short selects the compact dialect: two-letter type tokens and
	// base-36 timestamps and volume numbers.
	Short bool

	// Prefix decorates every filename.
	Prefix string

	// ArchivePrefix, ManifestPrefix, and SignaturePrefix additionally
	// decorate archive volumes, manifests, and signatures. Each is
	// applied after Prefix.
	ArchivePrefix   string
	ManifestPrefix  string
	SignaturePrefix string
}

// Filename grammar tokens. The verbose dialect spells everything out;
// the compact one shrinks each token to one or two letters and switches
// numbers to base 36.
const (
	tokFull    = "drift-full"
	tokInc     = "drift-inc"
	tokFullSig = "drift-full-signatures"
	tokNewSig  = "drift-new-signatures"

	tokFullShort    = "df"
	tokIncShort     = "di"
	tokFullSigShort = "dfs"
	tokNewSigShort  = "dns"

	tokArchive  = "difftar"
	tokManifest = "manifest"
	tokSig      = "sigtar"

	tokArchiveShort  = "dt"
	tokManifestShort = "m"
	tokSigShort      = "st"

	sufCompressed      = "gz"
	sufEncrypted       = "gpg"
	sufPartial         = "part"
	sufCompressedShort = "z"
	sufEncryptedShort  = "g"
	sufPartialShort    = "p"
)
