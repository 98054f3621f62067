package naming

import (
	"math"
	"strconv"
	"strings"
)

// Parse decodes a remote filename back into an Entry. The second return
// is false for any name that does not match the scheme's grammar:
// directory listings routinely contain foreign files, and those are the
// caller's cue to skip, not an error. Parse never panics on arbitrary
// input.
func (s Scheme) Parse(name string) (Entry, bool) {
	rest, ok := strings.CutPrefix(name, s.Prefix)
	if !ok {
		return Entry{}, false
	}
	if e, ok := s.parseArchive(rest); ok {
		return e, true
	}
	if e, ok := s.parseManifest(rest); ok {
		return e, true
	}
	if e, ok := s.parseSignature(rest); ok {
		return e, true
	}
	return Entry{}, false
}

// parseArchive matches full and incremental volume names.
func (s Scheme) parseArchive(rest string) (Entry, bool) {
	rest, ok := strings.CutPrefix(rest, s.ArchivePrefix)
	if !ok {
		return Entry{}, false
	}
	f := strings.Split(rest, ".")

	switch f[0] {
	case s.token(tokFull, tokFullShort):
		// drift-full.<T>.vol<N>.difftar / df.<t>.<n>.dt
		if len(f) < 4 || f[3] != s.token(tokArchive, tokArchiveShort) {
			return Entry{}, false
		}
		t, ok := s.parseTime(f[1])
		if !ok {
			return Entry{}, false
		}
		vol, ok := s.parseVolume(f[2])
		if !ok {
			return Entry{}, false
		}
		e := Entry{Type: Full, Time: t, Volume: vol}
		return s.finish(e, f[4:])

	case s.token(tokInc, tokIncShort):
		// drift-inc.<T1>.to.<T2>.vol<N>.difftar / di.<t1>.<t2>.<n>.dt
		f, ok = s.cutRangeSeparator(f)
		if !ok {
			return Entry{}, false
		}
		if len(f) < 5 || f[4] != s.token(tokArchive, tokArchiveShort) {
			return Entry{}, false
		}
		start, ok1 := s.parseTime(f[1])
		end, ok2 := s.parseTime(f[2])
		if !ok1 || !ok2 {
			return Entry{}, false
		}
		vol, ok := s.parseVolume(f[3])
		if !ok {
			return Entry{}, false
		}
		e := Entry{Type: Inc, Start: start, End: end, Volume: vol}
		return s.finish(e, f[5:])
	}
	return Entry{}, false
}

// parseManifest matches full and incremental manifest names.
func (s Scheme) parseManifest(rest string) (Entry, bool) {
	rest, ok := strings.CutPrefix(rest, s.ManifestPrefix)
	if !ok {
		return Entry{}, false
	}
	f := strings.Split(rest, ".")

	switch f[0] {
	case s.token(tokFull, tokFullShort):
		// drift-full.<T>.manifest / df.<t>.m
		if len(f) < 3 || f[2] != s.token(tokManifest, tokManifestShort) {
			return Entry{}, false
		}
		t, ok := s.parseTime(f[1])
		if !ok {
			return Entry{}, false
		}
		e := Entry{Type: Full, Time: t, Manifest: true}
		return s.finish(e, f[3:])

	case s.token(tokInc, tokIncShort):
		// drift-inc.<T1>.to.<T2>.manifest / di.<t1>.<t2>.m
		f, ok = s.cutRangeSeparator(f)
		if !ok {
			return Entry{}, false
		}
		if len(f) < 4 || f[3] != s.token(tokManifest, tokManifestShort) {
			return Entry{}, false
		}
		start, ok1 := s.parseTime(f[1])
		end, ok2 := s.parseTime(f[2])
		if !ok1 || !ok2 {
			return Entry{}, false
		}
		e := Entry{Type: Inc, Start: start, End: end, Manifest: true}
		return s.finish(e, f[4:])
	}
	return Entry{}, false
}

// parseSignature matches full-signature and new-signature names.
func (s Scheme) parseSignature(rest string) (Entry, bool) {
	rest, ok := strings.CutPrefix(rest, s.SignaturePrefix)
	if !ok {
		return Entry{}, false
	}
	f := strings.Split(rest, ".")

	switch f[0] {
	case s.token(tokFullSig, tokFullSigShort):
		// drift-full-signatures.<T>.sigtar / dfs.<t>.st
		if len(f) < 3 || f[2] != s.token(tokSig, tokSigShort) {
			return Entry{}, false
		}
		t, ok := s.parseTime(f[1])
		if !ok {
			return Entry{}, false
		}
		e := Entry{Type: FullSig, Time: t}
		return s.finish(e, f[3:])

	case s.token(tokNewSig, tokNewSigShort):
		// drift-new-signatures.<T1>.to.<T2>.sigtar / dns.<t1>.<t2>.st
		f, ok = s.cutRangeSeparator(f)
		if !ok {
			return Entry{}, false
		}
		if len(f) < 4 || f[3] != s.token(tokSig, tokSigShort) {
			return Entry{}, false
		}
		start, ok1 := s.parseTime(f[1])
		end, ok2 := s.parseTime(f[2])
		if !ok1 || !ok2 {
			return Entry{}, false
		}
		e := Entry{Type: NewSig, Start: start, End: end}
		return s.finish(e, f[4:])
	}
	return Entry{}, false
}

// cutRangeSeparator removes the literal "to" field the verbose dialect
// places between the start and end timestamps. The compact dialect writes
// the two timestamps adjacently, so the fields pass through unchanged.
func (s Scheme) cutRangeSeparator(f []string) ([]string, bool) {
	if s.Short {
		return f, true
	}
	if len(f) < 3 || f[2] != "to" {
		return nil, false
	}
	return append(f[:2:2], f[3:]...), true
}

// parseVolume decodes a volume-number field. Volume numbers are 1-based.
func (s Scheme) parseVolume(field string) (int, bool) {
	if s.Short {
		n, ok := parseBase36(field)
		if !ok || n < 1 || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	}
	digits, ok := strings.CutPrefix(field, "vol")
	if !ok || digits == "" {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// finish consumes the trailing flag suffixes, which must appear in their
// fixed order: compression, then encryption, then partial. Anything left
// over is an unknown token and rejects the whole name.
func (s Scheme) finish(e Entry, f []string) (Entry, bool) {
	i := 0
	if i < len(f) && f[i] == s.token(sufCompressed, sufCompressedShort) {
		e.Compressed = true
		i++
	}
	if i < len(f) && f[i] == s.token(sufEncrypted, sufEncryptedShort) {
		e.Encrypted = true
		i++
	}
	if i < len(f) && f[i] == s.token(sufPartial, sufPartialShort) {
		e.Partial = true
		i++
	}
	if i != len(f) {
		return Entry{}, false
	}
	return e, true
}
