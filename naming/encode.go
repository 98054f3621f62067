package naming

import (
	"strconv"
	"strings"
)

// Encode renders an entry as a remote filename under the scheme's
// dialect and prefixes. It is total over valid entries and injective:
// two distinct valid entries never produce the same name under the same
// scheme. Encode returns ErrInvalidEntry for entries that violate the
// structural rules (see Entry.Validate).
func (s Scheme) Encode(e Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(s.Prefix)

	switch e.Type {
	case Full:
		s.writeTypePrefix(&b, e)
		b.WriteString(s.token(tokFull, tokFullShort))
		b.WriteByte('.')
		b.WriteString(s.formatTime(e.Time))
		s.writeBody(&b, e)
	case Inc:
		s.writeTypePrefix(&b, e)
		b.WriteString(s.token(tokInc, tokIncShort))
		b.WriteByte('.')
		b.WriteString(s.formatTime(e.Start))
		if !s.Short {
			b.WriteString(".to")
		}
		b.WriteByte('.')
		b.WriteString(s.formatTime(e.End))
		s.writeBody(&b, e)
	case FullSig:
		b.WriteString(s.SignaturePrefix)
		b.WriteString(s.token(tokFullSig, tokFullSigShort))
		b.WriteByte('.')
		b.WriteString(s.formatTime(e.Time))
		b.WriteByte('.')
		b.WriteString(s.token(tokSig, tokSigShort))
	case NewSig:
		b.WriteString(s.SignaturePrefix)
		b.WriteString(s.token(tokNewSig, tokNewSigShort))
		b.WriteByte('.')
		b.WriteString(s.formatTime(e.Start))
		if !s.Short {
			b.WriteString(".to")
		}
		b.WriteByte('.')
		b.WriteString(s.formatTime(e.End))
		b.WriteByte('.')
		b.WriteString(s.token(tokSig, tokSigShort))
	}

	s.writeSuffixes(&b, e)
	return b.String(), nil
}

// token picks the dialect's spelling of a grammar token.
func (s Scheme) token(long, short string) string {
	if s.Short {
		return short
	}
	return long
}

// writeTypePrefix writes the archive or manifest prefix for Full/Inc
// entries.
func (s Scheme) writeTypePrefix(b *strings.Builder, e Entry) {
	if e.Manifest {
		b.WriteString(s.ManifestPrefix)
	} else {
		b.WriteString(s.ArchivePrefix)
	}
}

// writeBody writes the volume or manifest portion of a Full/Inc name.
func (s Scheme) writeBody(b *strings.Builder, e Entry) {
	if e.Manifest {
		b.WriteByte('.')
		b.WriteString(s.token(tokManifest, tokManifestShort))
		return
	}
	b.WriteByte('.')
	if s.Short {
		b.WriteString(formatBase36(int64(e.Volume)))
	} else {
		b.WriteString("vol")
		b.WriteString(strconv.Itoa(e.Volume))
	}
	b.WriteByte('.')
	b.WriteString(s.token(tokArchive, tokArchiveShort))
}

// writeSuffixes appends the flag suffixes in their fixed order:
// compression, then encryption, then partial. The fixed order keeps the
// grammar unambiguous without order-independent parsing.
func (s Scheme) writeSuffixes(b *strings.Builder, e Entry) {
	if e.Compressed {
		b.WriteByte('.')
		b.WriteString(s.token(sufCompressed, sufCompressedShort))
	}
	if e.Encrypted {
		b.WriteByte('.')
		b.WriteString(s.token(sufEncrypted, sufEncryptedShort))
	}
	if e.Partial {
		b.WriteByte('.')
		b.WriteString(s.token(sufPartial, sufPartialShort))
	}
}
