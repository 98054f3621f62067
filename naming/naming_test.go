package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// genEntries produces a deterministic spread of valid entries covering all
// set types, timestamp magnitudes, volume numbers, and flag combinations.
func genEntries() []Entry {
	times := []int64{0, 1, 1313, 872338, 1029826800, 1204684368, 1 << 34}
	volumes := []int{1, 2, 36, 100, 4096}
	flagCombos := []Entry{
		{},
		{Compressed: true},
		{Encrypted: true},
		{Partial: true},
		{Compressed: true, Encrypted: true},
		{Compressed: true, Partial: true},
		{Encrypted: true, Partial: true},
		{Compressed: true, Encrypted: true, Partial: true},
	}

	var entries []Entry
	add := func(e Entry) {
		for _, fl := range flagCombos {
			e.Compressed = fl.Compressed
			e.Encrypted = fl.Encrypted
			e.Partial = fl.Partial
			entries = append(entries, e)
		}
	}

	for i, tm := range times {
		for _, vol := range volumes {
			add(Entry{Type: Full, Time: tm, Volume: vol})
		}
		add(Entry{Type: Full, Time: tm, Manifest: true})
		add(Entry{Type: FullSig, Time: tm})

		if i+1 < len(times) {
			start, end := tm, times[i+1]
			for _, vol := range volumes {
				add(Entry{Type: Inc, Start: start, End: end, Volume: vol})
			}
			add(Entry{Type: Inc, Start: start, End: end, Manifest: true})
			add(Entry{Type: NewSig, Start: start, End: end})
		}
	}
	return entries
}

func testSchemes() map[string]Scheme {
	return map[string]Scheme{
		"long":           {},
		"short":          {Short: true},
		"long prefixed":  {Prefix: "global-", ArchivePrefix: "arch-", ManifestPrefix: "meta-", SignaturePrefix: "sig-"},
		"short prefixed": {Short: true, Prefix: "global-", ArchivePrefix: "arch-", ManifestPrefix: "meta-", SignaturePrefix: "sig-"},
	}
}

func TestRoundTrip(t *testing.T) {
	for name, scheme := range testSchemes() {
		t.Run(name, func(t *testing.T) {
			for _, e := range genEntries() {
				encoded, err := scheme.Encode(e)
				require.NoError(t, err, "entry %+v", e)

				got, ok := scheme.Parse(encoded)
				require.True(t, ok, "parse of %q (entry %+v)", encoded, e)
				assert.Equal(t, e, got, "round-trip via %q", encoded)
			}
		})
	}
}

func TestInjectivity(t *testing.T) {
	for name, scheme := range testSchemes() {
		t.Run(name, func(t *testing.T) {
			seen := make(map[string]Entry)
			for _, e := range genEntries() {
				encoded, err := scheme.Encode(e)
				require.NoError(t, err)
				if prev, dup := seen[encoded]; dup {
					t.Fatalf("entries %+v and %+v both encode to %q", prev, e, encoded)
				}
				seen[encoded] = e
			}
		})
	}
}

func TestParseForeign(t *testing.T) {
	foreign := []string{
		"",
		".",
		"...",
		"README.md",
		"drift-full",
		"drift-full.",
		"drift-full.notatime.vol1.difftar",
		"drift-full.20020820T070000Z",                     // no volume part
		"drift-full.20020820T070000Z.vol0.difftar",        // volumes are 1-based
		"drift-full.20020820T070000Z.vol-1.difftar",
		"drift-full.20020820T070000Z.volx.difftar",
		"drift-full.20020820T070000Z.vol1.tar",            // wrong archive token
		"drift-full.20020820T070000Z.vol1.difftar.zst",    // unknown suffix
		"drift-full.20020820T070000Z.vol1.difftar.gpg.gz", // suffixes out of order
		"drift-full.20020820T070000Z.vol1.difftar.gz.gz",
		"drift-full.20021341T990000Z.vol1.difftar",        // impossible date
		"drift-inc.20020820T070000Z.20020821T070000Z.vol1.difftar", // missing .to.
		"drift-new-signatures.20020820T070000Z.sigtar",             // missing end time
		"drift-full-signatures..sigtar",
		"backup-full.20020820T070000Z.vol1.difftar",    // someone else's tool
		"drift-full.20020820T070000Z.manifest.part.gz", // partial before gz
		"\x00\xff\xfe",
		"drift-full.\x00.vol1.difftar",
	}
	long := Scheme{}
	short := Scheme{Short: true}
	for _, in := range foreign {
		_, ok := long.Parse(in)
		assert.False(t, ok, "long parse accepted %q", in)
		_, ok = short.Parse(in)
		assert.False(t, ok, "short parse accepted %q", in)
	}
}

func TestParseIgnoresWrongDialect(t *testing.T) {
	// The caller fixes the dialect; a short scheme must not decode verbose
	// names and vice versa.
	long := Scheme{}
	short := Scheme{Short: true}

	e := Entry{Type: Full, Time: 1029826800, Volume: 1}
	verbose, err := long.Encode(e)
	require.NoError(t, err)
	compact, err := short.Encode(e)
	require.NoError(t, err)

	_, ok := short.Parse(verbose)
	assert.False(t, ok)
	_, ok = long.Parse(compact)
	assert.False(t, ok)
}

func TestEncodeScenario(t *testing.T) {
	// Fixed example from the grammar documentation: full set at
	// 2002-08-20T07:00:00Z, compressed and encrypted, with a global and an
	// archive prefix.
	scheme := Scheme{Prefix: "global-", ArchivePrefix: "arch-"}
	e := Entry{Type: Full, Time: 1029826800, Volume: 1, Compressed: true, Encrypted: true}

	name, err := scheme.Encode(e)
	require.NoError(t, err)
	assert.Equal(t, "global-arch-drift-full.20020820T070000Z.vol1.difftar.gz.gpg", name)

	got, ok := scheme.Parse(name)
	require.True(t, ok)
	assert.Equal(t, e, got)
}

func TestEncodeExamples(t *testing.T) {
	long := Scheme{}
	short := Scheme{Short: true}

	tests := []struct {
		entry     Entry
		wantLong  string
		wantShort string
	}{
		{
			Entry{Type: Full, Time: 1029826800, Volume: 2},
			"drift-full.20020820T070000Z.vol2.difftar",
			"df.h14rg0.2.dt",
		},
		{
			Entry{Type: Full, Time: 1029826800, Manifest: true, Partial: true},
			"drift-full.20020820T070000Z.manifest.part",
			"df.h14rg0.m.p",
		},
		{
			Entry{Type: Inc, Start: 1029826800, End: 1029913200, Volume: 1, Compressed: true},
			"drift-inc.20020820T070000Z.to.20020821T070000Z.vol1.difftar.gz",
			"di.h14rg0.h16m40.1.dt.z",
		},
		{
			Entry{Type: FullSig, Time: 1029826800, Encrypted: true},
			"drift-full-signatures.20020820T070000Z.sigtar.gpg",
			"dfs.h14rg0.st.g",
		},
		{
			Entry{Type: NewSig, Start: 1029826800, End: 1029913200},
			"drift-new-signatures.20020820T070000Z.to.20020821T070000Z.sigtar",
			"dns.h14rg0.h16m40.st",
		},
	}
	for _, tt := range tests {
		t.Run(tt.entry.Type.String(), func(t *testing.T) {
			gotLong, err := long.Encode(tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLong, gotLong)

			gotShort, err := short.Encode(tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.wantShort, gotShort)
		})
	}
}

func TestEncodeInvalid(t *testing.T) {
	scheme := Scheme{}
	invalid := []Entry{
		{},                                  // no type
		{Type: Full, Time: 1},               // neither volume nor manifest
		{Type: Full, Time: 1, Volume: 1, Manifest: true},
		{Type: Full, Time: -5, Volume: 1},   // pre-epoch
		{Type: Full, Time: maxTime + 1, Volume: 1},
		{Type: Full, Start: 1, Volume: 1},   // range fields on a point type
		{Type: Inc, Start: 1, End: 2},       // neither volume nor manifest
		{Type: Inc, Time: 1, Start: 1, End: 2, Volume: 1},
		{Type: FullSig, Time: 1, Volume: 1}, // signatures have no volumes
		{Type: NewSig, Start: 1, End: 2, Manifest: true},
		{Type: SetType(99), Time: 1, Volume: 1},
	}
	for _, e := range invalid {
		_, err := scheme.Encode(e)
		assert.ErrorIs(t, err, ErrInvalidEntry, "entry %+v", e)
	}
}
