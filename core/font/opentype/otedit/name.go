package otedit

import (
	"sort"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Name IDs below 256 are reserved for the predefined names of the OpenType
// specification; 256 to 32767 are free for font-specific use, which includes
// the labels of stylistic sets.
const (
	firstFreeNameID = 256
	lastFreeNameID  = 32767
)

// NameEdit is a mutable copy of a font's naming table. Records loaded from
// the font keep their original string bytes and are written back verbatim,
// whatever their encoding; only records added or changed through the edit
// are freshly encoded.
type NameEdit struct {
	recs     []editedName
	modified bool
}

type editedName struct {
	ot.NameRecord
	fresh bool // Value is authoritative, Raw is stale or empty
}

// EditName starts an edit based on the records of a parsed naming table.
// A nil table starts an empty edit.
func EditName(t *ot.NameTable) *NameEdit {
	e := &NameEdit{}
	if t == nil {
		return e
	}
	e.recs = make([]editedName, len(t.Records))
	for i, rec := range t.Records {
		e.recs[i] = editedName{NameRecord: rec}
	}
	return e
}

// Modified returns true if the edit differs from the records it was loaded
// with.
func (e *NameEdit) Modified() bool {
	return e.modified
}

// Records returns the current state of the edit.
func (e *NameEdit) Records() []ot.NameRecord {
	recs := make([]ot.NameRecord, len(e.recs))
	for i, r := range e.recs {
		recs[i] = r.NameRecord
	}
	return recs
}

// Get returns the best decodable string for a name ID, preferring the
// Windows English record.
func (e *NameEdit) Get(nameID uint16) string {
	if rec, ok := e.lookup(3, 1, 0x0409, nameID); ok {
		return rec.Value
	}
	for _, rec := range e.recs {
		if rec.NameID == nameID && rec.Value != "" {
			return rec.Value
		}
	}
	return ""
}

func (e *NameEdit) lookup(pltf, enc, lang, nameID uint16) (ot.NameRecord, bool) {
	for _, rec := range e.recs {
		if rec.PlatformID == pltf && rec.EncodingID == enc && rec.LanguageID == lang &&
			rec.NameID == nameID {
			return rec.NameRecord, true
		}
	}
	return ot.NameRecord{}, false
}

// NextFreeNameID returns the lowest unused font-specific name ID.
func (e *NameEdit) NextFreeNameID() (uint16, error) {
	used := make(map[uint16]bool, len(e.recs))
	for _, rec := range e.recs {
		used[rec.NameID] = true
	}
	for id := uint16(firstFreeNameID); id <= lastFreeNameID; id++ {
		if !used[id] {
			return id, nil
		}
	}
	return 0, core.Error(core.EINVALID, "no free name IDs left in naming table")
}

// FindLabel searches the font-specific name IDs for one whose English text
// equals text. Reusing an ID found this way keeps labels stable across
// repeated runs.
func (e *NameEdit) FindLabel(text string) (uint16, bool) {
	for _, rec := range e.recs {
		if rec.NameID >= firstFreeNameID && rec.PlatformID == 3 && rec.EncodingID == 1 &&
			rec.LanguageID == 0x0409 && rec.Value == text {
			return rec.NameID, true
		}
	}
	return 0, false
}

// SetName sets the strings for a name ID, overwriting existing entries.
// Names are written twice, as a Windows English record (3,1,0x409) in
// UTF-16 and a Macintosh Roman record (1,0,0), the combination expected by
// applications which display stylistic-set labels.
func (e *NameEdit) SetName(nameID uint16, text string) {
	e.set(3, 1, 0x0409, nameID, text)
	e.set(1, 0, 0, nameID, text)
	e.modified = true
}

func (e *NameEdit) set(pltf, enc, lang, nameID uint16, text string) {
	for i := range e.recs {
		rec := &e.recs[i]
		if rec.PlatformID == pltf && rec.EncodingID == enc && rec.LanguageID == lang &&
			rec.NameID == nameID {
			rec.Value = text
			rec.Raw = nil
			rec.fresh = true
			return
		}
	}
	e.recs = append(e.recs, editedName{
		NameRecord: ot.NameRecord{
			PlatformID: pltf,
			EncodingID: enc,
			LanguageID: lang,
			NameID:     nameID,
			Value:      text,
		},
		fresh: true,
	})
}

// Encode writes the edit as a version 0 naming table. Records are sorted by
// (platform, encoding, language, name ID) as the format requires, and equal
// strings share their bytes in the string storage. Records carrying a
// language-tag reference (language IDs 0x8000 and up, version 1 tables)
// cannot be expressed in version 0 and are dropped with a notice.
func (e *NameEdit) Encode() ([]byte, error) {
	type outRecord struct {
		pltf, enc, lang, nameID uint16
		str                     []byte
	}
	var out []outRecord
	for _, rec := range e.recs {
		if rec.LanguageID >= 0x8000 {
			tracer().Infof("dropping name record with language-tag reference (name ID %d)", rec.NameID)
			continue
		}
		str := rec.Raw
		if rec.fresh {
			str = encodeNameString(rec.PlatformID, rec.EncodingID, rec.Value)
		}
		if len(str) > 0xffff {
			return nil, core.Error(core.EINVALID, "name string too long for name ID %d", rec.NameID)
		}
		out = append(out, outRecord{
			pltf:   rec.PlatformID,
			enc:    rec.EncodingID,
			lang:   rec.LanguageID,
			nameID: rec.NameID,
			str:    str,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.pltf != b.pltf {
			return a.pltf < b.pltf
		}
		if a.enc != b.enc {
			return a.enc < b.enc
		}
		if a.lang != b.lang {
			return a.lang < b.lang
		}
		return a.nameID < b.nameID
	})

	var storage []byte
	offsets := make(map[string]int)
	storageOffsetOf := func(str []byte) int {
		if off, ok := offsets[string(str)]; ok {
			return off
		}
		off := len(storage)
		offsets[string(str)] = off
		storage = append(storage, str...)
		return off
	}

	n := len(out)
	storageStart := 6 + 12*n
	if storageStart > 0xffff {
		return nil, core.Error(core.EINVALID, "too many records for naming table")
	}
	b := make([]byte, storageStart)
	putU16(b, 0, 0) // version
	putU16(b, 2, uint16(n))
	putU16(b, 4, uint16(storageStart))
	for i, rec := range out {
		off := storageOffsetOf(rec.str)
		if off+len(rec.str) > 0xffff {
			return nil, core.Error(core.EINVALID, "string storage of naming table overflows")
		}
		base := 6 + 12*i
		putU16(b, base, rec.pltf)
		putU16(b, base+2, rec.enc)
		putU16(b, base+4, rec.lang)
		putU16(b, base+6, rec.nameID)
		putU16(b, base+8, uint16(len(rec.str)))
		putU16(b, base+10, uint16(off))
	}
	return append(b, storage...), nil
}

// encodeNameString is the inverse of the decoding done at parse time:
// UTF-16BE for the Unicode and Windows platforms, Mac OS Roman for
// Macintosh records. Characters without a Mac Roman equivalent become '?'.
func encodeNameString(pltf, enc uint16, s string) []byte {
	switch pltf {
	case 1:
		encoder := encoding.ReplaceUnsupported(charmap.Macintosh.NewEncoder())
		if b, err := encoder.Bytes([]byte(s)); err == nil {
			return b
		}
		return []byte{}
	default:
		encoder := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
		if b, err := encoder.Bytes([]byte(s)); err == nil {
			return b
		}
		return []byte{}
	}
}
