package ot

import "golang.org/x/text/encoding/charmap"

// NameTable is the naming table of an OpenType font. It holds strings like the
// font family, copyright notice, sample text, and the user interface labels which
// features of type `ssNN` may point to (name IDs 256 and up).
//
// Navigation code usually accesses single names through the table's NavMap (see
// NavigatorFactory). NameTable additionally exposes the complete record list,
// which clients need when they rewrite the table: records in encodings we cannot
// decode must survive a rewrite byte for byte.
//
// See https://docs.microsoft.com/en-us/typography/opentype/spec/name
type NameTable struct {
	tableBase
	Records []NameRecord
}

func newNameTable(tag Tag, b binarySegm, offset, size uint32) *NameTable {
	t := &NameTable{}
	base := tableBase{
		data:   b,
		name:   tag,
		offset: offset,
		length: size,
	}
	t.tableBase = base
	t.self = t
	return t
}

// NameRecord is a single entry of the naming table. Value holds the decoded
// string for Unicode, Windows (UTF-16) and Macintosh Roman records, and is empty
// for encodings we do not decode. Raw always holds the undecoded string bytes.
type NameRecord struct {
	PlatformID uint16
	EncodingID uint16
	LanguageID uint16
	NameID     uint16
	Value      string
	Raw        []byte
}

// Lookup returns the record for an exact (platform, encoding, language, name ID)
// combination.
func (t *NameTable) Lookup(pltf, enc, lang, nameID uint16) (NameRecord, bool) {
	for _, rec := range t.Records {
		if rec.PlatformID == pltf && rec.EncodingID == enc && rec.LanguageID == lang &&
			rec.NameID == nameID {
			return rec, true
		}
	}
	return NameRecord{}, false
}

// Get returns a best-effort string for a name ID, preferring the Windows English
// record, then Unicode, then Macintosh. It returns "" if the font has no
// decodable entry for this name ID.
func (t *NameTable) Get(nameID uint16) string {
	if rec, ok := t.Lookup(3, 1, 0x0409, nameID); ok {
		return rec.Value
	}
	var mac, uni string
	var hasMac, hasUni bool
	for _, rec := range t.Records {
		if rec.NameID != nameID {
			continue
		}
		switch rec.PlatformID {
		case 0:
			if !hasUni {
				uni, hasUni = rec.Value, true
			}
		case 1:
			if rec.EncodingID == 0 && !hasMac {
				mac, hasMac = rec.Value, true
			}
		case 3:
			if rec.EncodingID == 1 || rec.EncodingID == 10 {
				return rec.Value
			}
		}
	}
	if hasUni {
		return uni
	}
	if hasMac {
		return mac
	}
	return ""
}

// NameIDs returns the set of name IDs occurring in the table, in record order
// without duplicates.
func (t *NameTable) NameIDs() []uint16 {
	seen := make(map[uint16]bool, len(t.Records))
	var ids []uint16
	for _, rec := range t.Records {
		if !seen[rec.NameID] {
			seen[rec.NameID] = true
			ids = append(ids, rec.NameID)
		}
	}
	return ids
}

// AsName returns this table as a naming table, or nil.
func (tself TableSelf) AsName() *NameTable {
	if k, ok := safeSelf(tself).(*NameTable); ok {
		return k
	}
	return nil
}

// Naming table layout, version 0 and 1:
//
//	uint16 | version       | 0 or 1
//	uint16 | count         | number of name records
//	uint16 | storageOffset | offset to the string storage, from table start
//	       | nameRecord[count]
//
// Version 1 inserts language-tag records between the name records and the
// storage area; we have no use for them and leave them alone.
func parseName(tag Tag, b binarySegm, offset, size uint32) (Table, error) {
	if size < 6 {
		return nil, errFontFormat("size of name table")
	}
	t := newNameTable(tag, b, offset, size)
	n := int(b.U16(2))
	storage := int(b.U16(4))
	if b.Size() < 6+12*n || storage > b.Size() {
		return nil, errFontFormat("name table exceeds size")
	}
	t.Records = make([]NameRecord, 0, n)
	for i := 0; i < n; i++ {
		rec, err := b.view(6+12*i, 12)
		if err != nil {
			return nil, errFontFormat("name record exceeds table size")
		}
		strlen := int(u16(rec[8:]))
		stroff := int(u16(rec[10:]))
		raw := binarySegm{}
		if strlen > 0 {
			raw, err = b.view(storage+stroff, strlen)
			if err != nil {
				tracer().Infof("name record #%d points outside of string storage, skipped", i)
				continue
			}
		}
		nrec := NameRecord{
			PlatformID: u16(rec),
			EncodingID: u16(rec[2:]),
			LanguageID: u16(rec[4:]),
			NameID:     u16(rec[6:]),
			Raw:        raw,
		}
		nrec.Value = decodeNameString(nrec.PlatformID, nrec.EncodingID, nrec.Raw)
		t.Records = append(t.Records, nrec)
	}
	return t, nil
}

// decodeNameString decodes the string bytes of a name record. Unicode and
// Windows records use UTF-16BE, Macintosh Roman records use the Mac OS Roman
// character set. For other encodings "" is returned and clients have to fall
// back to the raw bytes.
func decodeNameString(pltf, enc uint16, raw []byte) string {
	switch pltf {
	case 0: // Unicode
		if s, err := decodeUtf16(raw); err == nil {
			return s
		}
	case 1: // Macintosh
		if enc == 0 {
			if s, err := charmap.Macintosh.NewDecoder().Bytes(raw); err == nil {
				return string(s)
			}
		}
	case 3: // Windows
		if enc == 0 || enc == 1 || enc == 10 {
			if s, err := decodeUtf16(raw); err == nil {
				return s
			}
		}
	}
	return ""
}
