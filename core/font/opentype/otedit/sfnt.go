package otedit

import (
	"math/bits"
	"sort"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
)

// Serialize writes a font back to SFNT binary form, with tables exchanged or
// dropped according to replace: a non-nil entry substitutes the table data, a
// nil entry removes the table. Tables not mentioned are carried over from the
// parsed font unchanged.
//
// Any change invalidates a digital signature, so a DSIG table is dropped
// whenever replace is non-empty.
func Serialize(otf *ot.Font, replace map[ot.Tag][]byte) ([]byte, error) {
	if otf == nil {
		return nil, core.Error(core.EINVALID, "no font to serialize")
	}
	tables := make(map[ot.Tag][]byte)
	for _, tag := range otf.TableTags() {
		if t := otf.Table(tag); t != nil {
			tables[tag] = t.Binary()
		}
	}
	if len(replace) > 0 {
		if _, ok := tables[ot.T("DSIG")]; ok {
			tracer().Infof("dropping DSIG table, signature is void after editing")
			delete(tables, ot.T("DSIG"))
		}
	}
	for tag, data := range replace {
		if data == nil {
			delete(tables, tag)
			continue
		}
		tables[tag] = data
	}
	return writeFont(tables)
}

// ttTableOrder is the physical table ordering recommended by the OpenType
// specification for TrueType outlines. Higher rank comes first in the file;
// unranked tables follow in tag order. The table directory itself is always
// sorted by tag, independent of the physical order.
var ttTableOrder = map[ot.Tag]int{
	ot.T("head"): 20,
	ot.T("hhea"): 19,
	ot.T("maxp"): 18,
	ot.T("OS/2"): 17,
	ot.T("hmtx"): 16,
	ot.T("LTSH"): 15,
	ot.T("VDMX"): 14,
	ot.T("hdmx"): 13,
	ot.T("cmap"): 12,
	ot.T("fpgm"): 11,
	ot.T("prep"): 10,
	ot.T("cvt "): 9,
	ot.T("loca"): 8,
	ot.T("glyf"): 7,
	ot.T("kern"): 6,
	ot.T("name"): 5,
	ot.T("post"): 4,
	ot.T("gasp"): 3,
	ot.T("PCLT"): 2,
	ot.T("DSIG"): 1,
}

// writeFont assembles an SFNT file from a set of tables. Table data is
// aligned on four-byte boundaries and padded with zeros; the check sum
// adjustment in the head table is recalculated.
func writeFont(tables map[ot.Tag][]byte) ([]byte, error) {
	if len(tables) == 0 {
		return nil, core.Error(core.EINVALID, "no tables to write")
	}
	n := len(tables)
	physical := make([]ot.Tag, 0, n)
	for tag := range tables {
		physical = append(physical, tag)
	}
	sort.Slice(physical, func(i, j int) bool {
		ri, rj := ttTableOrder[physical[i]], ttTableOrder[physical[j]]
		if ri != rj {
			return ri > rj
		}
		return physical[i] < physical[j]
	})

	scalerType := uint32(0x00010000)
	if _, ok := tables[ot.T("CFF ")]; ok {
		scalerType = 0x4F54544F // 'OTTO'
	}

	type record struct {
		tag      ot.Tag
		offset   uint32
		length   uint32
		checksum uint32
	}
	records := make(map[ot.Tag]*record, n)
	offset := uint32(12 + 16*n)
	var body []byte
	for _, tag := range physical {
		data := tables[tag]
		if tag == ot.T("head") {
			if len(data) < 54 {
				return nil, core.Error(core.EINVALID, "head table too short")
			}
			head := append([]byte{}, data...)
			putU32(head, 8, 0) // checkSumAdjustment enters the sum as zero
			data = head
			tables[tag] = head
		}
		records[tag] = &record{
			tag:      tag,
			offset:   offset,
			length:   uint32(len(data)),
			checksum: sfntChecksum(data),
		}
		body = append(body, data...)
		body = align4(body)
		offset = uint32(12+16*n) + uint32(len(body))
	}

	sel := bits.Len(uint(n)) - 1
	b := make([]byte, 12)
	putU32(b, 0, scalerType)
	putU16(b, 4, uint16(n))
	putU16(b, 6, uint16(16<<sel)) // searchRange
	putU16(b, 8, uint16(sel))
	putU16(b, 10, uint16(16*n-16<<sel)) // rangeShift

	directory := make([]ot.Tag, 0, n)
	for tag := range tables {
		directory = append(directory, tag)
	}
	sort.Slice(directory, func(i, j int) bool { return directory[i] < directory[j] })
	for _, tag := range directory {
		rec := records[tag]
		entry := make([]byte, 16)
		putTag(entry, 0, tag)
		putU32(entry, 4, rec.checksum)
		putU32(entry, 8, rec.offset)
		putU32(entry, 12, rec.length)
		b = append(b, entry...)
	}
	b = append(b, body...)

	if rec, ok := records[ot.T("head")]; ok {
		adjustment := 0xB1B0AFBA - sfntChecksum(b)
		putU32(b, int(rec.offset)+8, adjustment)
	}
	return b, nil
}

// sfntChecksum sums the data as big-endian 32-bit words, with the tail
// padded by zeros.
func sfntChecksum(b []byte) uint32 {
	var sum uint32
	n := len(b) &^ 3
	for i := 0; i < n; i += 4 {
		sum += rdU32(b, i)
	}
	if rem := len(b) - n; rem > 0 {
		var last [4]byte
		copy(last[:], b[n:])
		sum += rdU32(last[:], 0)
	}
	return sum
}
