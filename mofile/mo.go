// Package mofile encodes catalogs into the GNU gettext binary (.mo) format.
//
// The layout follows the published format: a 28 byte little-endian
// header, the original and translation string tables, a hashpjw hash
// table and finally the NUL-terminated strings themselves.
package mofile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"
	"github.com/minios-linux/potkit/pofile"
)

// Magic is the little-endian magic number of .mo files.
const Magic = 0x950412de

const headerSize = 28

type message struct {
	key   string
	value string
}

// Encode serializes the header and every translated, non-fuzzy,
// non-obsolete entry of f. The output only depends on the entries, so
// encoding the same catalog twice yields identical bytes.
func Encode(f *pofile.File) []byte {
	msgs := messages(f)
	n := uint32(len(msgs))
	hashSize := tableSize(len(msgs))

	origTable := uint32(headerSize)
	transTable := origTable + 8*n
	hashTable := transTable + 8*n
	strStart := hashTable + 4*hashSize

	var origs, trans, strs bytes.Buffer
	offset := strStart
	for _, m := range msgs {
		writeU32(&origs, uint32(len(m.key)), offset)
		strs.WriteString(m.key)
		strs.WriteByte(0)
		offset += uint32(len(m.key)) + 1
	}
	for _, m := range msgs {
		writeU32(&trans, uint32(len(m.value)), offset)
		strs.WriteString(m.value)
		strs.WriteByte(0)
		offset += uint32(len(m.value)) + 1
	}

	var out bytes.Buffer
	out.Grow(int(offset))
	writeU32(&out, Magic, 0, n, origTable, transTable, hashSize, hashTable)
	out.Write(origs.Bytes())
	out.Write(trans.Bytes())
	for _, slot := range buildHashTable(msgs, hashSize) {
		writeU32(&out, slot)
	}
	out.Write(strs.Bytes())
	return out.Bytes()
}

// messages collects the header and the compilable entries, sorted by key.
func messages(f *pofile.File) []message {
	var msgs []message
	header := ""
	if f.Header != nil {
		header = f.Header.MsgStr
	}
	msgs = append(msgs, message{key: "", value: header})

	for _, e := range f.Entries {
		if e.Obsolete || !e.IsTranslated() {
			continue
		}
		key := e.Key().String()
		value := e.MsgStr
		if e.MsgIDPlural != "" {
			key += "\x00" + e.MsgIDPlural
			value = joinPlural(e.MsgStrPlural)
		}
		msgs = append(msgs, message{key: key, value: value})
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].key < msgs[j].key })
	return msgs
}

func joinPlural(forms map[int]string) string {
	idx := make([]int, 0, len(forms))
	for i := range forms {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	parts := make([]string, len(idx))
	for i, k := range idx {
		parts[i] = forms[k]
	}
	return strings.Join(parts, "\x00")
}

// hashpjw is the string hash used by GNU gettext for the lookup table.
func hashpjw(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = (h << 4) + uint32(s[i])
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
			h ^= g
		}
	}
	return h
}

// tableSize returns the smallest prime >= 4n/3, and at least 3.
func tableSize(n int) uint32 {
	size := uint32(n * 4 / 3)
	if size < 3 {
		size = 3
	}
	for !isPrime(size) {
		size++
	}
	return size
}

func isPrime(n uint32) bool {
	if n < 2 {
		return false
	}
	for d := uint32(2); d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// buildHashTable places message i+1 at its double-hashing slot. Only the
// part of the key before the plural separator is hashed, matching the
// lookup performed at runtime.
func buildHashTable(msgs []message, size uint32) []uint32 {
	table := make([]uint32, size)
	for i, m := range msgs {
		key, _, _ := strings.Cut(m.key, "\x00")
		h := hashpjw(key)
		idx := h % size
		incr := 1 + h%(size-2)
		for table[idx] != 0 {
			if idx >= size-incr {
				idx -= size - incr
			} else {
				idx += incr
			}
		}
		table[idx] = uint32(i + 1)
	}
	return table
}

func writeU32(buf *bytes.Buffer, vals ...uint32) {
	var b [4]byte
	for _, v := range vals {
		binary.LittleEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
}

// Verify loads data with the gotext runtime and checks that it holds
// exactly the compiled entries of f, with the same plural ids and forms.
func Verify(data []byte, f *pofile.File) error {
	if len(data) < headerSize || binary.LittleEndian.Uint32(data) != Magic {
		return fmt.Errorf("not a little-endian .mo file")
	}
	mo := gotext.NewMo()
	mo.Parse(data)
	dom := mo.GetDomain()

	loaded := make(map[pofile.Key]*gotext.Translation)
	for id, tr := range dom.GetTranslations() {
		if id != "" {
			loaded[pofile.Key{MsgID: id}] = tr
		}
	}
	for ctx, trs := range dom.GetCtxTranslations() {
		for id, tr := range trs {
			loaded[pofile.Key{Context: ctx, MsgID: id}] = tr
		}
	}

	for k := range loaded {
		if e := f.Lookup(k); e == nil || !e.IsTranslated() {
			return fmt.Errorf("unexpected message %s", describe(k))
		}
	}
	for _, e := range f.Entries {
		if e.Obsolete || !e.IsTranslated() {
			continue
		}
		k := e.Key()
		tr, ok := loaded[k]
		if !ok {
			return fmt.Errorf("message %s is missing", describe(k))
		}
		if tr.PluralID != e.MsgIDPlural {
			return fmt.Errorf("message %s has plural %q, want %q", describe(k), tr.PluralID, e.MsgIDPlural)
		}
		value := e.MsgStr
		if e.MsgIDPlural != "" {
			value = joinPlural(e.MsgStrPlural)
		}
		want := make(map[int]string)
		for i, form := range strings.Split(value, "\x00") {
			want[i] = form
		}
		if !maps.Equal(tr.Trs, want) {
			return fmt.Errorf("message %s translates to %q, want %q", describe(k), tr.Trs, want)
		}
	}
	return nil
}

func describe(k pofile.Key) string {
	if k.Context != "" {
		return fmt.Sprintf("%q (%s)", k.MsgID, k.Context)
	}
	return fmt.Sprintf("%q", k.MsgID)
}
