// Package pofile implements reading and writing of PO/POT catalogs
// following the GNU gettext PO file format.
package pofile

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Entry represents a single translatable message in a catalog.
type Entry struct {
	// TranslatorComments are lines starting with "# " (translator comments).
	TranslatorComments []string
	// ExtractedComments are lines starting with "#." (extracted/automatic comments).
	ExtractedComments []string
	// References are source code locations, lines starting with "#:".
	References []string
	// Flags are format flags, lines starting with "#,".
	Flags []string
	// PreviousMsgID stores the previous msgid for fuzzy entries, lines starting with "#|".
	PreviousMsgID string

	// MsgCtxt is the message context (msgctxt).
	MsgCtxt string
	// MsgID is the untranslated string.
	MsgID string
	// MsgIDPlural is the untranslated plural string.
	MsgIDPlural string
	// MsgStr is the translated string (singular or the only form).
	MsgStr string
	// MsgStrPlural maps plural form index to translated string.
	MsgStrPlural map[int]string

	// Obsolete marks entries prefixed with "#~".
	Obsolete bool
}

// Key identifies an entry within a catalog. Two entries with the same
// message id but different contexts are distinct messages.
type Key struct {
	Context string
	MsgID   string
}

func (k Key) String() string {
	if k.Context == "" {
		return k.MsgID
	}
	return k.Context + "\x04" + k.MsgID
}

// Key returns the catalog key of the entry.
func (e *Entry) Key() Key {
	return Key{Context: e.MsgCtxt, MsgID: e.MsgID}
}

// IsTranslated returns true if the entry has a non-empty translation.
func (e *Entry) IsTranslated() bool {
	if e.MsgID == "" {
		return false // header entry
	}
	return !e.IsFuzzy() && e.hasTranslation()
}

// hasTranslation reports whether every form of the translation is
// non-empty, regardless of flags.
func (e *Entry) hasTranslation() bool {
	if e.MsgIDPlural != "" {
		for _, v := range e.MsgStrPlural {
			if v == "" {
				return false
			}
		}
		return len(e.MsgStrPlural) > 0
	}
	return e.MsgStr != ""
}

// IsTemplate reports whether the entry is in template form: no
// translation in any form and no fuzzy flag.
func (e *Entry) IsTemplate() bool {
	if e.MsgStr != "" || e.IsFuzzy() {
		return false
	}
	for _, v := range e.MsgStrPlural {
		if v != "" {
			return false
		}
	}
	return true
}

// IsFuzzy returns true if the entry is marked fuzzy.
func (e *Entry) IsFuzzy() bool {
	return e.HasFlag("fuzzy")
}

// HasFlag checks if a specific flag is present.
func (e *Entry) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// File represents a parsed PO/POT catalog.
type File struct {
	// Header is the metadata entry (msgid "").
	Header *Entry
	// Entries are the translatable message entries.
	Entries []*Entry
}

// NewFile creates a new empty catalog.
func NewFile() *File {
	return &File{
		Header:  &Entry{},
		Entries: make([]*Entry, 0),
	}
}

// HeaderField returns a header field value by name.
func (f *File) HeaderField(name string) string {
	v, _ := f.LookupHeaderField(name)
	return v
}

// LookupHeaderField returns a header field value and whether the field
// is declared at all. A declared field may carry an empty value.
func (f *File) LookupHeaderField(name string) (string, bool) {
	if f.Header == nil {
		return "", false
	}
	for _, line := range strings.Split(f.Header.MsgStr, "\n") {
		if idx := strings.Index(line, ":"); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			if strings.EqualFold(key, name) {
				return strings.TrimSpace(line[idx+1:]), true
			}
		}
	}
	return "", false
}

// SetHeaderField sets name to value. An existing field of the same name
// is replaced in place, otherwise the field is appended. Blank lines and
// repeated declarations of name are dropped.
func (f *File) SetHeaderField(name, value string) {
	if f.Header == nil {
		f.Header = &Entry{}
	}

	field := name + ": " + value
	var fields []string
	replaced := false
	for _, line := range strings.Split(f.Header.MsgStr, "\n") {
		if line == "" {
			continue
		}
		if key, _, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(key), name) {
			if replaced {
				continue
			}
			line, replaced = field, true
		}
		fields = append(fields, line)
	}
	if !replaced {
		fields = append(fields, field)
	}
	f.Header.MsgStr = strings.Join(fields, "\n") + "\n"
}

// Locale returns the language tag the catalog targets.
func (f *File) Locale() string {
	return f.HeaderField("Language")
}

// Lookup finds a live entry by key.
func (f *File) Lookup(k Key) *Entry {
	for _, e := range f.Entries {
		if !e.Obsolete && e.Key() == k {
			return e
		}
	}
	return nil
}

// Keys returns the keys of all live entries.
func (f *File) Keys() []Key {
	keys := make([]Key, 0, len(f.Entries))
	for _, e := range f.Entries {
		if e.MsgID == "" || e.Obsolete {
			continue
		}
		keys = append(keys, e.Key())
	}
	return keys
}

// Stats returns translation statistics. Fuzzy entries are counted in
// fuzzy and, when their translation is empty, also in untranslated.
func (f *File) Stats() (total, translated, fuzzy, untranslated int) {
	for _, e := range f.Entries {
		if e.MsgID == "" || e.Obsolete {
			continue
		}
		total++
		if e.IsFuzzy() {
			fuzzy++
		}
		switch {
		case !e.hasTranslation():
			untranslated++
		case !e.IsFuzzy():
			translated++
		}
	}
	return
}

// SyntaxError describes a violation of the catalog grammar.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func syntaxErrorf(line int, format string, args ...any) error {
	return &SyntaxError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Parse reads a PO/POT catalog from a reader.
func Parse(r io.Reader) (*File, error) {
	f := NewFile()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var current *Entry
	var lastField string // tracks the last msgid/msgstr/etc. field for multiline strings
	var hasMsgID, hasMsgStr, hasHeader bool
	startLine, lineNum := 0, 0
	seen := make(map[Key]int)

	flush := func() error {
		defer func() {
			current = nil
			lastField = ""
			hasMsgID, hasMsgStr = false, false
		}()
		if current == nil {
			return nil
		}
		if !hasMsgID {
			if hasMsgStr || current.MsgCtxt != "" || current.MsgIDPlural != "" {
				return syntaxErrorf(startLine, "entry has no msgid")
			}
			return nil // comment-only block
		}
		if !hasMsgStr {
			return syntaxErrorf(startLine, "msgid %q has no msgstr", current.MsgID)
		}
		if current.MsgIDPlural == "" && len(current.MsgStrPlural) > 0 {
			return syntaxErrorf(startLine, "msgstr[n] without msgid_plural for %q", current.MsgID)
		}
		if current.MsgID == "" && current.MsgCtxt == "" && !current.Obsolete {
			if hasHeader {
				return syntaxErrorf(startLine, "duplicate header entry")
			}
			hasHeader = true
			f.Header = current
			return nil
		}
		if !current.Obsolete {
			if prev, ok := seen[current.Key()]; ok {
				return syntaxErrorf(startLine, "duplicate message %q (first defined at line %d)", current.MsgID, prev)
			}
			seen[current.Key()] = startLine
		}
		f.Entries = append(f.Entries, current)
		return nil
	}

	quoted := func(s string) (string, error) {
		v, err := unquote(s)
		if err != nil {
			return "", syntaxErrorf(lineNum, "%v", err)
		}
		return v, nil
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")

		// Empty line separates entries
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}

		body := line
		obsolete := strings.HasPrefix(line, "#~")
		if obsolete {
			body = strings.TrimPrefix(strings.TrimPrefix(line, "#~"), " ")
		}

		// A new keyword after a msgstr starts a new entry even without a blank line.
		if current != nil && hasMsgStr && startsEntry(body) {
			if err := flush(); err != nil {
				return nil, err
			}
		}

		if current == nil {
			current = &Entry{
				MsgStrPlural: make(map[int]string),
			}
			startLine = lineNum
		}

		// Handle obsolete entries; their comments are not kept.
		if obsolete {
			current.Obsolete = true
			if !strings.HasPrefix(body, "msg") && !strings.HasPrefix(body, "\"") {
				continue
			}
			line = body
		}

		// Comment lines
		if strings.HasPrefix(line, "#") {
			if strings.HasPrefix(line, "#:") {
				// Reference
				refs := strings.TrimSpace(line[2:])
				current.References = append(current.References, refs)
			} else if strings.HasPrefix(line, "#,") {
				// Flags
				flagStr := strings.TrimSpace(line[2:])
				for _, flag := range strings.Split(flagStr, ",") {
					flag = strings.TrimSpace(flag)
					if flag != "" {
						current.Flags = append(current.Flags, flag)
					}
				}
			} else if strings.HasPrefix(line, "#.") {
				// Extracted comment
				current.ExtractedComments = append(current.ExtractedComments, strings.TrimSpace(line[2:]))
			} else if strings.HasPrefix(line, "#|") {
				// Previous msgid
				prev := strings.TrimSpace(line[2:])
				if strings.HasPrefix(prev, "msgid ") {
					v, err := quoted(strings.TrimPrefix(prev, "msgid "))
					if err != nil {
						return nil, err
					}
					current.PreviousMsgID = v
				}
			} else {
				// Translator comment
				comment := line[1:]
				if strings.HasPrefix(comment, " ") {
					comment = comment[1:]
				}
				current.TranslatorComments = append(current.TranslatorComments, comment)
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "msgctxt "):
			v, err := quoted(strings.TrimPrefix(line, "msgctxt "))
			if err != nil {
				return nil, err
			}
			current.MsgCtxt = v
			lastField = "msgctxt"

		case strings.HasPrefix(line, "msgid_plural "):
			v, err := quoted(strings.TrimPrefix(line, "msgid_plural "))
			if err != nil {
				return nil, err
			}
			current.MsgIDPlural = v
			lastField = "msgid_plural"

		case strings.HasPrefix(line, "msgid "):
			if hasMsgID {
				return nil, syntaxErrorf(lineNum, "duplicate msgid in one entry")
			}
			v, err := quoted(strings.TrimPrefix(line, "msgid "))
			if err != nil {
				return nil, err
			}
			current.MsgID = v
			hasMsgID = true
			lastField = "msgid"

		case strings.HasPrefix(line, "msgstr["):
			var idx int
			n, err := fmt.Sscanf(line, "msgstr[%d]", &idx)
			if err != nil || n != 1 || idx < 0 {
				return nil, syntaxErrorf(lineNum, "invalid msgstr index: %s", line)
			}
			// Find the quoted string after "] "
			bracketEnd := strings.Index(line, "] ")
			if bracketEnd < 0 {
				return nil, syntaxErrorf(lineNum, "invalid msgstr format: %s", line)
			}
			v, err := quoted(line[bracketEnd+2:])
			if err != nil {
				return nil, err
			}
			current.MsgStrPlural[idx] = v
			hasMsgStr = true
			lastField = fmt.Sprintf("msgstr[%d]", idx)

		case strings.HasPrefix(line, "msgstr "):
			v, err := quoted(strings.TrimPrefix(line, "msgstr "))
			if err != nil {
				return nil, err
			}
			current.MsgStr = v
			hasMsgStr = true
			lastField = "msgstr"

		case strings.HasPrefix(strings.TrimSpace(line), "\""):
			// Continuation line
			val, err := quoted(line)
			if err != nil {
				return nil, err
			}
			switch {
			case lastField == "msgctxt":
				current.MsgCtxt += val
			case lastField == "msgid":
				current.MsgID += val
			case lastField == "msgid_plural":
				current.MsgIDPlural += val
			case lastField == "msgstr":
				current.MsgStr += val
			case strings.HasPrefix(lastField, "msgstr["):
				var idx int
				fmt.Sscanf(lastField, "msgstr[%d]", &idx)
				current.MsgStrPlural[idx] += val
			default:
				return nil, syntaxErrorf(lineNum, "string continuation without a keyword")
			}

		default:
			return nil, syntaxErrorf(lineNum, "unexpected line: %s", line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading PO file: %w", err)
	}

	// Flush last entry
	if err := flush(); err != nil {
		return nil, err
	}

	return f, nil
}

// startsEntry reports whether a line begins a fresh entry block.
func startsEntry(line string) bool {
	if strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "#~") {
		return true
	}
	return strings.HasPrefix(line, "msgctxt ") ||
		(strings.HasPrefix(line, "msgid ") && !strings.HasPrefix(line, "msgid_plural"))
}

// ParseFile reads a PO/POT catalog from fs.
func ParseFile(fs afero.Fs, path string) (*File, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Write writes the catalog to a writer.
func (f *File) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	// Write header
	if f.Header != nil {
		writeEntry(bw, f.Header)
	}

	// Write entries
	for _, e := range f.Entries {
		fmt.Fprintln(bw)
		writeEntry(bw, e)
	}

	return bw.Flush()
}

func writeEntry(w *bufio.Writer, e *Entry) {
	prefix := ""
	if e.Obsolete {
		prefix = "#~ "
	}

	// Translator comments
	for _, c := range e.TranslatorComments {
		fmt.Fprintf(w, "# %s\n", c)
	}

	// Extracted comments
	for _, c := range e.ExtractedComments {
		fmt.Fprintf(w, "#. %s\n", c)
	}

	// References
	for _, ref := range e.References {
		fmt.Fprintf(w, "#: %s\n", ref)
	}

	// Flags
	if len(e.Flags) > 0 {
		fmt.Fprintf(w, "#, %s\n", strings.Join(e.Flags, ", "))
	}

	// Previous msgid
	if e.PreviousMsgID != "" {
		fmt.Fprintf(w, "#| msgid %s\n", quote(e.PreviousMsgID))
	}

	if e.MsgCtxt != "" {
		writeQuotedField(w, prefix+"msgctxt", e.MsgCtxt)
	}

	writeQuotedField(w, prefix+"msgid", e.MsgID)

	if e.MsgIDPlural != "" {
		writeQuotedField(w, prefix+"msgid_plural", e.MsgIDPlural)
	}

	// msgstr / msgstr[N]
	if e.MsgIDPlural != "" && len(e.MsgStrPlural) > 0 {
		indices := make([]int, 0, len(e.MsgStrPlural))
		for idx := range e.MsgStrPlural {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			writeQuotedField(w, fmt.Sprintf("%smsgstr[%d]", prefix, idx), e.MsgStrPlural[idx])
		}
	} else {
		writeQuotedField(w, prefix+"msgstr", e.MsgStr)
	}
}

// writeQuotedField writes a PO field with proper multiline quoting.
func writeQuotedField(w *bufio.Writer, field, value string) {
	if !strings.Contains(value, "\n") || value == "\n" {
		fmt.Fprintf(w, "%s %s\n", field, quote(value))
		return
	}

	// Multiline: use empty string on first line
	fmt.Fprintf(w, "%s \"\"\n", field)
	parts := strings.Split(value, "\n")
	for i, part := range parts {
		if i < len(parts)-1 {
			fmt.Fprintf(w, "%s\n", quote(part+"\n"))
		} else if part != "" {
			fmt.Fprintf(w, "%s\n", quote(part))
		}
	}
}

// quote produces a PO-style quoted string.
func quote(s string) string {
	return `"` + Escape(s) + `"`
}

// Escape applies PO backslash escaping to s without surrounding quotes.
func Escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	return s
}

// unquote removes PO-style quoting from a string.
func unquote(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("malformed string %s", s)
	}
	s = s[1 : len(s)-1]

	var result strings.Builder
	result.Grow(len(s))

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			return "", fmt.Errorf("unescaped quote in string")
		case '\\':
			if i+1 >= len(s) {
				return "", fmt.Errorf("unterminated string")
			}
			i++
			switch s[i] {
			case 'n':
				result.WriteByte('\n')
			case 't':
				result.WriteByte('\t')
			case 'r':
				result.WriteByte('\r')
			case '\\', '"':
				result.WriteByte(s[i])
			default:
				result.WriteByte('\\')
				result.WriteByte(s[i])
			}
		default:
			result.WriteByte(s[i])
		}
	}
	return result.String(), nil
}
