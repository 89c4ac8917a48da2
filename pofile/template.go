package pofile

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// TimeFormat is the layout of the POT-Creation-Date header.
const TimeFormat = "2006-01-02 15:04+0000"

// Metadata describes the header block of a generated template.
type Metadata struct {
	ProjectName    string
	ProjectVersion string
	// BugsAddress is the Report-Msgid-Bugs-To value (URL or e-mail).
	BugsAddress string
	// CreationDate is written as POT-Creation-Date in UTC. Zero means now.
	CreationDate time.Time
	// Generator is written as X-Generator.
	Generator string
	// Keywords lists the extraction keywords for X-Poedit-KeywordsList.
	Keywords []string
}

// MakeTemplateHeader creates the header entry of a template.
// The charset is always UTF-8.
func MakeTemplateHeader(meta Metadata) *Entry {
	created := meta.CreationDate
	if created.IsZero() {
		created = time.Now()
	}
	project := strings.TrimSpace(meta.ProjectName + " " + meta.ProjectVersion)

	fields := [][2]string{
		{"Project-Id-Version", project},
		{"Report-Msgid-Bugs-To", meta.BugsAddress},
		{"POT-Creation-Date", created.UTC().Format(TimeFormat)},
		{"PO-Revision-Date", ""},
		{"Last-Translator", ""},
		{"Language-Team", ""},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
		{"Content-Transfer-Encoding", "8bit"},
	}
	if meta.Generator != "" {
		fields = append(fields, [2]string{"X-Generator", meta.Generator})
	}
	fields = append(fields, [2]string{"X-Poedit-Basepath", ".."})
	if len(meta.Keywords) > 0 {
		fields = append(fields, [2]string{"X-Poedit-KeywordsList", strings.Join(meta.Keywords, ";")})
	}
	fields = append(fields, [2]string{"X-Poedit-SearchPath-0", "."})

	f := NewFile()
	for _, kv := range fields {
		f.SetHeaderField(kv[0], kv[1])
	}
	return f.Header
}

// SortEntries orders entries by message id, then context.
func SortEntries(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].MsgID != entries[j].MsgID {
			return entries[i].MsgID < entries[j].MsgID
		}
		return entries[i].MsgCtxt < entries[j].MsgCtxt
	})
}

// NewTemplate builds a template catalog from extracted entries.
// Translations and fuzzy flags are cleared on copies so the result
// always satisfies the template invariant; the input is not modified.
func NewTemplate(entries []*Entry, meta Metadata) *File {
	f := NewFile()
	f.Header = MakeTemplateHeader(meta)
	for _, e := range entries {
		if e.MsgID == "" {
			continue
		}
		f.Entries = append(f.Entries, &Entry{
			ExtractedComments: e.ExtractedComments,
			References:        e.References,
			MsgCtxt:           e.MsgCtxt,
			MsgID:             e.MsgID,
			MsgIDPlural:       e.MsgIDPlural,
		})
	}
	SortEntries(f.Entries)
	return f
}

// WriteTemplate renders entries and meta as a POT document.
func WriteTemplate(w io.Writer, entries []*Entry, meta Metadata) error {
	if err := NewTemplate(entries, meta).Write(w); err != nil {
		return fmt.Errorf("writing template: %w", err)
	}
	return nil
}
