// Package export writes stored articles as delimited text.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/TobiSchelling/MeduzaReader/internal/article"
)

// Header is the first CSV record.
var Header = []string{"title", "translated_title", "translated_summary", "summary", "published", "link"}

// WriteCSV writes one header record and one record per article. Absent
// optional fields are written as empty strings.
func WriteCSV(w io.Writer, articles []article.Processed) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, a := range articles {
		record := []string{
			a.Title,
			article.Deref(a.TranslatedTitle),
			article.Deref(a.TranslatedSummary),
			article.Deref(a.AutoSummary),
			a.Published,
			a.Link,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing %s: %w", a.Link, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
