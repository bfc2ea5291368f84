package codec

// Format describes one codec for listings and configuration.
type Format struct {
	Name        string
	Description string
}

// Formats lists the codec names accepted in job configuration.
func Formats() []Format {
	return []Format{
		{"delimited", "separator-split fields with optional quoting (csv, tsv)"},
		{"fixed-width", "fields cut at fixed character offsets"},
		{"key-value", "key/value entries with comments, sections and properties escapes"},
		{"single-value", "one field per line"},
		{"json-lines", "one JSON object or array of strings per line"},
		{"markdown-list", "one Markdown list item per line"},
		{"markdown-table", "Markdown pipe table with a header row, write only"},
		{"html-table", "HTML table with a header row, write only"},
	}
}
