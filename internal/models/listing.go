package models

// Sentinel replaces any field whose selector matched nothing or only whitespace.
const Sentinel = "-"

// DefaultDetailOrdinal is the cell index used by the positional detail rule
// when a site does not configure one.
const DefaultDetailOrdinal = 3

const (
	defaultDetailCellSelector = "td"
	defaultDetailFieldName    = "detail"
)

// ListSelectors locates records on a listing page. Title and Price are
// evaluated relative to each Container match.
type ListSelectors struct {
	Container string `json:"container" yaml:"container"`
	Title     string `json:"title" yaml:"title"`
	Price     string `json:"price" yaml:"price"`
}

// SiteConfig describes one scrape target. It is read-only once loaded.
type SiteConfig struct {
	SourceID string        `json:"source_id" yaml:"source_id"`
	EntryURL string        `json:"entry_url" yaml:"entry_url"`
	List     ListSelectors `json:"list" yaml:"list"`

	// DetailLinkSelector enables enrichment: it selects the anchor inside each
	// container whose href points at the record's detail page.
	DetailLinkSelector string `json:"detail_link_selector,omitempty" yaml:"detail_link_selector,omitempty"`

	// DetailFieldSelector extracts the detail field by CSS selector. When empty
	// the positional rule applies: the DetailFieldOrdinal-th match of
	// DetailCellSelector.
	DetailFieldSelector string `json:"detail_field_selector,omitempty" yaml:"detail_field_selector,omitempty"`
	DetailFieldOrdinal  *int   `json:"detail_field_ordinal,omitempty" yaml:"detail_field_ordinal,omitempty"`
	DetailCellSelector  string `json:"detail_cell_selector,omitempty" yaml:"detail_cell_selector,omitempty"`

	// DetailFieldName is the report column header for the detail field.
	DetailFieldName string `json:"detail_field_name,omitempty" yaml:"detail_field_name,omitempty"`
}

// HasDetail reports whether records of this site go through the detail pass.
func (c SiteConfig) HasDetail() bool {
	return c.DetailLinkSelector != ""
}

func (c SiteConfig) Ordinal() int {
	if c.DetailFieldOrdinal == nil {
		return DefaultDetailOrdinal
	}
	return *c.DetailFieldOrdinal
}

func (c SiteConfig) CellSelector() string {
	if c.DetailCellSelector == "" {
		return defaultDetailCellSelector
	}
	return c.DetailCellSelector
}

func (c SiteConfig) FieldName() string {
	if c.DetailFieldName == "" {
		return defaultDetailFieldName
	}
	return c.DetailFieldName
}

// Record is one extracted listing entry.
type Record struct {
	Title string `json:"title"`
	Price string `json:"price"`

	// DetailField is set by enrichment; HasDetailField tells an extracted
	// value apart from a record that was never enriched.
	DetailField    string `json:"detail_field,omitempty"`
	HasDetailField bool   `json:"-"`

	// DetailURL only lives between the list scrape and the detail pass.
	DetailURL string `json:"-"`
}

// HasDetailURL reports whether the detail pass should visit this record.
func (r Record) HasDetailURL() bool {
	return r.DetailURL != "" && r.DetailURL != Sentinel
}

// SourceResult holds the records of one source together with the header of
// its optional detail column.
type SourceResult struct {
	SourceID    string
	DetailLabel string
	Records     []Record
}

// ResultSet maps source ids to their records and remembers insertion order.
type ResultSet struct {
	order   []string
	results map[string]*SourceResult
}

func NewResultSet() *ResultSet {
	return &ResultSet{
		results: make(map[string]*SourceResult),
	}
}

// Put stores records for a source. Storing the same source again replaces
// its records but keeps its original position.
func (rs *ResultSet) Put(sourceID, detailLabel string, records []Record) {
	if _, exists := rs.results[sourceID]; !exists {
		rs.order = append(rs.order, sourceID)
	}
	rs.results[sourceID] = &SourceResult{
		SourceID:    sourceID,
		DetailLabel: detailLabel,
		Records:     records,
	}
}

func (rs *ResultSet) Get(sourceID string) ([]Record, bool) {
	r, ok := rs.results[sourceID]
	if !ok {
		return nil, false
	}
	return r.Records, true
}

// Keys returns source ids in insertion order.
func (rs *ResultSet) Keys() []string {
	keys := make([]string, len(rs.order))
	copy(keys, rs.order)
	return keys
}

func (rs *ResultSet) Len() int {
	return len(rs.order)
}

// Sources returns the stored results in insertion order.
func (rs *ResultSet) Sources() []SourceResult {
	out := make([]SourceResult, 0, len(rs.order))
	for _, id := range rs.order {
		out = append(out, *rs.results[id])
	}
	return out
}

// RecordCount sums records over all sources.
func (rs *ResultSet) RecordCount() int {
	total := 0
	for _, r := range rs.results {
		total += len(r.Records)
	}
	return total
}
