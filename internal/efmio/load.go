package efmio

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// ParseDocument decodes one trace document file's raw bytes.
func ParseDocument(raw []byte) (*TraceDocument, error) {
	var doc TraceDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("efmio: parsing trace document: %w", err)
	}
	if doc.Title == "" && doc.TitleRef == "" {
		return nil, fmt.Errorf("efmio: trace document has neither title nor title_ref")
	}
	return &doc, nil
}

// LoadGroup reads and imports every file of one import group, requiring
// exactly one master. Files are read in the order given; a master
// appearing after a fragment is still accepted since ImportFragment only
// needs the master already registered, which LoadGroup guarantees by doing
// a first pass for the master before processing fragments.
func LoadGroup(paths []string) (*simdata.ResultSet, error) {
	docs := make([]*TraceDocument, 0, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("efmio: reading %s: %w", p, err)
		}
		doc, err := ParseDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("efmio: %s: %w", p, err)
		}
		docs = append(docs, doc)
	}

	var rs *simdata.ResultSet
	var fragments []*TraceDocument
	for _, doc := range docs {
		if doc.IsMaster() {
			if rs != nil {
				return nil, fmt.Errorf("efmio: two files claim to be the master (sim ids %q and %q)", rs.SimID, doc.Title)
			}
			var err error
			rs, err = ImportMaster(doc)
			if err != nil {
				return nil, err
			}
			continue
		}
		fragments = append(fragments, doc)
	}
	if rs == nil {
		return nil, fmt.Errorf("efmio: no file in group carries a title (master)")
	}
	for _, doc := range fragments {
		if err := ImportFragment(rs, doc); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

// LoadAll groups every file directly under dir whose name begins with
// "<prefix>-" (the extension is not checked) and
// imports each group into its own ResultSet, returned sorted by group key.
func LoadAll(dir, prefix string) ([]*simdata.ResultSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("efmio: reading %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, dir+string(os.PathSeparator)+e.Name())
	}
	groups := GroupFiles(names, prefix)

	out := make([]*simdata.ResultSet, 0, len(groups))
	for _, key := range SortedGroupKeys(groups) {
		rs, err := LoadGroup(groups[key])
		if err != nil {
			return nil, fmt.Errorf("efmio: group %s: %w", key, err)
		}
		out = append(out, rs)
	}
	return out, nil
}
