package segment

import (
	"encoding/json"
	"fmt"
)

// ManifestEntry is one element of a static large object manifest.
type ManifestEntry struct {
	Path      string `json:"path"`
	ETag      string `json:"etag"`
	SizeBytes int64  `json:"size_bytes"`
}

// Manifest lists the plan's segments in index order. Every segment must have been uploaded.
func (p *Plan) Manifest(container string) ([]ManifestEntry, error) {
	entries := make([]ManifestEntry, 0, len(p.Segments))
	for _, s := range p.Segments {
		if s.ETag == "" {
			return nil, fmt.Errorf("segment %d (%s) has no etag", s.Index, s.Key)
		}
		entries = append(entries, ManifestEntry{
			Path:      "/" + container + "/" + s.Key,
			ETag:      s.ETag,
			SizeBytes: s.Length,
		})
	}
	return entries, nil
}

// ManifestJSON is the request body of the manifest PUT.
func (p *Plan) ManifestJSON(container string) ([]byte, error) {
	entries, err := p.Manifest(container)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return body, nil
}
