package handlers

import (
	"context"
	"encoding/json"
	"io"
	"path"
	"strings"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/pkg/zip"
)

type exporter struct {
	artifacts     ArtifactReader
	publicBaseURL string
	logger        *infra.Logger
}

// exportEntries renders each record as <id>/record.json plus its artifact
// when the artifact lives in the local store.
func exportEntries[P domain.Params](ctx context.Context, e exporter, records []domain.Record[P]) []zip.Entry {
	entries := make([]zip.Entry, 0, len(records)*2)
	for _, rec := range records {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			e.logger.Warn().Err(err).Str("id", rec.ID).Msg("handlers: encode record failed")
			continue
		}
		entries = append(entries, zip.Entry{Name: rec.ID + "/record.json", Modified: rec.CreatedAt, Data: data})

		key, ok := e.localKey(rec.ArtifactRef)
		if !ok {
			continue
		}
		blob, err := e.artifacts.Read(ctx, key)
		if err != nil {
			e.logger.Warn().Err(err).Str("id", rec.ID).Str("key", key).Msg("handlers: read artifact failed")
			continue
		}
		entries = append(entries, zip.Entry{Name: rec.ID + "/" + path.Base(key), Modified: rec.CreatedAt, Data: blob})
	}
	return entries
}

// localKey strips the public prefix from ref. Remote URLs and data URLs
// are not local.
func (e exporter) localKey(ref string) (string, bool) {
	if e.artifacts == nil || ref == "" {
		return "", false
	}
	if e.publicBaseURL != "" {
		if key, ok := strings.CutPrefix(ref, strings.TrimRight(e.publicBaseURL, "/")+"/"); ok {
			return key, true
		}
	}
	if strings.Contains(ref, "://") || strings.HasPrefix(ref, "data:") {
		return "", false
	}
	return ref, true
}

func writeArchive(w io.Writer, entries []zip.Entry) error {
	return zip.Write(w, entries)
}
