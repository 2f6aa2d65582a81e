package worker

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"

	"github.com/evolearn/studyhub/internal/model"
	"gorm.io/gorm"
)

const (
	SummaryFilePrefix = "Resumen_"
	summaryModelUsed  = "system"
)

func summaryFileName(rel string) string {
	base := path.Base(rel)
	return SummaryFilePrefix + strings.TrimSuffix(base, path.Ext(base)) + ".txt"
}

// saveSummaryFile writes the summary next to its source so it shows up in
// normal listings. It never affects the job's outcome.
func (w *Worker) saveSummaryFile(ctx context.Context, job *model.SummaryJob, summaryText string) error {
	if w.blobs == nil || w.paths == nil || job.FileRelPath == "" {
		return nil
	}

	owner := w.documentOwner(ctx, job)
	rel := path.Join(path.Dir(job.FileRelPath), summaryFileName(job.FileRelPath))
	key, err := w.paths.Key(owner, rel)
	if err != nil {
		return err
	}

	body := []byte(summaryText)
	if err = w.blobs.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "text/plain; charset=utf-8"); err != nil {
		return err
	}

	if job.DocumentID == nil {
		return nil
	}
	return w.saveSummaryDocument(ctx, job, rel, summaryText)
}

// saveSummaryDocument mirrors the summary file as a document row when the
// source lives in a cloud managed directory.
func (w *Worker) saveSummaryDocument(ctx context.Context, job *model.SummaryJob, rel, summaryText string) error {
	src, err := w.store.GetDocument(ctx, *job.DocumentID)
	if err != nil {
		return err
	}
	if src.DirectoryID == nil {
		return nil
	}
	dir, err := w.store.GetDirectory(ctx, *src.DirectoryID)
	if err != nil {
		return err
	}
	if !dir.CloudManaged {
		return nil
	}

	now := w.clock.Now()
	name := path.Base(rel)
	existing, err := w.store.FindDocument(ctx, src.OwnerID, src.DirectoryID, name)
	if err == nil {
		existing.TextContent = summaryText
		existing.Size = int64(len(summaryText))
		existing.ModelUsed = summaryModelUsed
		existing.UpdatedAt = now
		return w.store.UpdateDocument(ctx, existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	doc := &model.Document{
		OwnerID:     src.OwnerID,
		DirectoryID: src.DirectoryID,
		DisplayName: name,
		StoragePath: rel,
		MimeType:    "text/plain",
		Size:        int64(len(summaryText)),
		TextContent: summaryText,
		ModelUsed:   summaryModelUsed,
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return w.store.CreateDocument(ctx, doc)
}
