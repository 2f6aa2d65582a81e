package worker

import (
	"context"
	"os"
	"path/filepath"

	"github.com/evolearn/studyhub/internal/model"
)

type source struct {
	path string
	// deletable is set for uploads parked in the processing directory.
	deletable bool
}

// resolveSource finds the file of a job. In order: the stored absolute path,
// the same file name inside the processing directory, then the relative path
// inside the owner's storage root. An empty path means nothing was found.
func (w *Worker) resolveSource(ctx context.Context, job *model.SummaryJob) source {
	if job.FilePath != "" {
		if exists(job.FilePath) {
			return source{path: job.FilePath, deletable: w.isProcessingFile(job.FilePath)}
		}
		if w.cfg.ProcessingDir != "" {
			parked := filepath.Join(w.cfg.ProcessingDir, filepath.Base(job.FilePath))
			if exists(parked) {
				return source{path: parked, deletable: true}
			}
		}
	}

	if job.FileRelPath != "" && w.paths != nil {
		abs, err := w.paths.Resolve(w.documentOwner(ctx, job), job.FileRelPath)
		if err == nil && exists(abs) {
			return source{path: abs}
		}
	}

	return source{path: job.FilePath}
}

func exists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
