// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upload moves local files to the backend before a chat turn.
//
// Uploads are strictly sequential and all-or-nothing: if any file in a batch
// fails, the whole batch is discarded and the caller must not send the
// message. Of a successful batch, only the first attachment is forwarded to
// the chat endpoint — a documented single-file-per-message limitation of the
// platform, not something to fix client-side.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/model"
)

// MaxFileSize caps individual uploads client-side (the backend enforces its
// own limit; failing early saves the round trip).
const MaxFileSize = 25 * 1024 * 1024

var (
	ErrEmptyBatch   = errors.New("no files to upload")
	ErrFileTooLarge = errors.New("file exceeds upload size limit")
)

// BatchError reports which file sank the batch.
type BatchError struct {
	Path string
	Err  error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("upload of %s failed: %v", filepath.Base(e.Path), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Uploader is the slice of the backend client the pipeline needs.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (*api.UploadResult, error)
}

// Pipeline uploads attachment batches.
type Pipeline struct {
	backend Uploader
}

// NewPipeline creates an attachment pipeline.
func NewPipeline(backend Uploader) *Pipeline {
	return &Pipeline{backend: backend}
}

// UploadAll uploads every path in order, one at a time. On the first failure
// it returns a nil slice and a *BatchError; partial success is never
// reported.
func (p *Pipeline) UploadAll(ctx context.Context, paths []string) ([]model.Attachment, error) {
	if len(paths) == 0 {
		return nil, ErrEmptyBatch
	}

	attachments := make([]model.Attachment, 0, len(paths))
	for _, path := range paths {
		att, err := p.uploadOne(ctx, path)
		if err != nil {
			return nil, &BatchError{Path: path, Err: err}
		}
		attachments = append(attachments, att)
	}
	return attachments, nil
}

func (p *Pipeline) uploadOne(ctx context.Context, path string) (model.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Attachment{}, err
	}
	if info.Size() > MaxFileSize {
		return model.Attachment{}, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return model.Attachment{}, err
	}
	defer f.Close()

	result, err := p.backend.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return model.Attachment{}, err
	}
	if !result.Success || result.FileID == "" {
		return model.Attachment{}, errors.New("backend rejected the upload")
	}

	return model.Attachment{
		ID:        uuid.NewString(),
		Name:      filepath.Base(path),
		Size:      info.Size(),
		MediaType: mime.TypeByExtension(filepath.Ext(path)),
		BackendID: result.FileID,
	}, nil
}

// Forwarded returns the single attachment that accompanies the chat request:
// the first of the batch, or nil for an empty batch.
func Forwarded(attachments []model.Attachment) *model.Attachment {
	if len(attachments) == 0 {
		return nil
	}
	return &attachments[0]
}
