package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/lyzr/mediacatalog/cmd/catalog/models"
)

// FSPayloadStore keeps one file per entry under a directory.
// Writes go to a pending file that is fsynced and renamed over the target.
// The first line of each file holds the content type, the payload follows.
type FSPayloadStore struct {
	dir string
}

// NewFSPayloadStore creates dir if needed
func NewFSPayloadStore(dir string) (*FSPayloadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create payload dir %s: %w", dir, err)
	}
	return &FSPayloadStore{dir: dir}, nil
}

func (s *FSPayloadStore) path(id int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(id, 10)+".payload")
}

// Save streams r into the payload file for id
func (s *FSPayloadStore) Save(ctx context.Context, id int64, contentType string, r io.Reader) (int64, error) {
	if strings.ContainsAny(contentType, "\r\n") {
		return 0, fmt.Errorf("%w: content type contains a line break", models.ErrInvalidEntry)
	}

	pendingFile, err := renameio.NewPendingFile(s.path(id), renameio.WithPermissions(0o644))
	if err != nil {
		return 0, fmt.Errorf("%w: create pending payload: %w", models.ErrStorageFailure, err)
	}
	// No-op once committed
	defer pendingFile.Cleanup()

	if _, err := io.WriteString(pendingFile, contentType+"\n"); err != nil {
		return 0, fmt.Errorf("%w: write content type: %w", models.ErrStorageFailure, err)
	}

	n, err := io.Copy(pendingFile, r)
	if err != nil {
		return 0, fmt.Errorf("%w: write payload: %w", models.ErrStorageFailure, err)
	}

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: write payload: %w", models.ErrStorageFailure, err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("%w: commit payload: %w", models.ErrStorageFailure, err)
	}

	return n, nil
}

// Has reports whether a payload file exists for id
func (s *FSPayloadStore) Has(ctx context.Context, id int64) (bool, error) {
	_, err := os.Stat(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat payload: %w", models.ErrStorageFailure, err)
	}
	return true, nil
}

type payloadFile struct {
	*bufio.Reader
	io.Closer
}

// Open reads the content type line and leaves Body at the first payload byte
func (s *FSPayloadStore) Open(ctx context.Context, id int64) (*Payload, error) {
	f, err := os.Open(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open payload: %w", models.ErrStorageFailure, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat payload: %w", models.ErrStorageFailure, err)
	}

	br := bufio.NewReader(f)
	header, err := br.ReadString('\n')
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: read content type: %w", models.ErrStorageFailure, err)
	}

	return &Payload{
		ContentType: strings.TrimSuffix(header, "\n"),
		Size:        info.Size() - int64(len(header)),
		Body:        payloadFile{Reader: br, Closer: f},
	}, nil
}
