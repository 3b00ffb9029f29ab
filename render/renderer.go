package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/barrelbook/barrelbook/internal/report"
)

// Store persists finished PDF artifacts and returns their path.
type Store interface {
	Save(name string, pdf []byte) (string, error)
}

// FileStore writes artifacts under a base directory.
type FileStore struct {
	dir string
}

// NewFileStore constructs FileStore, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Save writes the artifact and returns its absolute path.
func (s *FileStore) Save(name string, pdf []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Renderer builds report HTML, converts it through Gotenberg and stores
// the result. It satisfies the workflow renderer port.
type Renderer struct {
	client *Client
	store  Store
	logger *slog.Logger
}

// NewRenderer constructs Renderer.
func NewRenderer(client *Client, store Store, logger *slog.Logger) *Renderer {
	return &Renderer{client: client, store: store, logger: logger}
}

// RenderInventory produces the processing form PDF.
func (r *Renderer) RenderInventory(ctx context.Context, data report.ReportData) (string, error) {
	html, err := InventoryHTML(data)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%04d-%02d-inventory.pdf", data.TenantID, data.Year, data.Month)
	return r.convert(ctx, name, html)
}

// RenderStorage produces the storage form PDF.
func (r *Renderer) RenderStorage(ctx context.Context, data report.StorageData) (string, error) {
	html, err := StorageHTML(data)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%04d-%02d-storage.pdf", data.TenantID, data.Year, data.Month)
	return r.convert(ctx, name, html)
}

func (r *Renderer) convert(ctx context.Context, name, html string) (string, error) {
	pdf, err := r.client.RenderHTML(ctx, html)
	if err != nil {
		return "", err
	}
	path, err := r.store.Save(name, pdf)
	if err != nil {
		return "", err
	}
	r.logger.Info("report artifact rendered", slog.String("path", path))
	return path, nil
}
