package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for paths that are absolute or escape the storage root
var ErrInvalidPath = errors.New("invalid storage path")

// Storage is the artifact store used by certificate issuance
type Storage interface {
	Write(ctx context.Context, p string, data []byte) error
	Exists(ctx context.Context, p string) (bool, error)
	Read(ctx context.Context, p string) ([]byte, error)
	PublicURL(p string) string
}

// Local stores artifacts on the local filesystem
type Local struct {
	root      string
	publicURL string
	signer    *LinkSigner
	logger    *slog.Logger
}

// Option configures a Local storage
type Option func(*Local)

// WithLinkSigner signs every public URL with s
func WithLinkSigner(s *LinkSigner) Option {
	return func(l *Local) { l.signer = s }
}

// NewLocal creates a Local storage rooted at root, creating it if needed
func NewLocal(root, publicBaseURL string, logger *slog.Logger, opts ...Option) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	l := &Local{
		root:      abs,
		publicURL: strings.TrimRight(publicBaseURL, "/"),
		logger:    logger.With(slog.String("component", "file_storage")),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Root returns the absolute storage root
func (l *Local) Root() string {
	return l.root
}

// Write stores data at p, replacing any previous content atomically
func (l *Local) Write(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := l.resolvePath(p)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	l.logger.DebugContext(ctx, "artifact written",
		slog.String("path", p),
		slog.Int("size_bytes", len(data)))
	return nil
}

// Exists reports whether a regular file is stored at p
func (l *Local) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fullPath, err := l.resolvePath(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Read returns the content stored at p
func (l *Local) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := l.resolvePath(p)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(fullPath)
}

// PublicURL returns the address under which p is served. With a link signer
// the address carries a sig query parameter.
func (l *Local) PublicURL(p string) string {
	segments := strings.Split(path.Clean("/"+filepath.ToSlash(p)), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	u := l.publicURL + strings.Join(segments, "/")
	if l.signer != nil {
		u += "?sig=" + l.signer.Sign(p)
	}
	return u
}

// LinkValid reports whether sig authorizes a public read of p. Without a
// link signer no public read is authorized.
func (l *Local) LinkValid(p, sig string) bool {
	if l.signer == nil {
		return false
	}
	return l.signer.Valid(p, sig)
}

// Check verifies the root is still a writable directory
func (l *Local) Check(ctx context.Context) error {
	info, err := os.Stat(l.root)
	if err != nil {
		return fmt.Errorf("storage root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", l.root)
	}
	probe, err := os.CreateTemp(l.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("storage root not writable: %w", err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// resolvePath maps a slash-separated relative path onto the root
func (l *Local) resolvePath(p string) (string, error) {
	if p == "" || path.IsAbs(p) || filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	clean := path.Clean(filepath.ToSlash(p))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}
