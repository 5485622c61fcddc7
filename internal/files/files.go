package files

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

type FileStorage struct {
	cl     *minio.Client
	Bucket string
}

type Config struct {
	Url      string
	Login    string
	Password string
	Bucket   string
	Secure   bool
}

func NewFileStorage(cfg Config) (*FileStorage, error) {
	client, err := minio.New(cfg.Url, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Login, cfg.Password, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create minio client")
	}
	return &FileStorage{cl: client, Bucket: cfg.Bucket}, nil
}

func (s *FileStorage) GetFile(ctx context.Context, filename string) (io.ReadCloser, error) {
	file, err := s.cl.GetObject(ctx, s.Bucket, filename, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *FileStorage) PutFile(ctx context.Context, filename string, r io.Reader, size int64) error {
	_, err := s.cl.PutObject(ctx, s.Bucket, filename, r, size, minio.PutObjectOptions{ContentType: "text/plain"})
	return err
}

// Download copies every object under prefix into dir, keeping the relative
// layout. It returns the number of files written.
func (s *FileStorage) Download(ctx context.Context, prefix, dir string) (int, error) {
	prefix = dirPrefix(prefix)
	count := 0
	for obj := range s.cl.ListObjects(ctx, s.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return count, errors.Wrap(obj.Err, "failed to list submission")
		}
		rel, ok := relativeName(prefix, obj.Key)
		if !ok {
			slog.Warn("skipping object outside of submission", "key", obj.Key)
			continue
		}
		if err := s.cl.FGetObject(ctx, s.Bucket, obj.Key, filepath.Join(dir, rel), minio.GetObjectOptions{}); err != nil {
			return count, errors.Wrapf(err, "failed to download %s", obj.Key)
		}
		count++
	}
	return count, nil
}

// Upload stores every regular file below dir under prefix and returns the
// object names.
func (s *FileStorage) Upload(ctx context.Context, dir, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := path.Join(prefix, filepath.ToSlash(rel))
		if _, err := s.cl.FPutObject(ctx, s.Bucket, name, p, minio.PutObjectOptions{ContentType: "text/plain"}); err != nil {
			return errors.Wrapf(err, "failed to upload %s", rel)
		}
		names = append(names, name)
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	return names, err
}

func dirPrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}

// relativeName maps an object key to a path below the download dir.
// Keys that would escape it are rejected.
func relativeName(prefix, key string) (string, bool) {
	rel := strings.TrimPrefix(key, prefix)
	if rel == "" || strings.HasSuffix(rel, "/") {
		return "", false
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", false
	}
	return clean, true
}
