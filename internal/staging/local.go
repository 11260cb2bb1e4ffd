package staging

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// LocalStager copies files and directory trees on a shared filesystem
type LocalStager struct{}

// StageIn copies the file:// source to the local path.
func (LocalStager) StageIn(ctx context.Context, f model.StagedFile) error {
	src, err := filePath(f.URL)
	if err != nil {
		return &StagingError{URL: f.URL, Op: "in", Err: err}
	}
	if err := copyTree(ctx, src, f.LocalPath, f.Exclude...); err != nil {
		return &StagingError{URL: f.URL, Op: "in", Err: err}
	}
	return nil
}

// StageOut copies the local path to the file:// destination.
func (LocalStager) StageOut(ctx context.Context, f model.StagedFile) error {
	dst, err := filePath(f.URL)
	if err != nil {
		return &StagingError{URL: f.URL, Op: "out", Err: err}
	}
	if err := copyTree(ctx, f.LocalPath, dst, f.Exclude...); err != nil {
		return &StagingError{URL: f.URL, Op: "out", Err: err}
	}
	return nil
}

func filePath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file URL")
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("remote host %q in file URL", u.Host)
	}
	return filepath.FromSlash(u.Path), nil
}

// copyTree copies src to dst, skipping dst itself and any excluded path
// found inside src. Copying a path onto itself is a no-op.
func copyTree(ctx context.Context, src, dst string, exclude ...string) error {
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", src, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if samePath(src, dst) {
		return nil
	}

	if !info.IsDir() {
		return copyFile(src, dst, info.Mode().Perm())
	}

	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if p != src && (samePath(p, dst) || excluded(p, exclude)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(p, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}

func excluded(p string, exclude []string) bool {
	for _, e := range exclude {
		if samePath(p, e) {
			return true
		}
	}
	return false
}
