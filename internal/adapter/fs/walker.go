package fs

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"ekb/internal/domain"
)

// Walker expands directories into the files matching include globs and
// none of the exclude globs. Patterns match slash-separated paths relative
// to the walked root.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns input references for every matching file under root, sorted by path.
func (w *Walker) Walk(root string) ([]domain.InputRef, error) {
	var inputs []domain.InputRef

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			info, err := d.Info()
			if err != nil {
				return err
			}
			inputs = append(inputs, inputRef(path, info))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Locator < inputs[j].Locator })
	return inputs, nil
}

// Expand resolves each argument: files are taken as-is, directories are walked.
func (w *Walker) Expand(paths []string) ([]domain.InputRef, error) {
	var inputs []domain.InputRef
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", domain.ErrInputNotFound, p)
			}
			return nil, err
		}
		if !info.IsDir() {
			ref, err := Resolve(p)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, ref)
			continue
		}
		found, err := w.Walk(p)
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
		inputs = append(inputs, found...)
	}
	return inputs, nil
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// Resolve checks that locator names a readable regular file and describes it.
func Resolve(locator string) (domain.InputRef, error) {
	if strings.TrimSpace(locator) == "" {
		return domain.InputRef{}, fmt.Errorf("%w: empty locator", domain.ErrInputNotFound)
	}
	abs, err := filepath.Abs(locator)
	if err != nil {
		return domain.InputRef{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.InputRef{}, fmt.Errorf("%w: %s", domain.ErrInputNotFound, locator)
		}
		return domain.InputRef{}, fmt.Errorf("%w: %v", domain.ErrExtractionFailure, err)
	}
	if !info.Mode().IsRegular() {
		return domain.InputRef{}, fmt.Errorf("%w: %s is not a regular file", domain.ErrInputNotFound, locator)
	}
	return inputRef(abs, info), nil
}

// Complete fills in missing metadata of a caller-supplied reference from the file itself.
func Complete(ref domain.InputRef) (domain.InputRef, error) {
	resolved, err := Resolve(ref.Locator)
	if err != nil {
		return domain.InputRef{}, err
	}
	if ref.OriginalName != "" {
		resolved.OriginalName = ref.OriginalName
	}
	if ref.SizeBytes > 0 {
		resolved.SizeBytes = ref.SizeBytes
	}
	if ref.ContentType != "" {
		resolved.ContentType = ref.ContentType
	}
	return resolved, nil
}

func inputRef(path string, info os.FileInfo) domain.InputRef {
	return domain.InputRef{
		Locator:      path,
		OriginalName: filepath.Base(path),
		SizeBytes:    info.Size(),
		ContentType:  ContentType(path),
	}
}

// ContentType guesses the media type from the file extension.
func ContentType(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt", ".text":
		return "text/plain"
	case "":
		return "application/octet-stream"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}
