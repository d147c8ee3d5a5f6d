package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	"trialrag/internal/domain"
)

// CorpusLoader reads the text files of a corpus directory. Files are
// returned in lexical path order so rebuilds see the same sequence.
type CorpusLoader struct {
	pattern string
}

func NewCorpusLoader(pattern string) *CorpusLoader {
	if pattern == "" {
		pattern = "*.txt"
	}
	return &CorpusLoader{pattern: pattern}
}

type FileInfo struct {
	Path    string
	RelPath string
	Size    int64
}

// Load reads every matching file under dir into a Document.
func (l *CorpusLoader) Load(dir string) ([]domain.Document, error) {
	files, err := l.Walk(dir)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(files))
	for _, file := range files {
		content, err := ReadFile(file.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrIO, file.RelPath, err)
		}
		if !utf8.ValidString(content) {
			log.Warn().Str("file", file.RelPath).Msg("file is not valid UTF-8, invalid bytes kept as-is")
		}
		docs = append(docs, domain.Document{
			Source:  filepath.Base(file.Path),
			Content: content,
		})
	}

	log.Debug().Str("dir", dir).Int("documents", len(docs)).Msg("corpus loaded")
	return docs, nil
}

// Walk lists the files under root that match the loader's pattern.
func (l *CorpusLoader) Walk(root string) ([]FileInfo, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: corpus directory: %w", domain.ErrIO, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: corpus path is not a directory: %s", domain.ErrIO, root)
	}

	var files []FileInfo
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if !l.matches(relPath) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Path:    path,
			RelPath: relPath,
			Size:    fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", domain.ErrIO, root, err)
	}

	return files, nil
}

func (l *CorpusLoader) matches(relPath string) bool {
	matched, err := doublestar.Match(l.pattern, relPath)
	return err == nil && matched
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
