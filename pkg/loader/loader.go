package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kamillle/rag-sample/internal/models"
	"github.com/kamillle/rag-sample/internal/types"
)

type LoaderConfig struct {
	AllowedExtensions []string
	IgnorePatterns    []string
}

// Loader reads the source corpus from a directory tree.
type Loader struct {
	config LoaderConfig
	logger *zap.Logger
}

var _ types.DocumentLoader = (*Loader)(nil)

func NewWithConfig(config LoaderConfig, logger *zap.Logger) *Loader {
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".txt", ".md", ".csv", ".html", ".htm", ".pdf"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{
		config: config,
		logger: logger,
	}
}

func New(logger *zap.Logger) *Loader {
	return NewWithConfig(LoaderConfig{}, logger)
}

// LoadDocuments walks dir in lexical order and returns one Document per
// supported, non-empty file.
func (l *Loader) LoadDocuments(ctx context.Context, dir string) ([]models.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source directory: %s is not a directory", dir)
	}

	var documents []models.Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		if !l.shouldLoad(relPath) {
			l.logger.Debug("skipping file", zap.String("path", relPath))
			return nil
		}

		doc, err := l.loadFile(path, relPath)
		if err != nil {
			return fmt.Errorf("load %s: %w", relPath, err)
		}
		if strings.TrimSpace(doc.Content) == "" {
			l.logger.Warn("skipping empty document", zap.String("path", relPath))
			return nil
		}

		documents = append(documents, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("loaded documents",
		zap.String("dir", dir),
		zap.Int("count", len(documents)),
	)

	return documents, nil
}

func (l *Loader) shouldLoad(relPath string) bool {
	ext := strings.ToLower(filepath.Ext(relPath))
	validExt := false
	for _, allowedExt := range l.config.AllowedExtensions {
		if ext == allowedExt {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range l.config.IgnorePatterns {
		if strings.Contains(relPath, pattern) {
			return false
		}
	}

	return true
}

func (l *Loader) loadFile(path, relPath string) (models.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Document{}, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var content string
	switch ext {
	case ".html", ".htm":
		var htmlTitle string
		content, htmlTitle, err = readHTML(path)
		if htmlTitle != "" {
			title = htmlTitle
		}
	case ".pdf":
		content, err = readPDF(path)
	default:
		var data []byte
		data, err = os.ReadFile(path)
		content = string(data)
	}
	if err != nil {
		return models.Document{}, err
	}

	return models.Document{
		ID:      DocumentID(relPath),
		Source:  relPath,
		Title:   title,
		Content: sanitizeUTF8(content),
		Metadata: map[string]interface{}{
			"format":       strings.TrimPrefix(ext, "."),
			"size":         info.Size(),
			"lastModified": info.ModTime(),
		},
	}, nil
}

// DocumentID derives a stable identifier from a document's relative path.
func DocumentID(source string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file:///"+source)).String()
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
