package agent

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flowgraph/ragagent/pkg/prebuilt/rag"
)

// CorpusExtensions are the file types LoadDocuments reads from a directory.
var CorpusExtensions = map[string]bool{".md": true, ".txt": true}

// LoadDocuments reads path, a file or a directory tree, and splits every
// file into paragraphs. Each paragraph becomes a document with the ID
// "<file>#<n>"; <file> is relative to a directory path.
func LoadDocuments(path string) ([]rag.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	if !info.IsDir() {
		return loadFile(path, filepath.Base(path))
	}

	var docs []rag.Document
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !CorpusExtensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		fileDocs, err := loadFile(p, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	return docs, nil
}

func loadFile(path, source string) ([]rag.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	var docs []rag.Document
	for i, p := range Paragraphs(string(data)) {
		docs = append(docs, rag.Document{
			ID:       source + "#" + strconv.Itoa(i+1),
			Content:  p,
			Metadata: map[string]any{"source": source},
		})
	}
	return docs, nil
}

// Paragraphs splits text on blank lines and joins wrapped lines.
func Paragraphs(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur = cur[:0]
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}
