package bank

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"exam-simulator/internal/domain"
	"gopkg.in/yaml.v3"
)

var extensions = []string{".json", ".yaml", ".yml"}

// FileLoader reads banks from <dir>/<bankID>.{json,yaml,yml}.
type FileLoader struct {
	dir string
}

func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{dir: dir}
}

func (l *FileLoader) LoadBank(_ context.Context, bankID string) (domain.Bank, error) {
	if bankID == "" || strings.ContainsAny(bankID, `/\`) || strings.Contains(bankID, "..") {
		return domain.Bank{}, domain.ErrBankNotFound
	}
	for _, ext := range extensions {
		path := filepath.Join(l.dir, bankID+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		b, err := LoadFile(path)
		if err != nil {
			return domain.Bank{}, err
		}
		if b.ID == "" {
			b.ID = bankID
		}
		return b, nil
	}
	return domain.Bank{}, domain.ErrBankNotFound
}

// List returns the bank ids available in the directory.
func (l *FileLoader) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, known := range extensions {
			if ext == known {
				ids = append(ids, strings.TrimSuffix(e.Name(), ext))
				break
			}
		}
	}
	return ids, nil
}

// LoadFile decodes a bank file. Both a bare question list and a
// {id, questions} document are accepted; YAML parsing covers JSON input too.
func LoadFile(path string) (domain.Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Bank{}, err
	}
	b, err := Decode(data)
	if err != nil {
		return domain.Bank{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if b.ID == "" {
		b.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return b, nil
}

// Decode parses raw bank content.
func Decode(data []byte) (domain.Bank, error) {
	var questions []domain.Question
	if err := yaml.Unmarshal(data, &questions); err == nil {
		return domain.Bank{Questions: questions}, nil
	}
	var b domain.Bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return domain.Bank{}, err
	}
	return b, nil
}
