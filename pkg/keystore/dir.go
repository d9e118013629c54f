package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("keystore entry not found")

// Dir 基于目录的 Keystore，每个条目一个 JSON 文件
// 文件名: <kind>-<id>.json；account 类型额外按地址建立索引
type Dir struct {
	mu   sync.RWMutex
	path string
}

// NewDir 打开 (必要时创建) Keystore 目录
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("创建 keystore 目录失败: %w", err)
	}
	return &Dir{path: path}, nil
}

// Store 写入一个加密条目
func (d *Dir) Store(key *EncryptedKeyJSON) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return key.SaveToFile(d.fileName(key.Kind, key.Id))
}

// Load 按 id 读取
func (d *Dir) Load(kind SecretKind, id string) (*EncryptedKeyJSON, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	key, err := LoadFromFile(d.fileName(kind, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return key, err
}

// FindByAddress 按地址查找 account 条目
func (d *Dir) FindByAddress(address string) (*EncryptedKeyJSON, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(d.path, string(KindAccount)+"-*.json"))
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		key, err := LoadFromFile(m)
		if err != nil {
			continue
		}
		if strings.EqualFold(key.Address, address) {
			return key, nil
		}
	}
	return nil, ErrNotFound
}

func (d *Dir) fileName(kind SecretKind, id string) string {
	return filepath.Join(d.path, fmt.Sprintf("%s-%s.json", kind, filepath.Base(id)))
}
