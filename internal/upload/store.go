// Package upload 保存支付凭证图片，并在订单清理时删除。
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"campus_market/internal/apperr"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// URLPrefix 对外访问路径前缀，由 router 以静态目录挂载。
const URLPrefix = "/uploads/"

// sniffLen 内容嗅探读取的字节数
const sniffLen = 3072

var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Store struct {
	dir      string
	maxBytes int64
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save 按文件内容（而非扩展名或客户端声明的类型）判断格式，返回可访问的 URL。
func (s *Store) Save(r io.Reader, size int64) (string, error) {
	if size > s.maxBytes {
		return "", apperr.Field("file", fmt.Sprintf("must be at most %d bytes", s.maxBytes))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", apperr.Field("file", "is empty")
	}

	ext, ok := allowed[mimetype.Detect(head).String()]
	if !ok {
		return "", apperr.Field("file", "must be a JPEG, PNG or WebP image")
	}

	name := uuid.NewString() + ext
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	// 多读 1 字节用于判断是否超限
	written, err := io.Copy(f, io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxBytes {
		err = apperr.Field("file", fmt.Sprintf("must be at most %d bytes", s.maxBytes))
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, name))
		return "", err
	}
	return URLPrefix + name, nil
}

// Delete 按 URL 删除文件；非本地上传的 URL 与不存在的文件都视为成功。
func (s *Store) Delete(url string) error {
	if !strings.HasPrefix(url, URLPrefix) {
		return nil
	}
	name := strings.TrimPrefix(url, URLPrefix)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("refusing to delete %q", url)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}
