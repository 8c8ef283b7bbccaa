package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"

	"note-search-go/pkg/log"
	"note-search-go/pkg/zotero"
)

// Item 是流水线的一个输入条目：要么是需要提取文本的文件（Open 非空），要么是自带文本的外部记录。
type Item struct {
	// Key 是外部记录的唯一标识，为空时由 Path 派生文档 ID。
	Key     string
	Path    string
	Topic   string
	Title   string
	Authors []string
	Text    string
	Open    func(ctx context.Context) (io.ReadCloser, error)
}

// Identifier 返回日志里用于定位条目的标识。
func (it Item) Identifier() string {
	if it.Key != "" {
		return it.Key
	}
	return it.Path
}

// DefaultExtensions 是目录与存储桶来源默认接受的文件类型。
var DefaultExtensions = []string{".pdf", ".txt", ".text", ".md", ".markdown", ".docx", ".doc", ".odt", ".rtf", ".html", ".epub"}

func acceptExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// FolderSource 递归遍历目录（或单个文件），按文件名排序产出条目。
// 根路径不可读时产出一个致命错误。
func FolderSource(root string, exts ...string) iter.Seq2[Item, error] {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return func(yield func(Item, error) bool) {
		info, err := os.Stat(root)
		if err != nil {
			yield(Item{}, fmt.Errorf("读取路径失败: %w", err))
			return
		}
		if !info.IsDir() {
			yield(fileItem(root), nil)
			return
		}

		stop := errors.New("stop")
		err = walkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == root {
					return err
				}
				// 根目录以下无法读取的目录或文件按单个条目失败处理，其余内容继续导入
				log.Warnf("[FolderSource] 无法读取, 跳过: %s, error: %v", p, err)
				if !yield(unreadableItem(p, err), nil) {
					return stop
				}
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !acceptExt(p, exts) {
				return nil
			}
			if !yield(fileItem(p), nil) {
				return stop
			}
			return nil
		})
		if err != nil && !errors.Is(err, stop) {
			yield(Item{}, fmt.Errorf("遍历目录失败: %w", err))
		}
	}
}

// walkDir 在测试中可替换，用于模拟无法读取的子目录。
var walkDir = filepath.WalkDir

func unreadableItem(p string, err error) Item {
	return Item{
		Path: p,
		Open: func(context.Context) (io.ReadCloser, error) {
			return nil, err
		},
	}
}

func fileItem(p string) Item {
	return Item{
		Path:  p,
		Topic: topicOf(filepath.Base(filepath.Dir(p))),
		Open: func(context.Context) (io.ReadCloser, error) {
			return os.Open(p)
		},
	}
}

func topicOf(dir string) string {
	switch dir {
	case ".", string(filepath.Separator), "":
		return ""
	}
	return dir
}

// BucketSource 列出存储桶中 prefix 下的对象并逐个产出。列举失败时产出一个致命错误。
func BucketSource(ctx context.Context, client *minio.Client, bucket, prefix string, exts ...string) iter.Seq2[Item, error] {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return func(yield func(Item, error) bool) {
		// 消费方提前退出时取消列举，避免 ListObjects 的协程泄漏
		listCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		for obj := range client.ListObjects(listCtx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if obj.Err != nil {
				yield(Item{}, fmt.Errorf("列举存储桶 '%s' 失败: %w", bucket, obj.Err))
				return
			}
			if strings.HasSuffix(obj.Key, "/") || !acceptExt(obj.Key, exts) {
				continue
			}
			key := obj.Key
			item := Item{
				Path:  fmt.Sprintf("s3://%s/%s", bucket, key),
				Topic: topicOf(path.Base(path.Dir(key))),
				Open: func(ctx context.Context) (io.ReadCloser, error) {
					return client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
				},
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// ZoteroLister 是 ZoteroSource 需要的最小接口。
type ZoteroLister interface {
	Items(ctx context.Context) iter.Seq2[zotero.Item, error]
}

// ZoteroSource 把 Zotero 文献转换为自带文本的条目，缺少标题或摘要的文献直接跳过。
func ZoteroSource(ctx context.Context, lister ZoteroLister) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		for zi, err := range lister.Items(ctx) {
			if err != nil {
				yield(Item{}, err)
				return
			}
			if zi.Title == "" || zi.Abstract == "" {
				log.Infof("[ZoteroSource] 缺少标题或摘要, 跳过: %s", zi.Key)
				continue
			}
			item := Item{
				Key:     zi.Key,
				Path:    zi.URL,
				Title:   zi.Title,
				Authors: zi.Authors,
				Text:    zi.Abstract,
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}
