// Package zotero 封装了 Zotero Web API v3 的文献条目读取。
package zotero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"note-search-go/internal/config"
	"note-search-go/pkg/log"
)

// ErrUnavailable 表示 Zotero 接口不可用，属于致命错误。
var ErrUnavailable = errors.New("zotero unavailable")

// Item 是从 Zotero 读取的一篇文献。
type Item struct {
	Key      string
	Title    string
	Abstract string
	Authors  []string
	URL      string
}

type apiItem struct {
	Key  string `json:"key"`
	Data struct {
		Title        string `json:"title"`
		AbstractNote string `json:"abstractNote"`
		URL          string `json:"url"`
		Creators     []struct {
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
			Name      string `json:"name"`
		} `json:"creators"`
	} `json:"data"`
}

// Client 是 Zotero Web API 的客户端。
type Client struct {
	cfg        config.ZoteroConfig
	httpClient *http.Client
}

// NewClient 创建一个新的 Zotero 客户端，缺少 library_id 或 api_key 时返回 config.ErrInvalid。
func NewClient(cfg config.ZoteroConfig, hc *http.Client) (*Client, error) {
	if cfg.LibraryID == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: 需要 zotero.library_id 与 zotero.api_key（或 ZOTERO_LIBRARY_ID / ZOTERO_API_KEY）", config.ErrInvalid)
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = 100
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, httpClient: hc}, nil
}

// Items 按页惰性读取配置的条目类型。请求失败时产出一个 ErrUnavailable 错误并结束序列。
func (c *Client) Items(ctx context.Context) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		start := 0
		for {
			page, total, err := c.fetchPage(ctx, start)
			if err != nil {
				yield(Item{}, err)
				return
			}
			for _, raw := range page {
				if !yield(toItem(raw), nil) {
					return
				}
			}
			start += len(page)
			if len(page) == 0 || start >= total {
				log.Debugf("[Zotero] 读取完成, 共 %d 条", start)
				return
			}
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, start int) ([]apiItem, int, error) {
	prefix := "users"
	if c.cfg.LibraryType == "group" {
		prefix = "groups"
	}
	q := url.Values{}
	q.Set("format", "json")
	q.Set("start", strconv.Itoa(start))
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	if c.cfg.ItemType != "" {
		q.Set("itemType", c.cfg.ItemType)
	}
	endpoint := fmt.Sprintf("%s/%s/%s/items?%s", c.cfg.BaseURL, prefix, url.PathEscape(c.cfg.LibraryID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: 创建请求失败: %w", ErrUnavailable, err)
	}
	req.Header.Set("Zotero-API-Key", c.cfg.APIKey)
	req.Header.Set("Zotero-API-Version", "3")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, 0, fmt.Errorf("%w: 返回 %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page []apiItem
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, 0, fmt.Errorf("%w: 解析响应失败: %w", ErrUnavailable, err)
	}
	total, err := strconv.Atoi(resp.Header.Get("Total-Results"))
	if err != nil {
		total = start + len(page)
	}
	return page, total, nil
}

func toItem(raw apiItem) Item {
	authors := make([]string, 0, len(raw.Data.Creators))
	for _, cr := range raw.Data.Creators {
		name := strings.TrimSpace(cr.FirstName + " " + cr.LastName)
		if name == "" {
			name = cr.Name
		}
		if name != "" {
			authors = append(authors, name)
		}
	}
	return Item{
		Key:      raw.Key,
		Title:    strings.TrimSpace(raw.Data.Title),
		Abstract: strings.TrimSpace(raw.Data.AbstractNote),
		Authors:  authors,
		URL:      raw.Data.URL,
	}
}
