// Package imageload 按顺序尝试多种方式加载图片素材：内联 → blob → 直连 → 跨域代理
package imageload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"

	"MatchPoster/internal/interfaces"
	"MatchPoster/internal/model"
	"MatchPoster/internal/utils/httpclient"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

const maxImageBytes = 20 << 20

// ErrNotApplicable 当前策略不处理该引用，交给下一个
var ErrNotApplicable = errors.New("loader not applicable")

// Loader 单个加载策略
type Loader interface {
	Name() string
	Load(ctx context.Context, ref model.ImageRef) (image.Image, error)
}

// Chain 有序策略链，第一个成功的结果即返回
type Chain struct {
	loaders []Loader
	logger  *logrus.Logger
}

// NewChain 以给定顺序组装策略链
func NewChain(logger *logrus.Logger, loaders ...Loader) *Chain {
	return &Chain{loaders: loaders, logger: logger}
}

// Load 依次尝试，全部失败时返回 model.ErrAssetUnavailable
func (c *Chain) Load(ctx context.Context, ref model.ImageRef) (image.Image, error) {
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: empty reference", model.ErrAssetUnavailable)
	}
	var errs []error
	for _, l := range c.loaders {
		img, err := l.Load(ctx, ref)
		if err == nil {
			return img, nil
		}
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrAssetUnavailable, ctxErr)
		}
		c.logger.WithError(err).WithFields(logrus.Fields{
			"loader": l.Name(),
			"url":    shortURL(ref.URL),
		}).Debug("素材加载失败，尝试下一策略")
		errs = append(errs, fmt.Errorf("%s: %w", l.Name(), err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no loader for %s", model.ErrAssetUnavailable, shortURL(ref.URL))
	}
	return nil, fmt.Errorf("%w: %v", model.ErrAssetUnavailable, errors.Join(errs...))
}

// Decode 解码任意支持格式，按 EXIF 旋转
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %w", err)
	}
	return img, nil
}

// ========== 内联 ==========

type inlineLoader struct{}

// Inline 处理内联字节与 data URL
func Inline() Loader { return inlineLoader{} }

func (inlineLoader) Name() string { return "inline" }

func (inlineLoader) Load(_ context.Context, ref model.ImageRef) (image.Image, error) {
	if ref.IsInline() {
		return Decode(ref.Data)
	}
	if strings.HasPrefix(ref.URL, "data:") {
		parsed, err := model.ParseImageRef(ref.URL)
		if err != nil {
			return nil, err
		}
		return Decode(parsed.Data)
	}
	return nil, ErrNotApplicable
}

// ========== blob ==========

type blobLoader struct {
	store interfaces.BlobStore
}

// Blob 从本服务的 blob 存储读取 blob: 引用
func Blob(store interfaces.BlobStore) Loader { return blobLoader{store: store} }

func (blobLoader) Name() string { return "blob" }

func (l blobLoader) Load(ctx context.Context, ref model.ImageRef) (image.Image, error) {
	key, ok := ref.BlobKey()
	if !ok || l.store == nil {
		return nil, ErrNotApplicable
	}
	data, _, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// ========== 直连 / 代理 ==========

type httpLoader struct {
	name     string
	client   *http.Client
	proxyURL string // 非空时把原地址改写为代理地址
}

// Direct 直接请求原地址
func Direct(client *http.Client) Loader {
	return &httpLoader{name: "direct", client: client}
}

// Proxied 通过图片代理（如 https://wsrv.nl/?url=）请求，用于跨域或临时失败
func Proxied(client *http.Client, proxyURL string) Loader {
	return &httpLoader{name: "proxied", client: client, proxyURL: proxyURL}
}

func (l *httpLoader) Name() string { return l.name }

func (l *httpLoader) Load(ctx context.Context, ref model.ImageRef) (image.Image, error) {
	if !isHTTP(ref.URL) {
		return nil, ErrNotApplicable
	}
	target := ref.URL
	if l.proxyURL != "" {
		rewritten, ok := ProxyRewrite(l.proxyURL, ref.URL)
		if !ok {
			return nil, ErrNotApplicable
		}
		target = rewritten
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := httpclient.ReadLimited(resp.Body, maxImageBytes)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// ProxyRewrite 把 raw 改写为代理地址；data URL 或已经走代理的地址不改写
func ProxyRewrite(proxyURL, raw string) (string, bool) {
	if proxyURL == "" || raw == "" || strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, proxyURL) {
		return "", false
	}
	if u, err := url.Parse(proxyURL); err == nil && u.Host != "" && strings.Contains(raw, u.Host) {
		return "", false
	}
	return proxyURL + url.QueryEscape(raw), true
}

// NewDefaultChain 标准顺序：内联 → blob → 直连 → 代理
func NewDefaultChain(store interfaces.BlobStore, client *http.Client, proxyURL string, logger *logrus.Logger) *Chain {
	loaders := []Loader{Inline(), Blob(store), Direct(client)}
	if proxyURL != "" {
		loaders = append(loaders, Proxied(client, proxyURL))
	}
	return NewChain(logger, loaders...)
}

func isHTTP(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

func shortURL(raw string) string {
	if len(raw) > 80 {
		return raw[:80] + "..."
	}
	return raw
}
