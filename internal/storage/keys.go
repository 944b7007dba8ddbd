// Package storage blob 存储实现：本地文件系统与 Firebase Storage
package storage

import (
	"path"
	"strings"
)

// Asset 名称
const (
	AssetPoster     = "poster"
	AssetBackground = "background"
)

var extByMime = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// Key 生成按用户与记录隔离的 blob key：posters/<owner>/<record>/<asset>.<ext>
func Key(ownerID, recordID, asset, mimeType string) string {
	ext, ok := extByMime[strings.ToLower(mimeType)]
	if !ok {
		ext = ".bin"
	}
	return path.Join("posters", segment(ownerID), segment(recordID), asset+ext)
}

// MimeFromKey 由扩展名推断 content type
func MimeFromKey(key string) string {
	if m, ok := mimeByExt[strings.ToLower(path.Ext(key))]; ok {
		return m
	}
	return "application/octet-stream"
}

// segment 去掉会破坏路径层级的字符
func segment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return "_"
	}
	return s
}
