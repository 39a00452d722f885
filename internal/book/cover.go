// Package book は書籍カタログのドメインロジックを提供する。
package book

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// CoverFetcherService はカバー画像取得のインターフェース。
type CoverFetcherService interface {
	// FetchCover は指定URLからカバー画像を取得する。
	// URLがHTMLページの場合はog:imageメタタグから画像URLを解決して取得する。
	// 取得失敗時はnilデータと空MIMEを返す（エラーは返さない）。
	FetchCover(ctx context.Context, coverURL string) (data []byte, mimeType string, err error)
}

// CoverFetcher はカバー画像取得機能の実装。
type CoverFetcher struct {
	ssrfGuard SSRFValidator
	timeout   time.Duration
	maxSize   int64
}

// NewCoverFetcher はCoverFetcherの新しいインスタンスを生成する。
func NewCoverFetcher(ssrfGuard SSRFValidator, timeout time.Duration, maxSize int64) *CoverFetcher {
	return &CoverFetcher{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// FetchCover は指定URLからカバー画像を取得する。
// 取得失敗時はnilデータと空MIMEを返す（カバーなしとして保存）。
func (f *CoverFetcher) FetchCover(ctx context.Context, coverURL string) ([]byte, string, error) {
	if coverURL == "" {
		return nil, "", nil
	}

	body, contentType, ok := f.fetch(ctx, coverURL)
	if !ok {
		return nil, "", nil
	}

	mimeType := extractMimeType(contentType)
	if isImageMime(mimeType) {
		return body, mimeType, nil
	}

	// HTMLページの場合はog:imageから画像URLを解決して再取得
	if strings.Contains(mimeType, "html") {
		imageURL := extractOGImageURL(body, coverURL)
		if imageURL == "" {
			slog.Warn("カバー取得: og:image未検出", "url", coverURL)
			return nil, "", nil
		}
		return f.fetchImage(ctx, imageURL)
	}

	slog.Warn("カバー取得: 画像以外のContent-Type", "url", coverURL, "contentType", contentType)
	return nil, "", nil
}

// fetchImage は画像URLから画像データのみを取得する（HTML解決は行わない）。
func (f *CoverFetcher) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	body, contentType, ok := f.fetch(ctx, imageURL)
	if !ok {
		return nil, "", nil
	}

	mimeType := extractMimeType(contentType)
	if !isImageMime(mimeType) {
		slog.Warn("カバー取得: og:image先が画像ではない", "url", imageURL, "contentType", contentType)
		return nil, "", nil
	}

	return body, mimeType, nil
}

// fetch はSSRF検証付きでURLを取得し、ボディとContent-Typeを返す。
func (f *CoverFetcher) fetch(ctx context.Context, rawURL string) (body []byte, contentType string, ok bool) {
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(rawURL); err != nil {
			slog.Warn("カバー取得: SSRFブロック", "url", rawURL, "error", err)
			return nil, "", false
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		slog.Warn("カバー取得: リクエスト作成失敗", "url", rawURL, "error", err)
		return nil, "", false
	}
	req.Header.Set("User-Agent", "Bookman/1.0 Book Catalog")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("カバー取得: HTTPリクエスト失敗", "url", rawURL, "error", err)
		return nil, "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("カバー取得: HTTPステータス異常", "url", rawURL, "status", resp.StatusCode)
		return nil, "", false
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		slog.Warn("カバー取得: レスポンス読み取り失敗", "url", rawURL, "error", err)
		return nil, "", false
	}

	if int64(len(data)) > f.maxSize {
		slog.Warn("カバー取得: サイズ超過", "url", rawURL, "size", len(data))
		return nil, "", false
	}

	return data, resp.Header.Get("Content-Type"), true
}

// getHTTPClient はHTTPクライアントを取得する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (f *CoverFetcher) getHTTPClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(f.timeout, f.maxSize)
	}
	return &http.Client{Timeout: f.timeout}
}

// extractOGImageURL はHTMLのheadタグからog:imageメタタグの画像URLを抽出する。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func extractOGImageURL(htmlBody []byte, baseURL string) string {
	baseU, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return ""
			}

			if tagName != "meta" || !hasAttr {
				continue
			}

			var property, content string
			for {
				key, val, more := tokenizer.TagAttr()
				k := strings.ToLower(string(key))
				v := string(val)
				switch k {
				case "property", "name":
					property = strings.ToLower(v)
				case "content":
					content = v
				}
				if !more {
					break
				}
			}

			if property != "og:image" || content == "" {
				continue
			}

			return resolveURL(baseU, content)

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return ""
			}
		}
	}
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		parts := strings.SplitN(contentType, ";", 2)
		return strings.TrimSpace(strings.ToLower(parts[0]))
	}
	return strings.ToLower(mediaType)
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// compile-time interface check
var _ CoverFetcherService = (*CoverFetcher)(nil)
