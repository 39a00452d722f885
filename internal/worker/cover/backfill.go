// Package cover は表紙画像のバックグラウンド補完処理を提供する。
package cover

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/bookman/internal/book"
	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// Collector は表紙取得メトリクスの記録インターフェース。
type Collector interface {
	RecordCoverFetchSuccess(bookID string)
	RecordCoverFetchFailure(bookID string, reason string)
}

// Backfill は表紙URLが設定済みで画像未取得の書籍を定期的に補完するワーカー。
// 登録時のベストエフォート取得に失敗した書籍を拾い直す。
type Backfill struct {
	bookRepo       repository.BookRepository
	fetcher        book.CoverFetcherService
	collector      Collector
	logger         *slog.Logger
	batchSize      int
	maxConcurrency int
}

// NewBackfill はBackfillの新しいインスタンスを生成する。
// batchSizeが0以下の場合はデフォルト値20、maxConcurrencyが0以下の場合は5を使用する。
func NewBackfill(
	bookRepo repository.BookRepository,
	fetcher book.CoverFetcherService,
	collector Collector,
	logger *slog.Logger,
	batchSize int,
	maxConcurrency int,
) *Backfill {
	if batchSize <= 0 {
		batchSize = 20
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Backfill{
		bookRepo:       bookRepo,
		fetcher:        fetcher,
		collector:      collector,
		logger:         logger,
		batchSize:      batchSize,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでワーカーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (b *Backfill) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.logger.Info("表紙補完ワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("batch_size", b.batchSize),
		slog.Int("max_concurrency", b.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := b.RunOnce(ctx); err != nil {
		b.logger.Error("表紙補完サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("表紙補完ワーカーを停止しました")
			return
		case <-ticker.C:
			if err := b.RunOnce(ctx); err != nil {
				b.logger.Error("表紙補完サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は表紙未取得の書籍を1バッチ取得し、並列で表紙を補完する。
// semaphoreパターンで最大並列数を制御する。
func (b *Backfill) RunOnce(ctx context.Context) error {
	start := time.Now()

	books, err := b.bookRepo.ListMissingCover(ctx, b.batchSize)
	if err != nil {
		return err
	}

	if len(books) == 0 {
		b.logger.Info("表紙補完対象の書籍はありません")
		return nil
	}

	b.logger.Info("表紙補完サイクルを開始します",
		slog.Int("book_count", len(books)),
	)

	sem := make(chan struct{}, b.maxConcurrency)
	var wg sync.WaitGroup

	for _, bk := range books {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(bk *model.Book) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			b.fetchOne(ctx, bk)
		}(bk)
	}

	wg.Wait()

	duration := time.Since(start)
	b.logger.Info("表紙補完サイクルが完了しました",
		slog.Int("book_count", len(books)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// fetchOne は1冊分の表紙を取得して保存する。
func (b *Backfill) fetchOne(ctx context.Context, bk *model.Book) {
	data, mimeType, err := b.fetcher.FetchCover(ctx, bk.CoverImageURL)
	if err != nil {
		// 取得系の失敗はnilデータで返るため、ここに来るのは想定外のエラーのみ
		b.logger.Error("表紙取得に失敗しました",
			slog.String("book_id", bk.ID),
			slog.String("cover_url", bk.CoverImageURL),
			slog.String("error", err.Error()),
		)
		b.recordFailure(bk.ID, "fetch_error")
		return
	}

	if len(data) == 0 || mimeType == "" {
		b.logger.Warn("表紙を取得できませんでした",
			slog.String("book_id", bk.ID),
			slog.String("cover_url", bk.CoverImageURL),
		)
		b.recordFailure(bk.ID, "not_available")
		return
	}

	if err := b.bookRepo.UpdateCover(ctx, bk.ID, data, mimeType); err != nil {
		b.logger.Error("表紙の保存に失敗しました",
			slog.String("book_id", bk.ID),
			slog.String("error", err.Error()),
		)
		b.recordFailure(bk.ID, "store_error")
		return
	}

	if b.collector != nil {
		b.collector.RecordCoverFetchSuccess(bk.ID)
	}
	b.logger.Info("表紙を補完しました",
		slog.String("book_id", bk.ID),
		slog.String("mime", mimeType),
		slog.Int("size", len(data)),
	)
}

func (b *Backfill) recordFailure(bookID, reason string) {
	if b.collector != nil {
		b.collector.RecordCoverFetchFailure(bookID, reason)
	}
}
