package book

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
	"github.com/hitoshi/bookman/internal/security"
)

// defaultPageSize は一覧取得のデフォルト件数。
const defaultPageSize = 20

// maxPageSize は一覧取得の最大件数。
const maxPageSize = 100

// BookDetail は書籍詳細のドメインオブジェクト。
// お気に入り数とレビュー一覧を含む。
type BookDetail struct {
	Book          *model.Book
	FavoriteCount int
	Reviews       []repository.Review
	CoverDataURL  *string
}

// CreateBookInput は書籍登録の入力。
type CreateBookInput struct {
	Title         string
	Author        string
	ISBN          string
	Genre         string
	Description   string
	CoverImageURL string
	PublishYear   *int
}

// Service は書籍カタログのサービス層。
// 一覧・検索・詳細取得と登録・更新・削除のビジネスロジックを提供する。
type Service struct {
	bookRepo     repository.BookRepository
	libraryRepo  repository.LibraryRepository
	sanitizer    security.ContentSanitizerService
	ssrfGuard    SSRFValidator
	coverFetcher CoverFetcherService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	bookRepo repository.BookRepository,
	libraryRepo repository.LibraryRepository,
	sanitizer security.ContentSanitizerService,
	ssrfGuard SSRFValidator,
	coverFetcher CoverFetcherService,
) *Service {
	return &Service{
		bookRepo:     bookRepo,
		libraryRepo:  libraryRepo,
		sanitizer:    sanitizer,
		ssrfGuard:    ssrfGuard,
		coverFetcher: coverFetcher,
	}
}

// List は書籍一覧をページネーション付きで返す。
func (s *Service) List(ctx context.Context, page, size int) ([]*model.Book, int, error) {
	offset, limit := normalizePaging(page, size)

	books, total, err := s.bookRepo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("書籍一覧の取得に失敗しました: %w", err)
	}
	return books, total, nil
}

// Search はタイトル・著者・ジャンルの部分一致で書籍を検索する。
// 空クエリは通常の一覧取得として扱う。
func (s *Service) Search(ctx context.Context, query string, page, size int) ([]*model.Book, int, error) {
	if query == "" {
		return s.List(ctx, page, size)
	}

	offset, limit := normalizePaging(page, size)

	books, total, err := s.bookRepo.Search(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("書籍の検索に失敗しました: %w", err)
	}
	return books, total, nil
}

// GetByID は書籍詳細をお気に入り数・レビュー付きで返す。
func (s *Service) GetByID(ctx context.Context, bookID string) (*BookDetail, error) {
	b, err := s.bookRepo.FindByID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("書籍の取得に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewBookNotFoundError(bookID)
	}

	favoriteCount, err := s.libraryRepo.CountFavoritesByBookID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("お気に入り数の取得に失敗しました: %w", err)
	}

	reviews, err := s.libraryRepo.ListReviewsByBookID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("レビューの取得に失敗しました: %w", err)
	}

	detail := &BookDetail{
		Book:          b,
		FavoriteCount: favoriteCount,
		Reviews:       reviews,
	}

	// カバー画像データがある場合はdata URLに変換
	if len(b.CoverData) > 0 && b.CoverMime != "" {
		dataURL := fmt.Sprintf("data:%s;base64,%s", b.CoverMime, base64.StdEncoding.EncodeToString(b.CoverData))
		detail.CoverDataURL = &dataURL
	}

	return detail, nil
}

// Create は書籍を登録する。
// 説明文はサニタイズし、カバーURLはSSRF検証を通過したもののみ受け付ける。
// カバー画像の取得はベストエフォートで、失敗しても登録自体は成功する。
func (s *Service) Create(ctx context.Context, input CreateBookInput) (*model.Book, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	if err := s.checkDuplicate(ctx, input); err != nil {
		return nil, err
	}

	now := time.Now()
	b := &model.Book{
		ID:            uuid.New().String(),
		Title:         input.Title,
		Author:        input.Author,
		ISBN:          input.ISBN,
		Genre:         input.Genre,
		Description:   s.sanitizer.Sanitize(input.Description),
		CoverImageURL: input.CoverImageURL,
		PublishYear:   input.PublishYear,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// カバー画像の取得（ベストエフォート）
	if input.CoverImageURL != "" && s.coverFetcher != nil {
		data, mimeType, _ := s.coverFetcher.FetchCover(ctx, input.CoverImageURL)
		b.CoverData = data
		b.CoverMime = mimeType
	}

	if err := s.bookRepo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("書籍の登録に失敗しました: %w", err)
	}

	slog.Info("書籍を登録しました",
		"book_id", b.ID,
		"title", b.Title,
		"has_cover", len(b.CoverData) > 0,
	)

	return b, nil
}

// Update は書籍情報を更新する。平均評価は評価集計サービスの管轄のため変更しない。
func (s *Service) Update(ctx context.Context, bookID string, input CreateBookInput) (*model.Book, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	b, err := s.bookRepo.FindByID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("書籍の取得に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewBookNotFoundError(bookID)
	}

	coverChanged := b.CoverImageURL != input.CoverImageURL

	b.Title = input.Title
	b.Author = input.Author
	b.ISBN = input.ISBN
	b.Genre = input.Genre
	b.Description = s.sanitizer.Sanitize(input.Description)
	b.CoverImageURL = input.CoverImageURL
	b.PublishYear = input.PublishYear
	b.UpdatedAt = time.Now()

	// カバーURLが変わった場合は画像を再取得（ベストエフォート）
	if coverChanged {
		b.CoverData = nil
		b.CoverMime = ""
		if input.CoverImageURL != "" && s.coverFetcher != nil {
			data, mimeType, _ := s.coverFetcher.FetchCover(ctx, input.CoverImageURL)
			b.CoverData = data
			b.CoverMime = mimeType
		}
	}

	if err := s.bookRepo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("書籍の更新に失敗しました: %w", err)
	}

	return b, nil
}

// Delete は書籍を削除する。関連する読書リスト項目はCASCADE削除される。
func (s *Service) Delete(ctx context.Context, bookID string) error {
	b, err := s.bookRepo.FindByID(ctx, bookID)
	if err != nil {
		return fmt.Errorf("書籍の取得に失敗しました: %w", err)
	}
	if b == nil {
		return model.NewBookNotFoundError(bookID)
	}

	if err := s.bookRepo.Delete(ctx, bookID); err != nil {
		return fmt.Errorf("書籍の削除に失敗しました: %w", err)
	}

	slog.Info("書籍を削除しました", "book_id", bookID, "title", b.Title)
	return nil
}

// validateInput は書籍入力の必須項目とカバーURLを検証する。
func (s *Service) validateInput(input CreateBookInput) error {
	if input.Title == "" {
		return model.NewInvalidRequestError("タイトルは必須です")
	}
	if input.Author == "" {
		return model.NewInvalidRequestError("著者は必須です")
	}
	if input.Genre == "" {
		return model.NewInvalidRequestError("ジャンルは必須です")
	}

	if input.CoverImageURL != "" && s.ssrfGuard != nil {
		if err := s.ssrfGuard.ValidateURL(input.CoverImageURL); err != nil {
			return model.NewSSRFBlockedError()
		}
	}

	return nil
}

// checkDuplicate はISBNおよびタイトル+著者の重複を検査する。
func (s *Service) checkDuplicate(ctx context.Context, input CreateBookInput) error {
	if input.ISBN != "" {
		exists, err := s.bookRepo.ExistsByISBN(ctx, input.ISBN)
		if err != nil {
			return fmt.Errorf("重複チェックに失敗しました: %w", err)
		}
		if exists {
			return model.NewDuplicateBookError("同じISBNの書籍が既に登録されています")
		}
	}

	exists, err := s.bookRepo.ExistsByTitleAndAuthor(ctx, input.Title, input.Author)
	if err != nil {
		return fmt.Errorf("重複チェックに失敗しました: %w", err)
	}
	if exists {
		return model.NewDuplicateBookError("同じタイトル・著者の書籍が既に登録されています")
	}

	return nil
}

// normalizePaging はページ番号とサイズをoffset/limitに正規化する。
func normalizePaging(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return (page - 1) * size, size
}
