package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/bookman/internal/book"
	"github.com/hitoshi/bookman/internal/model"
)

// BookServiceInterface は書籍ハンドラーが必要とするサービスインターフェース。
type BookServiceInterface interface {
	List(ctx context.Context, page, size int) ([]*model.Book, int, error)
	Search(ctx context.Context, query string, page, size int) ([]*model.Book, int, error)
	GetByID(ctx context.Context, bookID string) (*book.BookDetail, error)
	Create(ctx context.Context, input book.CreateBookInput) (*model.Book, error)
	Update(ctx context.Context, bookID string, input book.CreateBookInput) (*model.Book, error)
	Delete(ctx context.Context, bookID string) error
}

// BookHandler は書籍カタログのHTTPハンドラー。
type BookHandler struct {
	service BookServiceInterface
}

// NewBookHandler はBookHandlerを生成する。
func NewBookHandler(service BookServiceInterface) *BookHandler {
	return &BookHandler{
		service: service,
	}
}

// bookRequest は書籍登録・更新リクエストのボディ。
type bookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	Genre         string `json:"genre"`
	Description   string `json:"description"`
	CoverImageURL string `json:"cover_image_url"`
	PublishYear   *int   `json:"publish_year"`
}

// bookResponse は書籍情報のAPIレスポンス。
type bookResponse struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	ISBN          string  `json:"isbn,omitempty"`
	Genre         string  `json:"genre"`
	Description   string  `json:"description,omitempty"`
	CoverImageURL string  `json:"cover_image_url,omitempty"`
	PublishYear   *int    `json:"publish_year,omitempty"`
	AverageRating float64 `json:"average_rating"`
}

// bookListResponse は書籍一覧のAPIレスポンス。
type bookListResponse struct {
	Books []bookResponse `json:"books"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

// reviewResponse は書籍レビューのAPIレスポンス。
type reviewResponse struct {
	UserName string    `json:"user_name"`
	Rating   int       `json:"rating"`
	RatedAt  time.Time `json:"rated_at"`
}

// bookDetailResponse は書籍詳細のAPIレスポンス。
type bookDetailResponse struct {
	bookResponse
	FavoriteCount int              `json:"favorite_count"`
	Reviews       []reviewResponse `json:"reviews"`
	CoverDataURL  *string          `json:"cover_data_url,omitempty"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListBooks は書籍一覧を取得する。
// GET /api/books?page=&size=
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	page, size := parsePaging(r)

	books, total, err := h.service.List(r.Context(), page, size)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookListResponse(books, total, page, size))
}

// SearchBooks は書籍を検索する。
// GET /api/books/search?query=&page=&size=
func (h *BookHandler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	page, size := parsePaging(r)
	query := r.URL.Query().Get("query")

	books, total, err := h.service.Search(r.Context(), query, page, size)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookListResponse(books, total, page, size))
}

// GetBook は書籍詳細を取得する。
// GET /api/books/:id
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	detail, err := h.service.GetByID(r.Context(), bookID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	reviews := make([]reviewResponse, len(detail.Reviews))
	for i, rv := range detail.Reviews {
		reviews[i] = reviewResponse{
			UserName: rv.UserName,
			Rating:   rv.Rating,
			RatedAt:  rv.RatedAt,
		}
	}

	writeJSON(w, http.StatusOK, bookDetailResponse{
		bookResponse:  toBookResponse(detail.Book),
		FavoriteCount: detail.FavoriteCount,
		Reviews:       reviews,
		CoverDataURL:  detail.CoverDataURL,
	})
}

// CreateBook は書籍を登録する。
// POST /api/books
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}

	b, err := h.service.Create(r.Context(), toCreateInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookResponse(b))
}

// UpdateBook は書籍情報を更新する。
// PUT /api/books/:id
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}

	b, err := h.service.Update(r.Context(), bookID, toCreateInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookResponse(b))
}

// DeleteBook は書籍を削除する。
// DELETE /api/books/:id
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), bookID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// parsePaging はクエリパラメータからページ番号とサイズを取り出す。
// 不正な値は0として扱い、サービス層で正規化される。
func parsePaging(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	size, _ = strconv.Atoi(r.URL.Query().Get("size"))
	return page, size
}

// toCreateInput はリクエストボディをサービス層の入力に変換する。
func toCreateInput(req bookRequest) book.CreateBookInput {
	return book.CreateBookInput{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Genre:         req.Genre,
		Description:   req.Description,
		CoverImageURL: req.CoverImageURL,
		PublishYear:   req.PublishYear,
	}
}

// toBookResponse はmodel.BookからAPIレスポンスに変換する。
func toBookResponse(b *model.Book) bookResponse {
	return bookResponse{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		ISBN:          b.ISBN,
		Genre:         b.Genre,
		Description:   b.Description,
		CoverImageURL: b.CoverImageURL,
		PublishYear:   b.PublishYear,
		AverageRating: b.AverageRating,
	}
}

func toBookListResponse(books []*model.Book, total, page, size int) bookListResponse {
	results := make([]bookResponse, len(books))
	for i, b := range books {
		results[i] = toBookResponse(b)
	}
	return bookListResponse{
		Books: results,
		Total: total,
		Page:  page,
		Size:  size,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// unauthorizedError は認証コンテキスト欠落時のAPIError。
func unauthorizedError() *model.APIError {
	return &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeBookNotFound, model.ErrCodeUserNotFound, model.ErrCodeLibraryEntryNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateLibraryEntry, model.ErrCodeDuplicateBook, model.ErrCodeEmailAlreadyExists:
		return http.StatusConflict
	case model.ErrCodeInvalidCredentials, model.ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRating, model.ErrCodeInvalidRequest, model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeInvariantViolation:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
