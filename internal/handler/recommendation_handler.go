package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/bookman/internal/middleware"
	"github.com/hitoshi/bookman/internal/model"
)

// RecommendationServiceInterface はレコメンデーションハンドラーが必要とするサービスインターフェース。
type RecommendationServiceInterface interface {
	GetRecommendations(ctx context.Context, userID string) ([]*model.Book, error)
}

// RecommendationHandler はレコメンデーションのHTTPハンドラー。
type RecommendationHandler struct {
	service RecommendationServiceInterface
}

// NewRecommendationHandler はRecommendationHandlerを生成する。
func NewRecommendationHandler(service RecommendationServiceInterface) *RecommendationHandler {
	return &RecommendationHandler{
		service: service,
	}
}

// recommendationListResponse はレコメンデーションのAPIレスポンス。
type recommendationListResponse struct {
	Books []bookResponse `json:"books"`
}

// GetRecommendations はユーザーへのおすすめ書籍を取得する。
// スコアの高い順に最大10冊を返す。
// GET /api/recommendations
func (h *RecommendationHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	books, err := h.service.GetRecommendations(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]bookResponse, len(books))
	for i, b := range books {
		results[i] = toBookResponse(b)
	}

	writeJSON(w, http.StatusOK, recommendationListResponse{Books: results})
}
