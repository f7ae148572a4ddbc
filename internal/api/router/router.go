package router

import (
	"context"
	"crypto/subtle"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"ai-recruiter-go/internal/api/handler"
)

// RegisterRoutes 注册API路由。
// apiKey非空时对筛选接口启用Bearer鉴权，健康检查始终放行。
func RegisterRoutes(h *server.Hertz, screeningHandler *handler.ScreeningHandler, apiKey string) {
	api := h.Group("/api/v1")

	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	screening := api.Group("/screening")
	if apiKey != "" {
		screening.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1, nil
			}),
			keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
				ctx.JSON(consts.StatusUnauthorized, utils.H{"error": "未授权的访问"})
				ctx.Abort()
			}),
		))
	}

	screening.POST("/analyze", screeningHandler.Analyze)
	screening.POST("/analyze/async", screeningHandler.AnalyzeAsync)
	screening.GET("/tasks/:task_id", screeningHandler.GetTask)
}
