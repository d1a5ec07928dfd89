// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// BrowseSessionCookieName はブラウジングセッションIDを保持するCookieの名前。
const BrowseSessionCookieName = "browse_session"

// browseSessionMaxAge はブラウジングセッションCookieの有効期間（秒）。
const browseSessionMaxAge = 7 * 24 * 60 * 60

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionIDContextKey はリクエストコンテキストにブラウジングセッションIDを格納するためのキー。
var sessionIDContextKey = contextKey("session_id")

// BrowseSessionConfig はブラウジングセッションミドルウェアの設定。
type BrowseSessionConfig struct {
	CookieSecure bool
}

// NewBrowseSessionMiddleware はCookieからブラウジングセッションIDを読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない、またはUUIDとして不正な場合は新しいIDを発行してCookieに設定する。
// 認証ではなく、絞り込み条件と評価の逐次化をブラウザ単位で束ねるためのもの。
func NewBrowseSessionMiddleware(config BrowseSessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(BrowseSessionCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					sessionID = id.String()
				}
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     BrowseSessionCookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   browseSessionMaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSessionID(r.Context(), sessionID)))
		})
	}
}

// SessionIDFromContext はリクエストコンテキストからブラウジングセッションIDを取得する。
// ブラウジングセッションミドルウェアを通過したリクエストでのみ有効。
func SessionIDFromContext(ctx context.Context) (string, error) {
	sessionID, ok := ctx.Value(sessionIDContextKey).(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return sessionID, nil
}

// ContextWithSessionID はコンテキストにブラウジングセッションIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}
