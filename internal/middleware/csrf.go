package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/campusmart/internal/model"
)

const (
	// csrfCookieName はダブルサブミット用トークンのCookie名。フロントエンドが読むためHttpOnlyにしない。
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"

	csrfTokenBytes      = 32
	defaultCSRFTokenTTL = 24 * time.Hour
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
	// TokenTTL はトークンCookieの有効期間。0の場合は24時間。
	TokenTTL time.Duration
}

// csrfRejection はトークン検証の失敗理由。ログのreason属性に出力する。
type csrfRejection string

const (
	csrfOK            csrfRejection = ""
	csrfMissingCookie csrfRejection = "missing_cookie"
	csrfMissingHeader csrfRejection = "missing_header"
	csrfTokenMismatch csrfRejection = "token_mismatch"
)

// csrfGuard はトークンCookieの発行と照合を行う。
type csrfGuard struct {
	config CSRFConfig
}

func newCSRFGuard(config CSRFConfig) *csrfGuard {
	if config.TokenTTL <= 0 {
		config.TokenTTL = defaultCSRFTokenTTL
	}
	return &csrfGuard{config: config}
}

// NewCSRFMiddleware はダブルサブミットCookie方式のCSRF対策ミドルウェアを返す。
// GET/HEAD/OPTIONSは検証せず、トークンCookieがなければ発行する。
// 出品作成・問い合わせ・閲覧条件の更新やクリアなどの状態変更はCookieとヘッダーの一致を必須とする。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	g := newCSRFGuard(config)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if _, ok := g.cookieToken(r); !ok {
					// 発行失敗はログのみ。次の安全なリクエストで再試行される
					g.issue(w, r)
				}
				next.ServeHTTP(w, r)
				return
			}

			if reason := g.verify(r); reason != csrfOK {
				g.reject(w, r, reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler は GET /api/csrf-token のハンドラーを返す。
// Cookieに有効なトークンがあればそれを、なければ新しく発行したトークンを {"token": ...} で返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	g := newCSRFGuard(config)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := g.cookieToken(r)
		if !ok {
			var err error
			if token, err = g.issue(w, r); err != nil {
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		json.NewEncoder(w).Encode(struct {
			Token string `json:"token"`
		}{Token: token})
	})
}

// cookieToken はリクエストのトークンCookieを返す。
func (g *csrfGuard) cookieToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(csrfCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// verify はCookieとヘッダーのトークンを定数時間で照合する。
func (g *csrfGuard) verify(r *http.Request) csrfRejection {
	cookie, ok := g.cookieToken(r)
	if !ok {
		return csrfMissingCookie
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return csrfMissingHeader
	}
	if subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
		return csrfTokenMismatch
	}
	return csrfOK
}

// issue は新しいトークンを生成してCookieに設定する。
func (g *csrfGuard) issue(w http.ResponseWriter, r *http.Request) (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		slog.ErrorContext(r.Context(), "failed to generate CSRF token", slog.String("error", err.Error()))
		return "", err
	}
	token := hex.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   g.config.CookieDomain,
		MaxAge:   int(g.config.TokenTTL / time.Second),
		HttpOnly: false,
		Secure:   g.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// reject は検証失敗をログに残し、403 CSRF_FAILED を返す。
func (g *csrfGuard) reject(w http.ResponseWriter, r *http.Request, reason csrfRejection) {
	attrs := []slog.Attr{
		slog.String("reason", string(reason)),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}
	if sid, err := SessionIDFromContext(r.Context()); err == nil {
		attrs = append(attrs, slog.String("session_id", sid))
	}
	slog.LogAttrs(r.Context(), slog.LevelWarn, "CSRF validation failed", attrs...)

	WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFFailedError())
}

// isSafeMethod は状態を変更しないHTTPメソッドかを返す。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
