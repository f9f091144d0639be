package handler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/hitoshi/agriguard/internal/authflow"
	"github.com/hitoshi/agriguard/internal/identity"
	"github.com/hitoshi/agriguard/internal/middleware"
	"github.com/hitoshi/agriguard/internal/model"
)

// phoneErrorResponse は電話番号フローのエラーレスポンス。
// 統一エラーフォーマットに現在の状態を加える。
type phoneErrorResponse struct {
	middleware.ErrorResponseBody
	State string `json:"state"`
}

// mapAuthError は認証フローのエラーをHTTPステータスとAPIErrorに変換する。
// IdPが拒否した場合はIdPのメッセージをそのまま表示する。
func mapAuthError(err error, method model.AuthMethod) (int, *model.APIError) {
	var cooldown *authflow.CooldownError
	switch {
	case errors.Is(err, authflow.ErrSessionWrite):
		return http.StatusInternalServerError, model.NewSessionWriteError()
	case errors.Is(err, authflow.ErrInvalidPhone):
		return http.StatusBadRequest, model.NewInvalidPhoneError()
	case errors.Is(err, authflow.ErrMissingCode):
		return http.StatusBadRequest, model.NewMissingCodeError()
	case errors.Is(err, authflow.ErrMissingCredentials):
		return http.StatusBadRequest, model.NewInvalidCredentialInputError()
	case errors.Is(err, authflow.ErrInvalidMode):
		return http.StatusBadRequest, model.NewInvalidModeError("")
	case errors.Is(err, authflow.ErrMissingAuthCode):
		return http.StatusBadRequest, model.NewFederatedFailedError("")
	case errors.Is(err, authflow.ErrBusy):
		return http.StatusConflict, model.NewBusyError()
	case errors.Is(err, authflow.ErrNoPendingCode):
		return http.StatusConflict, model.NewNoPendingCodeError()
	case errors.As(err, &cooldown):
		return http.StatusTooManyRequests, model.NewResendCooldownError(retryAfterSeconds(cooldown))
	case errors.Is(err, authflow.ErrTooManyAttempts):
		return http.StatusTooManyRequests, model.NewTooManyAttemptsError()
	case errors.Is(err, authflow.ErrInvalidCode):
		return http.StatusUnauthorized, model.NewInvalidCodeError()
	case errors.Is(err, authflow.ErrSendFailed):
		return sendFailureStatus(err), model.NewOTPSendFailedError(identity.ProviderMessage(err))
	}

	var perr *identity.ProviderError
	if errors.As(err, &perr) {
		if method == model.AuthMethodFederated {
			return http.StatusUnauthorized, model.NewFederatedFailedError(perr.Message)
		}
		return http.StatusUnauthorized, model.NewAuthFailedError(perr.Message)
	}

	// IdPに到達できない場合
	if method == model.AuthMethodFederated {
		return http.StatusBadGateway, model.NewFederatedFailedError("")
	}
	return http.StatusBadGateway, model.NewAuthFailedError("")
}

// sendFailureStatus はOTP送信失敗のステータスを返す。IdPが拒否した場合は400、到達できない場合は502。
func sendFailureStatus(err error) int {
	var perr *identity.ProviderError
	if errors.As(err, &perr) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func retryAfterSeconds(e *authflow.CooldownError) int {
	sec := int(math.Ceil(e.RetryAfter.Seconds()))
	if sec < 1 {
		sec = 1
	}
	return sec
}

// writeAuthError は認証エラーを統一エラーフォーマットで書き込む。
// リクエストが既に終了している場合は何も書き込まない。
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error, method model.AuthMethod) {
	if errors.Is(err, authflow.ErrDiscarded) {
		return
	}

	status, apiErr := mapAuthError(err, method)
	if status >= http.StatusInternalServerError {
		slog.Error("authentication failed", slog.String("method", string(method)), slog.String("error", err.Error()))
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}

// writePhoneError は電話番号フローのエラーを現在の状態とともに書き込む。
func (h *AuthHandler) writePhoneError(w http.ResponseWriter, clientID string, err error) {
	if errors.Is(err, authflow.ErrDiscarded) {
		return
	}

	status, apiErr := mapAuthError(err, model.AuthMethodPhone)
	if status >= http.StatusInternalServerError {
		slog.Error("phone authentication failed",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
	}

	var cooldown *authflow.CooldownError
	if errors.As(err, &cooldown) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(cooldown)))
	}

	writeJSON(w, status, phoneErrorResponse{
		ErrorResponseBody: middleware.NewErrorResponseBody(apiErr),
		State:             h.phone.State(clientID).String(),
	})
}
