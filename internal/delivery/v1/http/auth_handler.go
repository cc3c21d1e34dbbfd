package http

import (
	"net/http"
	"strings"

	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
)

type AuthHandler struct {
	userUsecase usecase.UserUC
	logger      logger.Logger
}

func NewAuthHandler(userUsecase usecase.UserUC, logger logger.Logger) *AuthHandler {
	return &AuthHandler{userUsecase: userUsecase, logger: logger}
}

// issueToken
//
//	@Summary		Получение токена доступа
//	@Description	Принимает JSON {email, password} или форму OAuth2 password grant (username, password)
//	@Tags			auth
//	@Accept			json
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			credentials	body		TokenRequest	true	"Учётные данные"
//	@Success		200			{object}	TokenResponse
//	@Failure		401			{object}	CustomError
//	@Router			/auth/token [post]
func (a *AuthHandler) issueToken(w http.ResponseWriter, r *http.Request) {
	var creds TokenRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			WriteError(w, r, a.logger, e.Wrap(err.Error(), e.ErrStatusBadRequest))
			return
		}
		if gt := r.PostForm.Get("grant_type"); gt != "" && gt != "password" {
			WriteError(w, r, a.logger, e.Wrap("unsupported grant_type "+gt, e.ErrStatusBadRequest))
			return
		}
		creds = TokenRequest{Email: r.PostForm.Get("username"), Password: r.PostForm.Get("password")}
	} else if err := decodeJSON(w, r, &creds); err != nil {
		WriteError(w, r, a.logger, err)
		return
	}

	res, err := a.userUsecase.Authenticate(r.Context(), usecase.NewAuthenticateReq(creds.Email, creds.Password))
	if err != nil {
		WriteError(w, r, a.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	WriteSuccess(w, http.StatusOK, NewTokenResponse(res))
}

// revokeToken
//
//	@Summary	Выход: отзыв текущего токена
//	@Tags		auth
//	@Security	BearerAuth
//	@Success	204
//	@Failure	401	{object}	CustomError
//	@Router		/auth/token [delete]
func (a *AuthHandler) revokeToken(w http.ResponseWriter, r *http.Request) {
	if err := a.userUsecase.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		WriteError(w, r, a.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// getMe
//
//	@Summary	Текущий пользователь
//	@Tags		users
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	UserResponse
//	@Failure	401	{object}	CustomError
//	@Router		/users/me [get]
func (a *AuthHandler) getMe(w http.ResponseWriter, r *http.Request) {
	view, err := a.userUsecase.GetMe(r.Context(), CallerFromContext(r.Context()))
	if err != nil {
		WriteError(w, r, a.logger, err)
		return
	}

	WriteSuccess(w, http.StatusOK, NewUserResponse(view))
}
