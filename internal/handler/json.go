package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxJSONBodySize = 1 << 20

var errEmptyBody = errors.New("请求体不能为空")

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// decode 读取 JSON 请求体并按 validate 标签校验，返回的错误可以直接展示给用户
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errEmptyBody
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("请求体不是合法的 JSON")
		case errors.As(err, &typeErr):
			return fmt.Errorf("字段 %s 的类型错误", typeErr.Field)
		case errors.As(err, &maxBytesErr):
			return fmt.Errorf("请求体不能超过 %d 字节", maxBytesErr.Limit)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("未知字段 %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return err
		}
	}

	return h.validate.Struct(dst)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	// 先编码到缓冲区，编码失败时还能返回 500
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("无法编码响应", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "服务器内部错误", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) successResponse(w http.ResponseWriter, r *http.Request, msg string, data any) {
	h.writeJSON(w, r, http.StatusOK, Response{Success: true, Message: msg, Data: data})
}

// 业务错误也使用 200，由 success 字段区分
func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, msg string) {
	h.writeJSON(w, r, http.StatusOK, Response{Success: false, Message: msg})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.errorResponse(w, r, validationErrors[0].Translate(h.translator))
		return
	}
	h.errorResponse(w, r, err.Error())
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("服务器内部错误", "method", r.Method, "path", r.URL.Path, "error", err)
	h.writeJSON(w, r, http.StatusInternalServerError, Response{Success: false, Message: "服务器内部错误"})
}
