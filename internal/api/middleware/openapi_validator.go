package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/api/openapi"
	apperrors "sphincs.io/sphincs/internal/pkg/errors"
	"sphincs.io/sphincs/internal/pkg/logger"
)

// contractOptions skips security schemes; JWTAuth and RequireRole own them.
var contractOptions = &openapi3filter.Options{
	AuthenticationFunc: func(context.Context, *openapi3filter.AuthenticationInput) error { return nil },
}

// MustOpenAPIValidator is NewOpenAPIValidator that panics on setup failure.
func MustOpenAPIValidator(basePath string) gin.HandlerFunc {
	mw, err := NewOpenAPIValidator(basePath)
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// NewOpenAPIValidator checks requests and responses of documented operations
// against the embedded contract. The contract paths are relative to basePath.
// Undocumented paths (/metrics) pass through untouched, and responses of
// handlers that failed through c.Error are left to ErrorHandler.
func NewOpenAPIValidator(basePath string) (gin.HandlerFunc, error) {
	doc, err := openapi.Load(context.Background())
	if err != nil {
		return nil, err
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build contract router: %w", err)
	}
	v := &contractValidator{router: router, base: cleanBasePath(basePath)}
	return v.handle, nil
}

type contractValidator struct {
	router routers.Router
	base   string
}

func (v *contractValidator) handle(c *gin.Context) {
	routed := v.routedRequest(c.Request)
	route, params, err := v.router.FindRoute(routed)
	switch {
	case errors.Is(err, routers.ErrPathNotFound):
		c.Next()
		return
	case errors.Is(err, routers.ErrMethodNotAllowed):
		rejectContract(c, http.StatusMethodNotAllowed, apperrors.CodeContractRoute, err.Error())
		return
	case err != nil:
		rejectContract(c, http.StatusBadRequest, apperrors.CodeContractRoute, err.Error())
		return
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    routed,
		PathParams: params,
		Route:      route,
		Options:    contractOptions,
	}
	err = openapi3filter.ValidateRequest(c.Request.Context(), input)
	// The filter drains the body and leaves a rewound copy on routed.
	c.Request.Body = routed.Body
	if err != nil {
		rejectContract(c, http.StatusBadRequest, apperrors.CodeContractRequest, err.Error())
		return
	}

	original := c.Writer
	rec := &responseRecorder{ResponseWriter: original, status: http.StatusOK}
	c.Writer = rec
	c.Next()
	c.Writer = original

	if len(c.Errors) > 0 && rec.body.Len() == 0 {
		return
	}
	v.checkResponse(c, input, rec)
	rec.flush()
}

// routedRequest shallow-copies r with the base path stripped from its URL.
func (v *contractValidator) routedRequest(r *http.Request) *http.Request {
	routed := new(http.Request)
	*routed = *r
	u := *r.URL
	u.Path = stripBasePath(v.base, u.Path)
	u.RawPath = stripBasePath(v.base, u.RawPath)
	routed.URL = &u
	return routed
}

func (v *contractValidator) checkResponse(c *gin.Context, input *openapi3filter.RequestValidationInput, rec *responseRecorder) {
	out := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: input,
		Status:                 rec.Status(),
		Header:                 rec.Header().Clone(),
		Options:                contractOptions,
	}
	if rec.body.Len() > 0 {
		out.SetBodyBytes(rec.body.Bytes())
	}
	if err := openapi3filter.ValidateResponse(c.Request.Context(), out); err != nil {
		logger.Error("Response violates API contract",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", rec.Status()),
			zap.String("request_id", GetRequestID(c.Request.Context())),
			zap.Error(err),
		)
		rec.replace(http.StatusInternalServerError,
			fmt.Sprintf(`{"success":false,"code":%q,"message":"response does not conform to OpenAPI contract"}`,
				apperrors.CodeContractResponse))
	}
}

func rejectContract(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"code":    code,
		"message": message,
	})
}

func cleanBasePath(basePath string) string {
	basePath = strings.Trim(strings.TrimSpace(basePath), "/")
	if basePath == "" {
		return ""
	}
	return "/" + basePath
}

func stripBasePath(base, path string) string {
	switch {
	case base == "" || path == "":
		return path
	case path == base:
		return "/"
	case strings.HasPrefix(path, base+"/"):
		return strings.TrimPrefix(path, base)
	}
	return path
}

// responseRecorder holds the handler's response until it has been checked.
type responseRecorder struct {
	gin.ResponseWriter
	body    bytes.Buffer
	status  int
	written bool
}

func (w *responseRecorder) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
}

func (w *responseRecorder) WriteHeaderNow() { w.written = true }

func (w *responseRecorder) Write(data []byte) (int, error) {
	w.written = true
	return w.body.Write(data)
}

func (w *responseRecorder) WriteString(s string) (int, error) { return w.Write([]byte(s)) }

func (w *responseRecorder) Status() int { return w.status }

func (w *responseRecorder) Size() int { return w.body.Len() }

func (w *responseRecorder) Written() bool { return w.written }

func (w *responseRecorder) replace(status int, jsonBody string) {
	w.status = status
	w.written = true
	w.body.Reset()
	w.body.WriteString(jsonBody)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
}

func (w *responseRecorder) flush() {
	w.ResponseWriter.WriteHeader(w.status)
	if w.body.Len() == 0 {
		return
	}
	if _, err := w.ResponseWriter.Write(w.body.Bytes()); err != nil {
		logger.Warn("failed to flush validated response", zap.Error(err))
	}
}
