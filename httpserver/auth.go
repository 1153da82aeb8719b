package httpserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/flashbots/go-utils/signature"
	"github.com/ruteri/proof-compliance-registry/api"
	"github.com/ruteri/proof-compliance-registry/interfaces"
)

type callerKey struct{}

var errMissingSignature = errors.New("missing signature header")

// CallerFromContext returns the authenticated caller stored by RequireSignature.
func CallerFromContext(ctx context.Context) (interfaces.AccountID, bool) {
	caller, ok := ctx.Value(callerKey{}).(interfaces.AccountID)
	return caller, ok
}

// RequireSignature authenticates the request by recovering the signer of the body from
// the signature header. Unsigned or mis-signed requests get 401 and never reach next.
func (h *Handler) RequireSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, api.MaxBodySize))
		if err != nil {
			h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Code: api.CodeBadRequest, Err: err})
			return
		}

		header := r.Header.Get(api.SignatureHeader)
		if header == "" {
			h.writeError(w, &RequestError{StatusCode: http.StatusUnauthorized, Code: api.CodeUnauthorized, Err: errMissingSignature})
			return
		}

		signer, err := signature.Verify(header, body)
		if err != nil {
			h.log.Debug("Rejected request signature", "err", err)
			h.writeError(w, &RequestError{StatusCode: http.StatusUnauthorized, Code: api.CodeUnauthorized, Err: err})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := context.WithValue(r.Context(), callerKey{}, interfaces.AccountIDFromAddress(signer))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
