package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
)

// Verifier checks payment gateway signatures. It is the sole gate before an
// order is created; no order is ever persisted from an unverified claim.
type Verifier interface {
	Verify(orderRef, paymentRef, providedSignature string) error
}

type hmacVerifier struct {
	secret []byte
}

// NewVerifier builds an HMAC-SHA256 verifier with the shared gateway secret.
func NewVerifier(secret string) (Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment webhook secret required")
	}
	return &hmacVerifier{secret: []byte(secret)}, nil
}

// Verify recomputes the signature over orderRef + "|" + paymentRef and
// compares in constant time. A mismatch is a trust error, never retried.
func (v *hmacVerifier) Verify(orderRef, paymentRef, providedSignature string) error {
	if orderRef == "" || paymentRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order and payment references required")
	}
	if providedSignature == "" {
		return pkgerrors.New(pkgerrors.CodePaymentNotVerified, "payment signature missing")
	}

	expected := Sign(v.secret, orderRef, paymentRef)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(providedSignature))) {
		return pkgerrors.New(pkgerrors.CodePaymentNotVerified, "payment signature mismatch")
	}
	return nil
}

// Sign produces the canonical hex signature for the given references.
func Sign(secret []byte, orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}
