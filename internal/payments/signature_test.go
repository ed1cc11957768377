package payments

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignatureRoundTrip(t *testing.T) {
	secret := []byte("whsec_test")
	body := []byte(`{"id":"evt_1","type":"payment.completed"}`)
	sig := Sign(secret, body)
	require.NoError(t, VerifySignature(secret, body, sig))
}

func TestSignatureRejectsTamperedBody(t *testing.T) {
	secret := []byte("whsec_test")
	sig := Sign(secret, []byte(`{"amount":100}`))
	err := VerifySignature(secret, []byte(`{"amount":999}`), sig)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestSignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	sig := Sign([]byte("other-secret"), body)
	require.ErrorIs(t, VerifySignature([]byte("whsec_test"), body, sig), ErrBadSignature)
}

func TestSignatureRejectsMissing(t *testing.T) {
	require.ErrorIs(t, VerifySignature([]byte("whsec_test"), []byte("{}"), ""), ErrBadSignature)
	require.ErrorIs(t, VerifySignature(nil, []byte("{}"), "deadbeef"), ErrBadSignature)
	require.ErrorIs(t, VerifySignature([]byte("whsec_test"), []byte("{}"), "not-hex"), ErrBadSignature)
}
