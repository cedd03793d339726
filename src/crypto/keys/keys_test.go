package keys

import (
	"crypto/ecdsa"
	"reflect"
	"testing"
)

func TestParsePrivateKey(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	nKey, err := ParsePrivateKey(DumpPrivateKey(key))
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if nKey.D.Cmp(key.D) != 0 || !reflect.DeepEqual(EncodeCompressed(&nKey.PublicKey), EncodeCompressed(&key.PublicKey)) {
		t.Fatalf("Keys do not match")
	}

	if _, err := ParsePrivateKey([]byte{1, 2, 3}); err == nil {
		t.Fatalf("ParsePrivateKey should fail on short input")
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	key, _ := GenerateECDSAKey()

	enc := EncodeCompressed(&key.PublicKey)
	if len(enc) != CompressedSize {
		t.Fatalf("compressed key should be %d bytes, got %d", CompressedSize, len(enc))
	}

	pub, err := DecodePublicKey(enc)
	if err != nil {
		t.Fatal(err)
	}
	if pub.X.Cmp(key.X) != 0 || pub.Y.Cmp(key.Y) != 0 {
		t.Fatalf("decoded key does not match")
	}

	if _, err := DecodePublicKey(enc[:20]); err != ErrInvalidPublicKey {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}
}

func TestSingleSignatureWitness(t *testing.T) {
	key, _ := GenerateECDSAKey()
	msg := []byte("J'aime mieux forger mon ame que la meubler")

	sig, err := Sign(key, msg)
	if err != nil {
		t.Fatal(err)
	}

	verification := SignatureScript(&key.PublicKey)
	if err := VerifyWitness(msg, SignatureInvocation(sig), verification); err != nil {
		t.Fatalf("valid witness rejected: %v", err)
	}

	if err := VerifyWitness([]byte("other"), SignatureInvocation(sig), verification); err != ErrWitnessVerification {
		t.Fatalf("expected ErrWitnessVerification, got %v", err)
	}
}

func TestMultiSignatureWitness(t *testing.T) {
	var privs []*ecdsa.PrivateKey
	var pubs []*ecdsa.PublicKey
	for i := 0; i < 4; i++ {
		k, _ := GenerateECDSAKey()
		privs = append(privs, k)
		pubs = append(pubs, &k.PublicKey)
	}

	verification, err := MultiSigScript(3, pubs)
	if err != nil {
		t.Fatal(err)
	}

	m, keys, err := parseVerification(verification)
	if err != nil {
		t.Fatal(err)
	}
	if m != 3 || len(keys) != 4 {
		t.Fatalf("parsed m=%d n=%d, want 3 and 4", m, len(keys))
	}

	// sign with the first three keys in script order
	msg := []byte("header")
	var sigs [][]byte
	for _, pub := range pubs[:3] {
		for _, k := range privs {
			if k.X.Cmp(pub.X) == 0 {
				sig, _ := Sign(k, msg)
				sigs = append(sigs, sig)
			}
		}
	}

	if err := VerifyWitness(msg, SignatureInvocation(sigs...), verification); err != nil {
		t.Fatalf("valid multi-signature witness rejected: %v", err)
	}

	if err := VerifyWitness(msg, SignatureInvocation(sigs[:2]...), verification); err != ErrWitnessVerification {
		t.Fatalf("expected ErrWitnessVerification with 2 signatures, got %v", err)
	}
}

func TestMultiSigScriptBounds(t *testing.T) {
	k, _ := GenerateECDSAKey()
	if _, err := MultiSigScript(2, []*ecdsa.PublicKey{&k.PublicKey}); err == nil {
		t.Fatalf("m > n should fail")
	}
}
