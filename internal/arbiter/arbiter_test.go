package arbiter_test

import (
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/internal/arbiter"
	"arbiter/internal/crypto"
	"arbiter/internal/domain"
	"arbiter/internal/util/logging"
)

var fastKDF = domain.KDFParams{KDF: domain.KDFArgon2id, Time: 1, MemoryKiB: 64, Threads: 1}

func newArbiter(t *testing.T) *arbiter.Arbiter {
	t.Helper()
	a := arbiter.New(arbiter.WithLogger(logging.NewTestLogger(t)), arbiter.WithKDFParams(fastKDF))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func openArbiter(t *testing.T, dir string) *arbiter.Arbiter {
	t.Helper()
	a := newArbiter(t)
	require.NoError(t, a.Init(dir, nil))
	return a
}

func fingerprintOf(t *testing.T, a *arbiter.Arbiter, h domain.Handle) domain.Fingerprint {
	t.Helper()
	b, err := a.UserInfo(h, domain.FieldFingerprint)
	require.NoError(t, err)
	fp, err := domain.ParseFingerprint(string(b))
	require.NoError(t, err)
	return fp
}

func TestAliceBob(t *testing.T) {
	a := openArbiter(t, t.TempDir())

	alice, err := a.CreateUser("alice", "alice-pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	bob, err := a.CreateUser("bob", "bob-pass", domain.AlgorithmRSA2048)
	require.NoError(t, err)

	bobFP := fingerprintOf(t, a, bob)
	bobKey, err := a.UserInfo(bob, domain.FieldPublicKey)
	require.NoError(t, err)

	_, err = a.AddKey(bobKey, bobFP, "bob")
	require.NoError(t, err, "re-adding bob's self-registered key is idempotent")
	require.NoError(t, a.AddTarget(alice, bobFP))

	sig, err := a.Sign(bob, []byte("hello"))
	require.NoError(t, err)

	got, err := a.Verify(alice, arbiter.SignerFingerprint(bobFP), []byte("hello"), sig)
	require.NoError(t, err)
	assert.Equal(t, domain.Good, got)

	got, err = a.Verify(alice, arbiter.SignerFingerprint(bobFP), []byte("tampered"), sig)
	require.NoError(t, err)
	assert.Equal(t, domain.Bogus, got)

	got, err = a.Verify(alice, arbiter.SignerTarget(0), []byte("hello"), sig)
	require.NoError(t, err)
	assert.Equal(t, domain.Good, got)
}

func TestVerify_FailsClosed(t *testing.T) {
	a := openArbiter(t, t.TempDir())
	alice, err := a.CreateUser("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	bob, err := a.CreateUser("bob", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	bobFP := fingerprintOf(t, a, bob)

	sig, err := a.Sign(bob, []byte("hello"))
	require.NoError(t, err)

	// Bob's key is registered and the signature is valid, but alice never
	// made bob a target.
	_, err = a.Verify(alice, arbiter.SignerFingerprint(bobFP), []byte("hello"), sig)
	assert.ErrorIs(t, err, domain.ErrUntrustedSigner)
	_, err = a.Verify(alice, arbiter.SignerTarget(0), []byte("hello"), sig)
	assert.ErrorIs(t, err, domain.ErrUntrustedSigner)
	_, err = a.Verify(alice, arbiter.SignerRef{}, []byte("hello"), sig)
	assert.ErrorIs(t, err, domain.ErrUntrustedSigner)

	// Malformed input to an untrusted signer is still refused as untrusted.
	_, err = a.Verify(alice, arbiter.SignerFingerprint(bobFP), []byte("hello"), []byte("junk"))
	assert.ErrorIs(t, err, domain.ErrUntrustedSigner)
}

func TestVerify_SelfAndMalformed(t *testing.T) {
	a := openArbiter(t, t.TempDir())
	alice, err := a.CreateUser("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	bob, err := a.CreateUser("bob", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	require.NoError(t, a.AddTarget(alice, fingerprintOf(t, a, bob)))

	sig, err := a.Sign(alice, []byte("note to self"))
	require.NoError(t, err)

	got, err := a.Verify(alice, arbiter.SelfSigner(), []byte("note to self"), sig)
	require.NoError(t, err)
	assert.Equal(t, domain.Good, got)

	got, err = a.Verify(alice, arbiter.SignerFingerprint(fingerprintOf(t, a, alice)), []byte("note to self"), sig)
	require.NoError(t, err)
	assert.Equal(t, domain.Good, got)

	_, err = a.Verify(alice, arbiter.SelfSigner(), []byte("x"), []byte("not armoured"))
	assert.ErrorIs(t, err, domain.ErrMalformedSignature)

	short := crypto.EncodeSignature(domain.AlgorithmEd25519, []byte{1, 2, 3})
	_, err = a.Verify(alice, arbiter.SelfSigner(), []byte("x"), short)
	assert.ErrorIs(t, err, domain.ErrMalformedSignature)

	armored, err := a.Sign(alice, []byte("x"))
	require.NoError(t, err)
	_, rawSig, err := crypto.DecodeSignature(armored)
	require.NoError(t, err)
	headerless := pem.EncodeToMemory(&pem.Block{Type: crypto.SignaturePEMBlockType, Bytes: rawSig})
	_, err = a.Verify(alice, arbiter.SelfSigner(), []byte("x"), headerless)
	assert.ErrorIs(t, err, domain.ErrMalformedSignature, "missing scheme header")
	unknown := pem.EncodeToMemory(&pem.Block{
		Type:    crypto.SignaturePEMBlockType,
		Headers: map[string]string{crypto.SignaturePEMBlockAlgorithmHeader: "bogus"},
		Bytes:   rawSig,
	})
	_, err = a.Verify(alice, arbiter.SelfSigner(), []byte("x"), unknown)
	assert.ErrorIs(t, err, domain.ErrMalformedSignature, "unknown scheme header")

	// A known scheme that does not match the key is a negative result.
	mismatched := crypto.EncodeSignature(domain.AlgorithmDilithium3, rawSig)
	got, err = a.Verify(alice, arbiter.SelfSigner(), []byte("x"), mismatched)
	require.NoError(t, err)
	assert.Equal(t, domain.Bogus, got)

	// Alice's signature checked against bob's key is a normal negative result.
	got, err = a.Verify(alice, arbiter.SignerTarget(0), []byte("note to self"), sig)
	require.NoError(t, err)
	assert.Equal(t, domain.Bogus, got)
}

func TestAddKey_IdempotentAndConflict(t *testing.T) {
	a := openArbiter(t, t.TempDir())
	carol, err := crypto.Generate(domain.AlgorithmEd25519, nil)
	require.NoError(t, err)
	defer carol.Destroy()
	dave, err := crypto.Generate(domain.AlgorithmEd25519, nil)
	require.NoError(t, err)
	defer dave.Destroy()

	id1, err := a.AddKey(carol.PublicKey(), carol.Fingerprint(), "carol")
	require.NoError(t, err)
	id2, err := a.AddKey(carol.PublicKey(), carol.Fingerprint(), "carol")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	_, err = a.AddKey(dave.PublicKey(), carol.Fingerprint(), "dave")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAddTarget_Errors(t *testing.T) {
	a := openArbiter(t, t.TempDir())
	alice, err := a.CreateUser("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)

	assert.ErrorIs(t, a.AddTarget(alice, domain.Fingerprint{9}), domain.ErrUnknownFingerprint)
	assert.ErrorIs(t, a.AddTarget(domain.NewHandle(7, 0), fingerprintOf(t, a, alice)), domain.ErrUnknownIdentity)
}

func TestNotInitialized(t *testing.T) {
	a := newArbiter(t)
	_, err := a.CreateUser("alice", "pass", domain.AlgorithmEd25519)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = a.UserInfo(1, domain.FieldFingerprint)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = a.AddKey(nil, domain.Fingerprint{}, "x")
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.ErrorIs(t, a.AddTarget(1, domain.Fingerprint{}), domain.ErrNotInitialized)
	_, err = a.Sign(1, nil)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = a.Verify(1, arbiter.SelfSigner(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.NoError(t, a.Close())
}

func TestInit_IdempotentAndConflict(t *testing.T) {
	dir := t.TempDir()
	a := openArbiter(t, dir)
	h, err := a.CreateUser("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)

	require.NoError(t, a.Init(filepath.Join(dir, "."), nil))
	_, err = a.UserInfo(h, domain.FieldDisplayName)
	assert.NoError(t, err, "re-init on the same directory keeps state")

	assert.ErrorIs(t, a.Init(t.TempDir(), nil), domain.ErrReinitConflict)
}

func TestInit_KnownKeys(t *testing.T) {
	kp, err := crypto.Generate(domain.AlgorithmEd25519, nil)
	require.NoError(t, err)
	defer kp.Destroy()

	a := newArbiter(t)
	require.NoError(t, a.Init(t.TempDir(), []domain.KnownKey{
		{Fingerprint: kp.Fingerprint(), PublicKey: kp.PublicKey(), Label: "erin"},
	}))
	keys, err := a.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "erin", keys[0].Label)

	b := newArbiter(t)
	err = b.Init(t.TempDir(), []domain.KnownKey{{Fingerprint: domain.Fingerprint{1}, PublicKey: kp.PublicKey(), Label: "x"}})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Empty(t, b.Dir(), "failed init leaves the arbiter uninitialized")
}

func TestTeardownPreservesIdentities(t *testing.T) {
	dir := t.TempDir()
	a := openArbiter(t, dir)
	alice, err := a.CreateUser("alice", "alice-pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	bob, err := a.CreateUser("bob", "bob-pass", domain.AlgorithmDilithium3)
	require.NoError(t, err)
	bobFP := fingerprintOf(t, a, bob)
	require.NoError(t, a.AddTarget(alice, bobFP))

	before := map[string][2][]byte{}
	for _, h := range []domain.Handle{alice, bob} {
		name, _ := a.UserInfo(h, domain.FieldDisplayName)
		fp, _ := a.UserInfo(h, domain.FieldFingerprint)
		pub, _ := a.UserInfo(h, domain.FieldPublicKey)
		before[string(name)] = [2][]byte{fp, pub}
	}
	require.NoError(t, a.Close())
	_, err = a.UserInfo(alice, domain.FieldFingerprint)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)

	b := openArbiter(t, dir)
	for name, want := range before {
		h, err := b.UserByName(name)
		require.NoError(t, err)
		fp, err := b.UserInfo(h, domain.FieldFingerprint)
		require.NoError(t, err)
		pub, err := b.UserInfo(h, domain.FieldPublicKey)
		require.NoError(t, err)
		assert.Equal(t, want[0], fp, name)
		assert.Equal(t, want[1], pub, name)
	}

	// Restored identities are locked until unlocked with their passphrase.
	bobH, err := b.UserByName("bob")
	require.NoError(t, err)
	_, err = b.Sign(bobH, []byte("hello"))
	assert.ErrorIs(t, err, domain.ErrLockedKey)
	assert.ErrorIs(t, b.Unlock(bobH, "alice-pass"), domain.ErrBadPassphrase)
	require.NoError(t, b.Unlock(bobH, "bob-pass"))
	sig, err := b.Sign(bobH, []byte("hello"))
	require.NoError(t, err)

	// Trust edges survive too.
	aliceH, err := b.UserByName("alice")
	require.NoError(t, err)
	got, err := b.Verify(aliceH, arbiter.SignerTarget(0), []byte("hello"), sig)
	require.NoError(t, err)
	assert.Equal(t, domain.Good, got)
}

func TestDeleteUserAndRemoveKey(t *testing.T) {
	dir := t.TempDir()
	a := openArbiter(t, dir)
	alice, err := a.CreateUser("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	bob, err := a.CreateUser("bob", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	aliceFP, bobFP := fingerprintOf(t, a, alice), fingerprintOf(t, a, bob)
	require.NoError(t, a.AddTarget(alice, bobFP))

	assert.ErrorIs(t, a.RemoveKey(bobFP), domain.ErrFingerprintInUse, "trusted by alice")
	assert.ErrorIs(t, a.RemoveKey(aliceFP), domain.ErrFingerprintInUse, "alice's own key")

	// Deleting bob keeps his entry because alice still trusts it.
	require.NoError(t, a.DeleteUser(bob))
	_, err = a.UserInfo(bob, domain.FieldFingerprint)
	assert.ErrorIs(t, err, domain.ErrUnknownIdentity)
	targets, err := a.Targets(alice)
	require.NoError(t, err)
	assert.Equal(t, []domain.Fingerprint{bobFP}, targets)

	// Deleting alice drops her edges and her entry; bob's entry becomes removable.
	require.NoError(t, a.DeleteUser(alice))
	require.NoError(t, a.RemoveKey(bobFP))
	keys, err := a.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	records, err := filepath.Glob(filepath.Join(dir, "identities", "*.json"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeleteUser_KeepsPinnedKey(t *testing.T) {
	dir := t.TempDir()
	a := openArbiter(t, dir)
	alice, err := a.CreateUser("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	bob, err := a.CreateUser("bob", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	bobFP := fingerprintOf(t, a, bob)
	bobKey, err := a.UserInfo(bob, domain.FieldPublicKey)
	require.NoError(t, err)

	_, err = a.AddKey(bobKey, bobFP, "bob-from-alice")
	require.NoError(t, err)
	require.NoError(t, a.DeleteUser(bob))

	keys, err := a.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.NoError(t, a.AddTarget(alice, bobFP), "explicitly added key outlives its identity")

	// The pin is persisted: after a restart, dropping alice's edge still
	// leaves bob's entry in place until it is removed explicitly.
	require.NoError(t, a.Close())
	b := openArbiter(t, dir)
	aliceH, err := b.UserByName("alice")
	require.NoError(t, err)
	require.NoError(t, b.DeleteUser(aliceH))
	keys, err = b.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, bobFP, keys[0].Fingerprint)
	assert.True(t, keys[0].Pinned)
	require.NoError(t, b.RemoveKey(bobFP))
}

func TestRestore_DropsEdgesOfMissingIdentity(t *testing.T) {
	dir := t.TempDir()
	a := openArbiter(t, dir)
	alice, err := a.CreateUser("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	aliceID, err := a.UserInfo(alice, domain.FieldID)
	require.NoError(t, err)

	carol, err := crypto.Generate(domain.AlgorithmEd25519, nil)
	require.NoError(t, err)
	defer carol.Destroy()
	_, err = a.AddKey(carol.PublicKey(), carol.Fingerprint(), "carol")
	require.NoError(t, err)
	require.NoError(t, a.AddTarget(alice, carol.Fingerprint()))
	require.NoError(t, a.Close())

	// Alice's record disappears behind the arbiter's back.
	require.NoError(t, os.Remove(filepath.Join(dir, "identities", string(aliceID)+".json")))

	b := openArbiter(t, dir)
	users, err := b.Users()
	require.NoError(t, err)
	assert.Empty(t, users)
	require.NoError(t, b.RemoveKey(carol.Fingerprint()), "no identity trusts carol any more")
	keys, err := b.Keys()
	require.NoError(t, err)
	for _, e := range keys {
		assert.NotEqual(t, carol.Fingerprint(), e.Fingerprint)
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	a := openArbiter(t, t.TempDir())
	_, err := a.CreateUser("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	_, err = a.CreateUser("alice", "other", domain.AlgorithmEd25519)
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	users, err := a.Users()
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestInit_UnwritableDirIsIOError(t *testing.T) {
	parent := t.TempDir()
	file := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	a := newArbiter(t)
	assert.ErrorIs(t, a.Init(filepath.Join(file, "sub"), nil), domain.ErrIO)
}

func TestConcurrentUse(t *testing.T) {
	a := openArbiter(t, t.TempDir())
	alice, err := a.CreateUser("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	bob, err := a.CreateUser("bob", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	require.NoError(t, a.AddTarget(alice, fingerprintOf(t, a, bob)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := a.CreateUser(fmt.Sprintf("user-%d", i), "pass", domain.AlgorithmEd25519)
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			msg := []byte(fmt.Sprintf("message %d", i))
			sig, err := a.Sign(bob, msg)
			if !assert.NoError(t, err) {
				return
			}
			got, err := a.Verify(alice, arbiter.SignerTarget(0), msg, sig)
			assert.NoError(t, err)
			assert.Equal(t, domain.Good, got)
		}(i)
	}
	wg.Wait()

	users, err := a.Users()
	require.NoError(t, err)
	assert.Len(t, users, 10)
}

func TestParseSignerRef(t *testing.T) {
	fp := domain.Fingerprint{0xab}
	for in, want := range map[string]arbiter.SignerRef{
		"self":      arbiter.SelfSigner(),
		"#3":        arbiter.SignerTarget(3),
		fp.String(): arbiter.SignerFingerprint(fp),
	} {
		got, err := arbiter.ParseSignerRef(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
		assert.Equal(t, in, got.String())
	}
	for _, bad := range []string{"#-1", "#x", "zz"} {
		_, err := arbiter.ParseSignerRef(bad)
		assert.Error(t, err, bad)
	}
}
