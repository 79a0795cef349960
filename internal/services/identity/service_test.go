package identity_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/internal/crypto"
	"arbiter/internal/domain"
	"arbiter/internal/services/identity"
	"arbiter/internal/util/logging"
)

var fastKDF = domain.KDFParams{KDF: domain.KDFArgon2id, Time: 1, MemoryKiB: 64, Threads: 1}

func newService(t *testing.T, opts ...identity.Option) *identity.Service {
	t.Helper()
	opts = append([]identity.Option{
		identity.WithKDFParams(fastKDF),
		identity.WithLogger(logging.NewTestLogger(t)),
	}, opts...)
	s := identity.New(opts...)
	t.Cleanup(s.Close)
	return s
}

func TestCreate_AndInfo(t *testing.T) {
	s := newService(t)
	id, err := s.Create("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	assert.True(t, id.Unlocked)
	assert.NotZero(t, id.Handle)

	fp, err := s.Info(id.Handle, domain.FieldFingerprint)
	require.NoError(t, err)
	assert.Equal(t, id.Fingerprint.String(), string(fp))

	pub, err := s.Info(id.Handle, domain.FieldPublicKey)
	require.NoError(t, err)
	derived, err := crypto.FingerprintOf(pub)
	require.NoError(t, err)
	assert.Equal(t, id.Fingerprint, derived)

	name, err := s.Info(id.Handle, domain.FieldDisplayName)
	require.NoError(t, err)
	assert.Equal(t, "alice", string(name))

	_, err = s.Info(id.Handle, "shoe_size")
	assert.ErrorIs(t, err, domain.ErrUnknownField)
	_, err = s.Info(domain.NewHandle(42, 0), domain.FieldFingerprint)
	assert.ErrorIs(t, err, domain.ErrUnknownIdentity)
	_, err = s.Get(0)
	assert.ErrorIs(t, err, domain.ErrUnknownIdentity)
}

func TestCreate_Rejections(t *testing.T) {
	s := newService(t)
	_, err := s.Create("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)

	_, err = s.Create("alice", "pass", domain.AlgorithmEd25519)
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	_, err = s.Create("", "pass", domain.AlgorithmEd25519)
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = s.Create("bob", "", domain.AlgorithmEd25519)
	assert.ErrorIs(t, err, domain.ErrWeakPassphrase)

	_, err = s.Create("bob", "pass", "rot13")
	assert.ErrorIs(t, err, domain.ErrKeyGen)

	// A failed create releases the name.
	_, err = s.Create("bob", "pass", domain.AlgorithmEd25519)
	assert.NoError(t, err)
}

func TestCreate_StrictPassphrase(t *testing.T) {
	s := newService(t, identity.WithStrictPassphrase(true))
	_, err := s.Create("alice", "password", domain.AlgorithmEd25519)
	assert.ErrorIs(t, err, domain.ErrWeakPassphrase)

	_, err = s.Create("alice", "Str0ng!Passphrase", domain.AlgorithmEd25519)
	assert.NoError(t, err)
}

func TestSign_LockUnlock(t *testing.T) {
	s := newService(t)
	id, err := s.Create("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)

	sig, err := s.Sign(id.Handle, []byte("hello"))
	require.NoError(t, err)
	ok, err := crypto.Verify([]byte("hello"), sig, id.PublicKey)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Lock(id.Handle))
	_, err = s.Sign(id.Handle, []byte("hello"))
	assert.ErrorIs(t, err, domain.ErrLockedKey)

	assert.ErrorIs(t, s.Unlock(id.Handle, "nope"), domain.ErrBadPassphrase)
	require.NoError(t, s.Unlock(id.Handle, "pass"))
	require.NoError(t, s.Unlock(id.Handle, "pass"), "unlocking twice is a no-op")

	_, err = s.Sign(id.Handle, []byte("hello"))
	assert.NoError(t, err)
}

func TestDelete_InvalidatesHandle(t *testing.T) {
	s := newService(t)
	alice, err := s.Create("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)

	_, err = s.Delete(alice.Handle)
	require.NoError(t, err)
	_, err = s.Get(alice.Handle)
	assert.ErrorIs(t, err, domain.ErrUnknownIdentity)
	_, err = s.Sign(alice.Handle, []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUnknownIdentity)

	// The slot is reused under a new generation; the stale handle stays dead.
	bob, err := s.Create("bob", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	assert.Equal(t, alice.Handle.Slot(), bob.Handle.Slot())
	assert.NotEqual(t, alice.Handle, bob.Handle)
	_, err = s.Get(alice.Handle)
	assert.ErrorIs(t, err, domain.ErrUnknownIdentity)

	// The name is free again.
	_, err = s.Create("alice", "pass", domain.AlgorithmEd25519)
	assert.NoError(t, err)
}

func TestRecordRestore(t *testing.T) {
	s := newService(t)
	alice, err := s.Create("alice", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)
	rec, err := s.Record(alice.Handle)
	require.NoError(t, err)

	restored := newService(t)
	require.NoError(t, restored.Restore([]domain.IdentityRecord{rec}))

	h, err := restored.ByName("alice")
	require.NoError(t, err)
	got, err := restored.Get(h)
	require.NoError(t, err)
	assert.Equal(t, alice.Fingerprint, got.Fingerprint)
	assert.Equal(t, alice.PublicKey, got.PublicKey)
	assert.Equal(t, alice.ID, got.ID)
	assert.False(t, got.Unlocked, "restored identities start locked")

	_, err = restored.Sign(h, []byte("x"))
	assert.ErrorIs(t, err, domain.ErrLockedKey)
	require.NoError(t, restored.Unlock(h, "pass"))
	_, err = restored.Sign(h, []byte("x"))
	assert.NoError(t, err)

	assert.ErrorIs(t, restored.Restore([]domain.IdentityRecord{rec}), domain.ErrDuplicateName)

	tampered := rec
	tampered.DisplayName = "mallory"
	tampered.Fingerprint = crypto.EncodeFingerprint(domain.Fingerprint{1})
	assert.ErrorIs(t, newService(t).Restore([]domain.IdentityRecord{tampered}), domain.ErrConflict)
}

func TestHandles_OrderAndClose(t *testing.T) {
	s := newService(t)
	var want []domain.Handle
	for _, n := range []string{"a", "b", "c"} {
		id, err := s.Create(n, "pass", domain.AlgorithmEd25519)
		require.NoError(t, err)
		want = append(want, id.Handle)
	}
	assert.Equal(t, want, s.Handles())

	s.Close()
	assert.Empty(t, s.Handles())
	_, err := s.Sign(want[0], []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUnknownIdentity)
}

func TestConcurrentCreateAndSign(t *testing.T) {
	s := newService(t)
	signer, err := s.Create("signer", "pass", domain.AlgorithmEd25519)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := s.Create(fmt.Sprintf("user-%d", i), "pass", domain.AlgorithmEd25519)
			errs <- err
		}(i)
		go func() {
			defer wg.Done()
			_, err := s.Sign(signer.Handle, []byte("concurrent"))
			errs <- err
		}()
	}
	// Racing creates of one name: exactly one wins.
	var dup sync.WaitGroup
	wins := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		dup.Add(1)
		go func() {
			defer dup.Done()
			if _, err := s.Create("contested", "pass", domain.AlgorithmEd25519); err == nil {
				wins <- struct{}{}
			} else {
				assert.ErrorIs(t, err, domain.ErrDuplicateName)
			}
		}()
	}
	wg.Wait()
	dup.Wait()
	close(errs)
	close(wins)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, wins, 1)
	assert.Len(t, s.Handles(), 10)
}
