package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	servermocks "github.com/dtroode/observer-server/internal/mocks"
	"github.com/dtroode/observer-server/internal/model"
	"github.com/dtroode/observer-server/internal/testutil"
)

type passwordFixture struct {
	*sessionFixture
	notifier *servermocks.Notifier
	password *Password
	sent     []model.VerificationMessage
}

func newPasswordFixture(t *testing.T) *passwordFixture {
	t.Helper()
	sf := newSessionFixture(t)
	sf.allowAll()

	f := &passwordFixture{sessionFixture: sf, notifier: &servermocks.Notifier{}}
	f.notifier.On("SendPasswordReset", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			f.sent = append(f.sent, args.Get(1).(model.VerificationMessage))
		}).
		Return(nil).Maybe()

	f.password = NewPassword(sf.store.Principals(), sf.store.PasswordResets(), f.notifier,
		NewCredentials(bcrypt.MinCost), sf.session.tokens, time.Hour, testutil.MakeNoopLogger())
	return f
}

func (f *passwordFixture) credential(t *testing.T) []byte {
	t.Helper()
	p, err := f.store.Principals().GetByID(context.Background(), f.principal.ID)
	require.NoError(t, err)
	return p.CredentialHash
}

func TestPassword_ChangePassword(t *testing.T) {
	ctx := context.Background()
	f := newPasswordFixture(t)
	first := f.login(t)
	second := f.login(t)

	err := f.password.ChangePassword(ctx, f.principal.ID, "correct horse 1", "Brand-New-Secret-7")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword(f.credential(t), []byte("Brand-New-Secret-7")))

	for _, res := range []LoginResult{first, second} {
		_, err = f.session.Refresh(ctx, res.Tokens.RefreshToken)
		require.ErrorIs(t, err, model.ErrTokenRevoked)
	}

	_, err = f.session.Login(ctx, "alice", "correct horse 1", "10.0.0.1")
	require.ErrorIs(t, err, model.ErrAuthentication)
	_, err = f.session.Login(ctx, "alice", "Brand-New-Secret-7", "10.0.0.1")
	require.NoError(t, err)
}

func TestPassword_ChangePassword_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong current password", func(t *testing.T) {
		f := newPasswordFixture(t)
		before := f.credential(t)
		res := f.login(t)

		err := f.password.ChangePassword(ctx, f.principal.ID, "not it", "Brand-New-Secret-7")
		require.ErrorIs(t, err, model.ErrWrongSecret)
		assert.Equal(t, before, f.credential(t))

		_, err = f.session.Refresh(ctx, res.Tokens.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("unknown principal", func(t *testing.T) {
		f := newPasswordFixture(t)
		err := f.password.ChangePassword(ctx, uuid.New(), "correct horse 1", "Brand-New-Secret-7")
		require.ErrorIs(t, err, model.ErrUnauthenticated)
	})

	t.Run("new password too long", func(t *testing.T) {
		f := newPasswordFixture(t)
		principals := &servermocks.PrincipalStore{}
		principals.On("GetByID", mock.Anything, f.principal.ID).Return(f.principal, nil).Once()
		f.password.principals = principals

		err := f.password.ChangePassword(ctx, f.principal.ID, "correct horse 1", strings.Repeat("x", 73))
		require.ErrorIs(t, err, model.ErrSecretTooLong)
		principals.AssertNotCalled(t, "UpdateCredential", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPassword_ResetFlow(t *testing.T) {
	ctx := context.Background()
	f := newPasswordFixture(t)
	res := f.login(t)

	require.NoError(t, f.password.RequestReset(ctx, " ALICE@example.com "))
	require.Len(t, f.sent, 1)
	msg := f.sent[0]
	assert.Equal(t, f.principal.ID, msg.PrincipalID)
	assert.Equal(t, "alice@example.com", msg.Email)
	assert.Len(t, msg.Token, 43)

	require.NoError(t, f.password.ConfirmReset(ctx, msg.Token, "Reset-Secret-99"))
	assert.NoError(t, bcrypt.CompareHashAndPassword(f.credential(t), []byte("Reset-Secret-99")))

	_, err := f.session.Refresh(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, model.ErrTokenRevoked)

	err = f.password.ConfirmReset(ctx, msg.Token, "Another-Secret-1")
	require.ErrorIs(t, err, model.ErrVerificationConsumed)
}

func TestPassword_RequestReset_UnknownEmailIsSilent(t *testing.T) {
	f := newPasswordFixture(t)

	require.NoError(t, f.password.RequestReset(context.Background(), "nobody@example.com"))
	assert.Empty(t, f.sent)
	f.notifier.AssertNotCalled(t, "SendPasswordReset", mock.Anything, mock.Anything)
}

func TestPassword_RequestReset_DispatchError(t *testing.T) {
	f := newPasswordFixture(t)
	notifier := &servermocks.Notifier{}
	notifier.On("SendPasswordReset", mock.Anything, mock.Anything).Return(assert.AnError).Once()
	f.password.notifier = notifier

	err := f.password.RequestReset(context.Background(), "alice@example.com")
	require.ErrorIs(t, err, assert.AnError)
}

func TestPassword_ConfirmReset_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		f := newPasswordFixture(t)
		require.ErrorIs(t, f.password.ConfirmReset(ctx, "", "Reset-Secret-99"), model.ErrVerificationInvalid)
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newPasswordFixture(t)
		require.ErrorIs(t, f.password.ConfirmReset(ctx, "bogus", "Reset-Secret-99"), model.ErrVerificationInvalid)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newPasswordFixture(t)
		require.NoError(t, f.password.RequestReset(ctx, "alice@example.com"))
		require.Len(t, f.sent, 1)

		f.password.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		require.ErrorIs(t, f.password.ConfirmReset(ctx, f.sent[0].Token, "Reset-Secret-99"), model.ErrVerificationExpired)
	})

	t.Run("secret too long touches no store", func(t *testing.T) {
		f := newPasswordFixture(t)
		resets := &servermocks.PasswordResetStore{}
		f.password.resets = resets

		err := f.password.ConfirmReset(ctx, "token", strings.Repeat("x", 80))
		require.ErrorIs(t, err, model.ErrSecretTooLong)
		resets.AssertNotCalled(t, "CompleteReset", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
