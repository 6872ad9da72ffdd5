package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"direct-chat/internal/domain"
	"direct-chat/internal/repository"
	"direct-chat/internal/repository/sqlite"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Message
}

func (n *recordingNotifier) NotifyMessage(_ context.Context, msg domain.Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return true
}

type fixture struct {
	users    UserService
	messages MessageService
	notifier *recordingNotifier
	userRepo repository.UserRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	userRepo := sqlite.NewUserRepository(db)
	require.NoError(t, userRepo.Init(ctx))
	convRepo := sqlite.NewConversationRepository(db)
	require.NoError(t, convRepo.Init(ctx))

	users, err := NewUserService(userRepo, "https://avatars.test/public/", bcrypt.MinCost)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	return &fixture{
		users:    users,
		messages: NewMessageService(userRepo, convRepo, notifier),
		notifier: notifier,
		userRepo: userRepo,
	}
}

func (f *fixture) signup(t *testing.T, username string, gender domain.Gender) *domain.User {
	t.Helper()
	user, err := f.users.Signup(context.Background(), SignupInput{
		FullName:        "Full " + username,
		Username:        username,
		Password:        "secret123",
		ConfirmPassword: "secret123",
		Gender:          gender,
	})
	require.NoError(t, err)
	return user
}

func TestSignup_Success(t *testing.T) {
	f := newFixture(t)

	user := f.signup(t, "john", domain.GenderMale)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "john", user.Username)
	assert.Equal(t, "Full john", user.FullName)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, "https://avatars.test/public/boy?username=john", user.ProfilePic)

	stored, err := f.userRepo.GetByUsername(context.Background(), "john")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")))
}

func TestSignup_FemaleAvatar(t *testing.T) {
	f := newFixture(t)

	user := f.signup(t, "jane doe", domain.GenderFemale)
	assert.Equal(t, "https://avatars.test/public/girl?username=jane+doe", user.ProfilePic)
}

func TestSignup_PasswordMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Signup(context.Background(), SignupInput{
		FullName:        "John",
		Username:        "john",
		Password:        "secret123",
		ConfirmPassword: "secret124",
		Gender:          domain.GenderMale,
	})
	require.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = f.userRepo.GetByUsername(context.Background(), "john")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSignup_DuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "john", domain.GenderMale)

	_, err := f.users.Signup(context.Background(), SignupInput{
		FullName:        "Another John",
		Username:        "john",
		Password:        "another1",
		ConfirmPassword: "another1",
		Gender:          domain.GenderMale,
	})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t)

	testCases := []struct {
		name string
		in   SignupInput
	}{
		{"missing full name", SignupInput{Username: "a", Password: "secret1", ConfirmPassword: "secret1", Gender: domain.GenderMale}},
		{"missing username", SignupInput{FullName: "A", Password: "secret1", ConfirmPassword: "secret1", Gender: domain.GenderMale}},
		{"missing password", SignupInput{FullName: "A", Username: "a", Gender: domain.GenderMale}},
		{"bad gender", SignupInput{FullName: "A", Username: "a", Password: "secret1", ConfirmPassword: "secret1", Gender: "robot"}},
		{"short password", SignupInput{FullName: "A", Username: "a", Password: "abc", ConfirmPassword: "abc", Gender: domain.GenderFemale}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.users.Signup(context.Background(), tc.in)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestAuthenticate_MatchesSignupProfile(t *testing.T) {
	f := newFixture(t)
	created := f.signup(t, "john", domain.GenderMale)

	user, err := f.users.Authenticate(context.Background(), "john", "secret123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, created.Username, user.Username)
	assert.Equal(t, created.FullName, user.FullName)
	assert.Equal(t, created.ProfilePic, user.ProfilePic)
	assert.Empty(t, user.PasswordHash)
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "john", domain.GenderMale)

	_, wrongPassword := f.users.Authenticate(context.Background(), "john", "nope")
	_, unknownUser := f.users.Authenticate(context.Background(), "ghost", "secret123")
	_, empty := f.users.Authenticate(context.Background(), "", "")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.ErrorIs(t, empty, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestGetByID_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestListOthers(t *testing.T) {
	f := newFixture(t)
	john := f.signup(t, "john", domain.GenderMale)
	f.signup(t, "jane", domain.GenderFemale)

	others, err := f.users.ListOthers(context.Background(), john.ID)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "jane", others[0].Username)
	assert.Empty(t, others[0].PasswordHash)
}

func TestSend_ReusesConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.signup(t, "john", domain.GenderMale)
	jane := f.signup(t, "jane", domain.GenderFemale)

	first, err := f.messages.Send(ctx, john.ID, jane.ID, "hi jane")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = f.messages.Send(ctx, jane.ID, john.ID, "hi john")
	require.NoError(t, err)

	fromJohn, err := f.messages.Conversation(ctx, john.ID, jane.ID)
	require.NoError(t, err)
	fromJane, err := f.messages.Conversation(ctx, jane.ID, john.ID)
	require.NoError(t, err)

	require.Len(t, fromJohn, 2)
	require.Len(t, fromJane, 2)
	assert.Equal(t, fromJohn[0].ID, fromJane[0].ID)
	assert.Equal(t, fromJohn[1].ID, fromJane[1].ID)
	assert.Equal(t, first.ID, fromJohn[0].ID)
	assert.Equal(t, "hi jane", fromJohn[0].Body)
	assert.Equal(t, "hi john", fromJohn[1].Body)

	require.Len(t, f.notifier.sent, 2)
	assert.Equal(t, jane.ID, f.notifier.sent[0].ReceiverID)
	assert.Equal(t, john.ID, f.notifier.sent[1].ReceiverID)
}

func TestSend_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.signup(t, "john", domain.GenderMale)

	var verr *ValidationError
	_, err := f.messages.Send(ctx, john.ID, john.ID, "hello me")
	assert.True(t, errors.As(err, &verr))

	_, err = f.messages.Send(ctx, john.ID, 999, "   ")
	assert.True(t, errors.As(err, &verr))

	_, err = f.messages.Send(ctx, john.ID, 999, "anyone?")
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.Empty(t, f.notifier.sent)
}

func TestConversation_EmptyWhenNoHistory(t *testing.T) {
	f := newFixture(t)
	john := f.signup(t, "john", domain.GenderMale)
	jane := f.signup(t, "jane", domain.GenderFemale)

	messages, err := f.messages.Conversation(context.Background(), john.ID, jane.ID)
	require.NoError(t, err)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}
