package auth

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/chat-sync/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	token, err := tokens.GenerateJWT("acct-1")
	require.NoError(t, err)

	sub, err := tokens.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", sub)

	_, err = NewTokens("other", time.Hour).ValidateJWT(token)
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }
	token, err := tokens.GenerateJWT("acct-1")
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tokens.ValidateJWT(token)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("hunter2", hash))
	assert.False(t, CheckPasswordHash("hunter3", hash))
}

func TestCaptchaVerify(t *testing.T) {
	c := NewCaptchas("secret", time.Minute)
	ch, err := c.Issue()
	require.NoError(t, err)
	require.Len(t, ch.Code, 4)

	assert.False(t, c.Verify(ch.Code, "garbage"))
	assert.False(t, NewCaptchas("other", time.Minute).Verify(ch.Code, ch.Signature))
	assert.True(t, c.Verify(" "+ch.Code+" ", ch.Signature))

	wrong, err := c.Issue()
	require.NoError(t, err)
	assert.False(t, c.Verify("abcd", wrong.Signature))
}

func TestCaptchaIsSingleUse(t *testing.T) {
	c := NewCaptchas("secret", time.Minute)
	ch, err := c.Issue()
	require.NoError(t, err)

	assert.True(t, c.Verify(ch.Code, ch.Signature))
	assert.False(t, c.Verify(ch.Code, ch.Signature))

	// a wrong guess spends the challenge too
	guessed, err := c.issueCode("1234")
	require.NoError(t, err)
	assert.False(t, c.Verify("4321", guessed.Signature))
	assert.False(t, c.Verify("1234", guessed.Signature))
}

func TestCaptchaForgetsExpiredChallenges(t *testing.T) {
	c := NewCaptchas("secret", time.Minute)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start }
	old, err := c.issueCode("1234")
	require.NoError(t, err)
	require.True(t, c.Verify("1234", old.Signature))
	require.Len(t, c.spent, 1)

	c.now = func() time.Time { return start.Add(time.Hour) }
	fresh, err := c.issueCode("5678")
	require.NoError(t, err)
	assert.True(t, c.Verify("5678", fresh.Signature))
	assert.Len(t, c.spent, 1)
}

func TestCaptchaExpires(t *testing.T) {
	c := NewCaptchas("secret", time.Minute)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start }
	ch, err := c.issueCode("1234")
	require.NoError(t, err)

	c.now = func() time.Time { return start.Add(time.Hour) }
	assert.False(t, c.Verify("1234", ch.Signature))
}

func TestRender(t *testing.T) {
	art := Render("10")
	lines := strings.Split(art, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, " #   ###", lines[0])
	assert.Equal(t, "###  ###", lines[4])
}

func TestSession(t *testing.T) {
	s := NewSession()
	_, ok := s.CurrentUser()
	assert.False(t, ok)
	assert.Empty(t, s.Token())

	s.Start("tok", models.User{ID: "u1", Username: "ana"})
	user, ok := s.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "tok", s.Token())

	s.SetUser(models.User{ID: "u1", Username: "ana2"})
	user, _ = s.CurrentUser()
	assert.Equal(t, "ana2", user.Username)

	s.End()
	assert.Empty(t, s.Token())
	s.SetUser(models.User{ID: "u1"})
	_, ok = s.CurrentUser()
	assert.False(t, ok)
}

func TestSessionConcurrentReads(t *testing.T) {
	s := NewSession()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Start("tok", models.User{ID: "u"})
				_ = s.Token()
				s.End()
			}
		}()
	}
	wg.Wait()
}
