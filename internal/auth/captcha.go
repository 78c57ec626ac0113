package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const captchaLength = 4

// 3x5 glyphs for the digits 0-9.
var glyphs = [10][5]string{
	{"###", "# #", "# #", "# #", "###"},
	{" # ", "## ", " # ", " # ", "###"},
	{"###", "  #", "###", "#  ", "###"},
	{"###", "  #", "###", "  #", "###"},
	{"# #", "# #", "###", "  #", "  #"},
	{"###", "#  ", "###", "  #", "###"},
	{"###", "#  ", "###", "# #", "###"},
	{"###", "  #", "  #", "  #", "  #"},
	{"###", "# #", "###", "# #", "###"},
	{"###", "# #", "###", "  #", "###"},
}

// Challenge is a captcha as handed to the client. Signature is a signed
// token binding the code without revealing it.
type Challenge struct {
	Code      string
	Image     string
	Signature string
}

// Captchas issues signed captcha challenges. A challenge is spent by its
// first verification, right or wrong; spent ids are kept until they expire.
type Captchas struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	spent map[string]time.Time
}

func NewCaptchas(secret string, ttl time.Duration) *Captchas {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Captchas{secret: []byte(secret), ttl: ttl, now: time.Now, spent: make(map[string]time.Time)}
}

func (c *Captchas) Issue() (Challenge, error) {
	var code strings.Builder
	for i := 0; i < captchaLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return Challenge{}, fmt.Errorf("failed to generate captcha: %w", err)
		}
		code.WriteByte(byte('0' + n.Int64()))
	}
	return c.issueCode(code.String())
}

func (c *Captchas) issueCode(code string) (Challenge, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"jti": uuid.NewString(),
		"cap": c.digest(code),
		"iat": now.Unix(),
		"exp": now.Add(c.ttl).Unix(),
	}
	sign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return Challenge{}, fmt.Errorf("failed to sign captcha: %w", err)
	}
	return Challenge{Code: code, Image: Render(code), Signature: sign}, nil
}

// Verify reports whether code answers the challenge behind signature.
func (c *Captchas) Verify(code, signature string) bool {
	claims, err := parseHMAC(signature, c.secret, c.now)
	if err != nil {
		return false
	}
	want, ok := claims["cap"].(string)
	if !ok {
		return false
	}
	id, _ := claims["jti"].(string)
	exp, err := claims.GetExpirationTime()
	if id == "" || err != nil || exp == nil {
		return false
	}
	if !c.spend(id, exp.Time) {
		return false
	}
	return hmac.Equal([]byte(want), []byte(c.digest(strings.TrimSpace(code))))
}

// spend marks id as used and reports whether it was unused before.
func (c *Captchas) spend(id string, expires time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, exp := range c.spent {
		if now.After(exp) {
			delete(c.spent, k)
		}
	}
	if _, used := c.spent[id]; used {
		return false
	}
	c.spent[id] = expires
	return true
}

func (c *Captchas) digest(code string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte("captcha:" + code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Render draws the digits of code as text art. Non-digits are skipped.
func Render(code string) string {
	var rows [5]strings.Builder
	for _, r := range code {
		if r < '0' || r > '9' {
			continue
		}
		g := glyphs[r-'0']
		for i := range rows {
			if rows[i].Len() > 0 {
				rows[i].WriteString("  ")
			}
			rows[i].WriteString(g[i])
		}
	}
	lines := make([]string, len(rows))
	for i := range rows {
		lines[i] = rows[i].String()
	}
	return strings.Join(lines, "\n")
}
