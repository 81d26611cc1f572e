// Package identity authenticates callers. It only knows external subjects;
// mapping them to internal users is services.UserDirectory's job.
package identity

import (
	"errors"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

var ErrNoIdentity = errors.New("no authenticated identity")

const (
	sessionSubject = "subject"
	sessionEmail   = "email"
	sessionName    = "name"
	sessionAvatar  = "avatar"
)

// Identity is what the identity provider vouches for.
type Identity struct {
	Subject   string `json:"subject"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Provider identifies the caller of a request.
type Provider interface {
	Identify(c *gin.Context) (*Identity, error)
}

// LocalSubject is the subject of a password account.
func LocalSubject(email string) string {
	return "local:" + strings.ToLower(strings.TrimSpace(email))
}

// SessionProvider reads the identity that a successful login stored in the
// cookie session.
type SessionProvider struct{}

func NewSessionProvider() *SessionProvider {
	return &SessionProvider{}
}

func (p *SessionProvider) Identify(c *gin.Context) (*Identity, error) {
	session := sessions.Default(c)
	subject, _ := session.Get(sessionSubject).(string)
	if subject == "" {
		return nil, ErrNoIdentity
	}
	id := &Identity{Subject: subject}
	id.Email, _ = session.Get(sessionEmail).(string)
	id.Name, _ = session.Get(sessionName).(string)
	id.AvatarURL, _ = session.Get(sessionAvatar).(string)
	return id, nil
}

// SignIn stores id in the session.
func SignIn(c *gin.Context, id *Identity) error {
	session := sessions.Default(c)
	session.Set(sessionSubject, id.Subject)
	session.Set(sessionEmail, id.Email)
	session.Set(sessionName, id.Name)
	session.Set(sessionAvatar, id.AvatarURL)
	return session.Save()
}

// SignOut clears the session.
func SignOut(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}
