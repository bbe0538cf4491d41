package notify

import (
	"github.com/gurkanbulca/taskboard/internal/remote"
)

// Center turns outcomes into localized notifications. A nil *Center
// drops every notification.
type Center struct {
	out     Notifier
	catalog *Catalog
	lang    string
}

func NewCenter(out Notifier, catalog *Catalog, lang string) *Center {
	if lang == "" {
		lang = LanguageEn
	}
	return &Center{out: out, catalog: catalog, lang: lang}
}

// Info sends a default-severity notification.
func (c *Center) Info(titleID, descriptionID string) {
	c.send(Notification{
		Title:       c.t(titleID, nil),
		Description: c.t(descriptionID, nil),
		Severity:    SeverityDefault,
	})
}

// Warn sends a destructive notification whose description is also a
// message ID.
func (c *Center) Warn(titleID, descriptionID string, data map[string]any) {
	c.send(Notification{
		Title:       c.t(titleID, nil),
		Description: c.t(descriptionID, data),
		Severity:    SeverityDestructive,
	})
}

// Error sends a destructive notification describing err. Remote errors
// read "message (code)".
func (c *Center) Error(titleID string, err error) {
	c.send(Notification{
		Title:       c.t(titleID, nil),
		Description: Describe(err),
		Severity:    SeverityDestructive,
	})
}

func (c *Center) send(n Notification) {
	if c == nil || c.out == nil {
		return
	}
	c.out.Notify(n)
}

func (c *Center) t(id string, data map[string]any) string {
	if c == nil || c.catalog == nil {
		return id
	}
	return c.catalog.Translate(c.lang, id, data)
}

// Describe renders err for a notification body.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if remoteErr, ok := remote.AsError(err); ok {
		return remoteErr.Error()
	}
	return err.Error()
}
